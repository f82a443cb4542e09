package decode

import "github.com/alishhde/Couriers-Planning-Problem/internal/model"

// Successor decodes family A assignments.
type Successor struct{}

func (Successor) Family() model.Family { return model.FamilySuccessor }

func (d Successor) Decode(a model.Assignment, couriers, distributionPoints int) ([]model.Route, error) {
	f := d.Family()
	if err := checkShape(f, couriers, distributionPoints); err != nil {
		return nil, err
	}
	if len(a.Sequence) != couriers {
		return nil, decodingErrorf(f, 0, "sequence has %d couriers, want %d", len(a.Sequence), couriers)
	}
	depot := distributionPoints
	routes := make([]model.Route, couriers)
	for c, succ := range a.Sequence {
		if len(succ) != distributionPoints {
			return nil, decodingErrorf(f, c+1, "successor list has %d entries, want %d", len(succ), distributionPoints)
		}
		next := func(node int) (int, error) {
			n := succ[node-1]
			if n < 1 || n > distributionPoints {
				return 0, decodingErrorf(f, c+1, "successor %d of node %d out of range", n, node)
			}
			return n, nil
		}
		r, err := walk(f, c+1, depot, next)
		if err != nil {
			return nil, err
		}
		routes[c] = r
	}
	if err := Validate(f, routes, couriers, distributionPoints); err != nil {
		return nil, err
	}
	return routes, nil
}

// OwnerPath decodes family B assignments.
type OwnerPath struct{}

func (OwnerPath) Family() model.Family { return model.FamilyOwnerPath }

func (d OwnerPath) Decode(a model.Assignment, couriers, distributionPoints int) ([]model.Route, error) {
	f := d.Family()
	if err := checkShape(f, couriers, distributionPoints); err != nil {
		return nil, err
	}
	if len(a.Path) != distributionPoints {
		return nil, decodingErrorf(f, 0, "path has %d rows, want %d", len(a.Path), distributionPoints)
	}
	for i, row := range a.Path {
		if len(row) != distributionPoints {
			return nil, decodingErrorf(f, 0, "path row %d has %d columns, want %d", i+1, len(row), distributionPoints)
		}
	}
	depot := distributionPoints
	routes := make([]model.Route, couriers)
	for c := 1; c <= couriers; c++ {
		next := func(node int) (int, error) {
			pos := -1
			for j, owner := range a.Path[node-1] {
				if owner != c {
					continue
				}
				if pos >= 0 {
					return 0, decodingErrorf(f, c, "node %d has arcs to both %d and %d", node, pos+1, j+1)
				}
				pos = j
			}
			if pos < 0 {
				return 0, decodingErrorf(f, c, "no arc leaves node %d", node)
			}
			return pos + 1, nil
		}
		r, err := walk(f, c, depot, next)
		if err != nil {
			return nil, err
		}
		routes[c-1] = r
	}
	if err := Validate(f, routes, couriers, distributionPoints); err != nil {
		return nil, err
	}
	return routes, nil
}

// Padded decodes family C assignments.
type Padded struct{}

func (Padded) Family() model.Family { return model.FamilyPadded }

func (d Padded) Decode(a model.Assignment, couriers, distributionPoints int) ([]model.Route, error) {
	f := d.Family()
	if err := checkShape(f, couriers, distributionPoints); err != nil {
		return nil, err
	}
	if len(a.Sequence) != couriers {
		return nil, decodingErrorf(f, 0, "sequence has %d couriers, want %d", len(a.Sequence), couriers)
	}
	depot := distributionPoints
	routes := make([]model.Route, couriers)
	for c, seq := range a.Sequence {
		visits := make([]int, 0, len(seq))
		for _, node := range seq {
			if node != 0 {
				visits = append(visits, node)
			}
		}
		// An unused courier is all zeros, a lone depot, or depot twice.
		r := model.Route{}
		switch {
		case len(visits) == 0:
		case len(visits) == 1:
			if visits[0] != depot {
				return nil, decodingErrorf(f, c+1, "lone node %d is not the depot %d", visits[0], depot)
			}
		case visits[0] != depot || visits[len(visits)-1] != depot:
			return nil, decodingErrorf(f, c+1, "route %v does not start and end at depot %d", visits, depot)
		default:
			r = append(r, visits[1:len(visits)-1]...)
		}
		routes[c] = r
	}
	if err := Validate(f, routes, couriers, distributionPoints); err != nil {
		return nil, err
	}
	return routes, nil
}

// walk follows next from the depot until the depot comes back. A chain longer than
// the node count cannot close and is reported instead of looping forever.
func walk(f model.Family, courier, depot int, next func(int) (int, error)) (model.Route, error) {
	r := model.Route{}
	seen := make(map[int]struct{})
	cur := depot
	for steps := 0; ; steps++ {
		if steps >= depot {
			return nil, decodingErrorf(f, courier, "route does not return to depot %d within %d steps", depot, depot)
		}
		n, err := next(cur)
		if err != nil {
			return nil, err
		}
		if n == depot {
			return r, nil
		}
		if _, dup := seen[n]; dup {
			return nil, decodingErrorf(f, courier, "node %d visited twice", n)
		}
		seen[n] = struct{}{}
		r = append(r, n)
		cur = n
	}
}
