// Package decode turns raw solver assignments into canonical per-courier routes.
//
// Each model family encodes the same routing solution differently:
//
//   - Successor (A): sequence[c][i] is the node courier c visits after node i+1.
//     Unvisited nodes usually point to themselves; the route is the chain that
//     starts and ends at the depot.
//   - OwnerPath (B): path[i] is a row over destination nodes; the column holding
//     courier id c marks the arc courier c takes out of node i+1.
//   - Padded (C): sequence[c] lists courier c's nodes in visiting order with the
//     depot at both ends and zeros as padding.
//
// Routes are 1-based item nodes with the depot (node distributionPoints) removed.
// Every decoded solution is checked before it is returned: one route per courier,
// nodes within [1, distributionPoints-1], and no node repeated within a route.
package decode

import (
	"fmt"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

// DecodingError reports a raw assignment that does not describe valid routes.
type DecodingError struct {
	Family  model.Family
	Courier int // 1-based; 0 when not courier-specific
	Reason  string
}

func (e *DecodingError) Error() string {
	if e == nil {
		return ""
	}
	if e.Courier > 0 {
		return fmt.Sprintf("decode family %s, courier %d: %s", e.Family, e.Courier, e.Reason)
	}
	return fmt.Sprintf("decode family %s: %s", e.Family, e.Reason)
}

func decodingErrorf(f model.Family, courier int, format string, args ...any) error {
	return &DecodingError{Family: f, Courier: courier, Reason: fmt.Sprintf(format, args...)}
}

// Decoder reconstructs routes from one family's assignment shape.
type Decoder interface {
	Family() model.Family
	Decode(a model.Assignment, couriers, distributionPoints int) ([]model.Route, error)
}

// For returns the decoder for a family.
func For(f model.Family) (Decoder, error) {
	switch f {
	case model.FamilySuccessor:
		return Successor{}, nil
	case model.FamilyOwnerPath:
		return OwnerPath{}, nil
	case model.FamilyPadded:
		return Padded{}, nil
	}
	return nil, decodingErrorf(f, 0, "unsupported family")
}

// Decode dispatches on family and validates the result.
func Decode(a model.Assignment, f model.Family, couriers, distributionPoints int) ([]model.Route, error) {
	d, err := For(f)
	if err != nil {
		return nil, err
	}
	return d.Decode(a, couriers, distributionPoints)
}

// Validate checks the post-conditions shared by every family.
func Validate(f model.Family, routes []model.Route, couriers, distributionPoints int) error {
	if len(routes) != couriers {
		return decodingErrorf(f, 0, "decoded %d routes, want %d", len(routes), couriers)
	}
	for c, r := range routes {
		seen := make(map[int]struct{}, len(r))
		for _, node := range r {
			if node < 1 || node > distributionPoints-1 {
				return decodingErrorf(f, c+1, "node %d outside [1, %d]", node, distributionPoints-1)
			}
			if _, dup := seen[node]; dup {
				return decodingErrorf(f, c+1, "node %d visited twice", node)
			}
			seen[node] = struct{}{}
		}
	}
	return nil
}

func checkShape(f model.Family, couriers, distributionPoints int) error {
	if couriers < 1 {
		return decodingErrorf(f, 0, "courier count %d must be positive", couriers)
	}
	if distributionPoints < 2 {
		return decodingErrorf(f, 0, "distribution points %d must include the depot and one item", distributionPoints)
	}
	return nil
}
