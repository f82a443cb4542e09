// Package evaluate recomputes route costs from an instance's distance matrix so a
// solver objective can be checked against the routes it produced.
package evaluate

import (
	"fmt"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

// CourierCost holds the travelled distance and carried load of one courier.
type CourierCost struct {
	Courier  int // 1-based
	Route    model.Route
	Distance int
	Load     int
	Capacity int
}

func (c CourierCost) Overloaded() bool { return c.Load > c.Capacity }

// Report summarises a set of routes against an instance.
type Report struct {
	Couriers []CourierCost
	// MaxDistance is the largest courier distance, the quantity the models minimise.
	MaxDistance int
	// Uncovered lists items no courier visits.
	Uncovered []int
}

// Overloaded returns the 1-based ids of couriers carrying more than their capacity.
func (r Report) Overloaded() []int {
	var out []int
	for _, c := range r.Couriers {
		if c.Overloaded() {
			out = append(out, c.Courier)
		}
	}
	return out
}

// Matches reports whether obj equals the recomputed max distance. An absent objective
// never matches.
func (r Report) Matches(obj model.Objective) bool {
	v, ok := obj.Int()
	return ok && v == r.MaxDistance
}

// Routes computes per-courier cost of routes on inst. Each route runs depot -> items -> depot;
// an empty route costs nothing.
func Routes(inst model.TranscodedInstance, routes []model.Route) (Report, error) {
	if len(routes) != inst.NumCourier {
		return Report{}, fmt.Errorf("got %d routes for %d couriers", len(routes), inst.NumCourier)
	}
	if err := checkMatrix(inst); err != nil {
		return Report{}, err
	}
	depot := inst.Depot()
	seen := make([]bool, inst.NumItem+1)
	rep := Report{Couriers: make([]CourierCost, len(routes))}
	for i, r := range routes {
		cost := CourierCost{Courier: i + 1, Route: append(model.Route{}, r...)}
		if i < len(inst.Capacity) {
			cost.Capacity = inst.Capacity[i]
		}
		for _, node := range r {
			if node < 1 || node >= depot {
				return Report{}, fmt.Errorf("courier %d: node %d outside [1, %d]", i+1, node, depot-1)
			}
			cost.Load += inst.ItemSize[node-1]
			seen[node] = true
		}
		cost.Distance = TourDistance(inst.Distances, depot, r)
		if cost.Distance > rep.MaxDistance {
			rep.MaxDistance = cost.Distance
		}
		rep.Couriers[i] = cost
	}
	for item := 1; item < depot; item++ {
		if !seen[item] {
			rep.Uncovered = append(rep.Uncovered, item)
		}
	}
	return rep, nil
}

// TourDistance is the closed-tour length depot -> route... -> depot over 1-based nodes.
func TourDistance(dist [][]int, depot int, route model.Route) int {
	if len(route) == 0 {
		return 0
	}
	total := 0
	prev := depot
	for _, node := range route {
		total += dist[prev-1][node-1]
		prev = node
	}
	return total + dist[prev-1][depot-1]
}

func checkMatrix(inst model.TranscodedInstance) error {
	n := inst.DistributionPoints()
	if len(inst.Distances) != n {
		return fmt.Errorf("distance matrix has %d rows, want %d", len(inst.Distances), n)
	}
	for i, row := range inst.Distances {
		if len(row) != n {
			return fmt.Errorf("distance row %d has %d columns, want %d", i+1, len(row), n)
		}
	}
	if len(inst.ItemSize) != inst.NumItem {
		return fmt.Errorf("got %d item sizes for %d items", len(inst.ItemSize), inst.NumItem)
	}
	return nil
}
