package evaluate

import "github.com/alishhde/Couriers-Planning-Problem/internal/model"

// Improve2Opt applies 2-opt moves to a single route until no move shortens the closed
// tour or iterations run out. It returns the best order found and its distance.
// Used to flag non-optimal routes in satisfied results; it never rewrites stored solutions.
func Improve2Opt(dist [][]int, depot int, route model.Route, iterations int) (model.Route, int) {
	if iterations <= 0 {
		iterations = 1
	}
	best := append(model.Route{}, route...)
	bestDist := TourDistance(dist, depot, best)
	n := len(best)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := twoOptSwap(best, i, k)
				d := TourDistance(dist, depot, cand)
				if d < bestDist {
					best, bestDist = cand, d
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best, bestDist
}

func twoOptSwap(ord model.Route, i, k int) model.Route {
	out := make(model.Route, len(ord))
	copy(out, ord[:i])
	// reverse i..k
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}
