// Package result classifies solver outcomes into persisted result records.
package result

import (
	"fmt"
	"math"
	"time"

	"github.com/alishhde/Couriers-Planning-Problem/internal/decode"
	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
	"github.com/alishhde/Couriers-Planning-Problem/internal/mzn"
)

// Classify maps an outcome to a ResultRecord. Solutions are decoded with the family
// resolved at binding time; unsatisfiable and unknown outcomes carry no routes.
func Classify(out mzn.Outcome, b mzn.Binding, budget time.Duration) (model.ResultRecord, error) {
	budgetSecs := int(math.Floor(budget.Seconds()))
	rec := model.ResultRecord{Label: b.Label, Routes: []model.Route{}}

	switch out.Status {
	case model.StatusUnsatisfiable, model.StatusUnknown:
		rec.Time = budgetSecs
		rec.Objective = model.NoObjective
		return rec, nil
	case model.StatusSatisfied, model.StatusOptimal:
	default:
		return model.ResultRecord{}, fmt.Errorf("unknown solver status %q", out.Status)
	}

	if out.Solution == nil {
		return model.ResultRecord{}, fmt.Errorf("status %s without a solution", out.Status)
	}
	routes, err := decode.Decode(*out.Solution, b.Family, b.Couriers(), b.DistributionPoints())
	if err != nil {
		return model.ResultRecord{}, err
	}
	rec.Routes = routes
	rec.Objective = out.Solution.Objective

	if out.Status == model.StatusSatisfied {
		rec.Time = budgetSecs
		return rec, nil
	}
	rec.Optimal = true
	solveTime := out.SolveTime
	if !out.HasStats {
		solveTime = out.Elapsed
	}
	rec.Time = int(math.Floor(solveTime.Seconds()))
	return rec, nil
}
