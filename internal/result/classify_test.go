package result

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alishhde/Couriers-Planning-Problem/internal/decode"
	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
	"github.com/alishhde/Couriers-Planning-Problem/internal/mzn"
)

const budget = 300 * time.Second

func binding() mzn.Binding {
	return mzn.Binding{
		Label:    "10. Seq - GECODE",
		Family:   model.FamilyPadded,
		Instance: model.TranscodedInstance{NumCourier: 2, NumItem: 3},
	}
}

func solution() *model.Assignment {
	return &model.Assignment{Sequence: [][]int{{4, 1, 4}, {4, 2, 4}}, Objective: model.NewObjective(14)}
}

func TestClassifyEachStatus(t *testing.T) {
	cases := []struct {
		out     mzn.Outcome
		time    int
		optimal bool
		obj     model.Objective
		routes  []model.Route
	}{
		{mzn.Outcome{Status: model.StatusUnsatisfiable}, 300, false, model.NoObjective, []model.Route{}},
		{mzn.Outcome{Status: model.StatusUnknown}, 300, false, model.NoObjective, []model.Route{}},
		{mzn.Outcome{Status: model.StatusSatisfied, Solution: solution()}, 300, false, model.NewObjective(14), []model.Route{{1}, {2}}},
		{mzn.Outcome{Status: model.StatusOptimal, Solution: solution(), SolveTime: 12900 * time.Millisecond, HasStats: true}, 12, true, model.NewObjective(14), []model.Route{{1}, {2}}},
	}
	for _, tc := range cases {
		t.Run(string(tc.out.Status), func(t *testing.T) {
			rec, err := Classify(tc.out, binding(), budget)
			require.NoError(t, err)
			assert.Equal(t, "10. Seq - GECODE", rec.Label)
			assert.Equal(t, tc.time, rec.Time)
			assert.Equal(t, tc.optimal, rec.Optimal)
			assert.Equal(t, tc.obj, rec.Objective)
			assert.Equal(t, tc.routes, rec.Routes)
		})
	}
}

func TestClassifyOptimalFallsBackToElapsed(t *testing.T) {
	rec, err := Classify(mzn.Outcome{Status: model.StatusOptimal, Solution: solution(), Elapsed: 3500 * time.Millisecond}, binding(), budget)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Time)
}

func TestClassifyPropagatesDecodingError(t *testing.T) {
	bad := &model.Assignment{Sequence: [][]int{{4, 1, 1, 4}, {4, 4}}}
	_, err := Classify(mzn.Outcome{Status: model.StatusSatisfied, Solution: bad}, binding(), budget)
	var de *decode.DecodingError
	require.ErrorAs(t, err, &de)
}

func TestClassifyRejectsUnknownStatus(t *testing.T) {
	_, err := Classify(mzn.Outcome{Status: "ERROR"}, binding(), budget)
	require.Error(t, err)
}

func TestRecordJSONShape(t *testing.T) {
	rec, err := Classify(mzn.Outcome{Status: model.StatusUnknown}, binding(), budget)
	require.NoError(t, err)
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":300,"optimal":false,"obj":"N/A","sol":[]}`, string(data))

	rec, err = Classify(mzn.Outcome{Status: model.StatusSatisfied, Solution: solution()}, binding(), budget)
	require.NoError(t, err)
	data, err = json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":300,"optimal":false,"obj":14,"sol":[[1],[2]]}`, string(data))
}
