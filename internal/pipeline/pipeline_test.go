package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alishhde/Couriers-Planning-Problem/internal/decode"
	"github.com/alishhde/Couriers-Planning-Problem/internal/dzn"
	"github.com/alishhde/Couriers-Planning-Problem/internal/events"
	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
	"github.com/alishhde/Couriers-Planning-Problem/internal/mzn"
	"github.com/alishhde/Couriers-Planning-Problem/internal/store"
)

const instanceText = `num_courier = 2;
num_item = 3;
courier_capacity = [15, 10];
item_size = [3, 2, 6];
distance_mat = [| 0, 3, 3, 6
| 3, 0, 4, 5
| 3, 4, 0, 2
| 6, 5, 2, 0
|];
`

// fakeSolver answers every binding with the outcome registered for its family.
type fakeSolver struct {
	mu       sync.Mutex
	outcomes map[model.Family]mzn.Outcome
	err      error
	calls    []mzn.Binding
}

func (f *fakeSolver) Solve(ctx context.Context, b mzn.Binding, budget time.Duration) (mzn.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, b)
	if f.err != nil {
		return mzn.Outcome{}, f.err
	}
	return f.outcomes[b.Family], nil
}

func successorOptimal() mzn.Outcome {
	return mzn.Outcome{
		Status: model.StatusOptimal,
		Solution: &model.Assignment{
			Sequence:  [][]int{{3, 2, 4, 1}, {1, 4, 3, 2}},
			Objective: model.NewObjective(11),
		},
		SolveTime: 2700 * time.Millisecond,
		HasStats:  true,
		Elapsed:   3 * time.Second,
	}
}

func ownerPathSatisfied() mzn.Outcome {
	return mzn.Outcome{
		Status: model.StatusSatisfied,
		Solution: &model.Assignment{
			Path: [][]int{
				{0, 0, 1, 0},
				{0, 0, 0, 2},
				{0, 0, 0, 1},
				{1, 2, 0, 0},
			},
			Objective: model.NewObjective(11),
		},
	}
}

type fixture struct {
	dir    string
	store  *store.File
	solver *fakeSolver
	broker *events.Broker
	p      *Pipeline
}

func newFixture(t *testing.T, instances int) fixture {
	t.Helper()
	root := t.TempDir()
	dznDir := filepath.Join(root, "dzn")
	modelsDir := filepath.Join(root, "models")
	require.NoError(t, os.MkdirAll(dznDir, 0o755))
	require.NoError(t, os.MkdirAll(modelsDir, 0o755))
	for i := 1; i <= instances; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dznDir, dzn.InstanceFileName(i)), []byte(instanceText), 0o644))
	}
	for _, m := range []string{"01. Successor - GECODE.mzn", "04. Path - CHUFFED.mzn"} {
		require.NoError(t, os.WriteFile(filepath.Join(modelsDir, m), []byte("solve minimize obj;\n"), 0o644))
	}
	st, err := store.NewFile(filepath.Join(root, "results"))
	require.NoError(t, err)
	solver := &fakeSolver{outcomes: map[model.Family]mzn.Outcome{
		model.FamilySuccessor: successorOptimal(),
		model.FamilyOwnerPath: ownerPathSatisfied(),
	}}
	broker := events.NewBroker()
	p := New(Config{DznDir: dznDir, ModelsDir: modelsDir, Budget: 300 * time.Second}, solver, st, WithEvents(broker))
	return fixture{dir: root, store: st, solver: solver, broker: broker, p: p}
}

func TestRunPersistsOptimalResult(t *testing.T) {
	fx := newFixture(t, 1)
	all := fx.broker.Subscribe(events.Wildcard)
	defer fx.broker.Unsubscribe(events.Wildcard, all)

	modelPath := filepath.Join(fx.dir, "models", "01. Successor - GECODE.mzn")
	rec, err := fx.p.Run(context.Background(), "1", modelPath, true)
	require.NoError(t, err)
	assert.True(t, rec.Optimal)
	assert.Equal(t, 2, rec.Time)
	assert.Equal(t, []model.Route{{1, 3}, {2}}, rec.Routes)

	require.Len(t, fx.solver.calls, 1)
	b := fx.solver.calls[0]
	assert.Equal(t, "gecode", b.SolverID)
	assert.Equal(t, 2, b.Couriers())
	assert.Equal(t, 4, b.DistributionPoints())

	got, err := fx.store.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "11", got["01. Successor - GECODE"].Objective.String())

	var types []string
	for len(all) > 0 {
		types = append(types, (<-all).Type)
	}
	assert.Equal(t, []string{
		events.TypeInstanceBound, events.TypeSolveStarted, events.TypeSolveFinished, events.TypeResultPersisted,
	}, types)
}

func TestRunJobMergesModelsPerInstance(t *testing.T) {
	fx := newFixture(t, 2)
	job, err := ParseJob("all-all")
	require.NoError(t, err)

	outcomes, err := fx.p.RunJob(context.Background(), job, true)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)
	// model-major order
	assert.Equal(t, "01. Successor - GECODE", outcomes[0].Model)
	assert.Equal(t, "1", outcomes[0].Instance)
	assert.Equal(t, "2", outcomes[1].Instance)

	got, err := fx.store.Get(context.Background(), "2")
	require.NoError(t, err)
	require.Len(t, got, 2)
	sat := got["04. Path - CHUFFED"]
	assert.False(t, sat.Optimal)
	assert.Equal(t, 300, sat.Time)
	assert.Equal(t, []model.Route{{1, 3}, {2}}, sat.Routes)
}

func TestRunOverwriteDropsSiblings(t *testing.T) {
	fx := newFixture(t, 1)
	_, err := fx.p.RunJob(context.Background(), Job{Instances: "1", Model: All}, true)
	require.NoError(t, err)

	_, err = fx.p.RunJob(context.Background(), Job{Instances: "1", Model: "04"}, false)
	require.NoError(t, err)
	got, err := fx.store.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "04. Path - CHUFFED")
}

func TestRunUnsatisfiableStoresPlaceholder(t *testing.T) {
	fx := newFixture(t, 1)
	fx.solver.outcomes[model.FamilySuccessor] = mzn.Outcome{Status: model.StatusUnsatisfiable}
	rec, err := fx.p.Run(context.Background(), "1", filepath.Join(fx.dir, "models", "01. Successor - GECODE.mzn"), true)
	require.NoError(t, err)
	assert.Equal(t, 300, rec.Time)
	assert.False(t, rec.Objective.Valid)
	assert.Empty(t, rec.Routes)
}

func TestRunFailuresAreReported(t *testing.T) {
	fx := newFixture(t, 1)
	all := fx.broker.Subscribe(events.Wildcard)
	defer fx.broker.Unsubscribe(events.Wildcard, all)
	modelPath := filepath.Join(fx.dir, "models", "01. Successor - GECODE.mzn")

	t.Run("solver error", func(t *testing.T) {
		fx.solver.err = errors.New("minizinc not found")
		_, err := fx.p.Run(context.Background(), "1", modelPath, true)
		assert.ErrorContains(t, err, "minizinc not found")
		fx.solver.err = nil
	})

	t.Run("decoding error", func(t *testing.T) {
		bad := successorOptimal()
		bad.Solution.Sequence = [][]int{{1, 2, 3, 1}, {1, 4, 3, 2}} // never returns to depot
		fx.solver.outcomes[model.FamilySuccessor] = bad
		_, err := fx.p.Run(context.Background(), "1", modelPath, true)
		var de *decode.DecodingError
		assert.ErrorAs(t, err, &de)
		_, getErr := fx.store.Get(context.Background(), "1")
		assert.ErrorIs(t, getErr, store.ErrNotFound, "nothing persisted on decode failure")
	})

	t.Run("unknown instance", func(t *testing.T) {
		_, err := fx.p.Run(context.Background(), "9", modelPath, true)
		assert.Error(t, err)
	})

	t.Run("unbindable model", func(t *testing.T) {
		other := filepath.Join(fx.dir, "models", "99. Unknown - GECODE.mzn")
		require.NoError(t, os.WriteFile(other, []byte("solve satisfy;\n"), 0o644))
		_, err := fx.p.Run(context.Background(), "1", other, true)
		var be *mzn.BindingError
		assert.ErrorAs(t, err, &be)
	})

	failed := 0
	for len(all) > 0 {
		if (<-all).Type == events.TypeRunFailed {
			failed++
		}
	}
	assert.Equal(t, 4, failed)
}

func TestRunJobStopsOnCancel(t *testing.T) {
	fx := newFixture(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fx.p.RunJob(ctx, Job{Instances: All, Model: All}, true)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fx.solver.calls)
}

func TestRunJobCollectsFailures(t *testing.T) {
	fx := newFixture(t, 2)
	fx.solver.err = errors.New("boom")
	outcomes, err := fx.p.RunJob(context.Background(), Job{Instances: "1,2", Model: "01"}, true)
	require.Error(t, err)
	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes[1].Err)
}
