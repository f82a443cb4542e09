package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

func gecodeRecord() model.ResultRecord {
	return model.ResultRecord{
		Label:     "01. Successor - GECODE",
		Time:      12,
		Optimal:   true,
		Objective: model.NewObjective(206),
		Routes:    []model.Route{{1, 3}, {2}},
	}
}

func chuffedRecord() model.ResultRecord {
	return model.ResultRecord{
		Label:     "02. Successor - CHUFFED",
		Time:      300,
		Optimal:   false,
		Objective: model.NoObjective,
		Routes:    []model.Route{},
	}
}

// exerciseMerge is shared by every backend, including the tagged Postgres test.
func exerciseMerge(t *testing.T, s Store, key string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, key, gecodeRecord(), true))
	require.NoError(t, s.Save(ctx, key, chuffedRecord(), true))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, got, 2)
	g := got["01. Successor - GECODE"]
	assert.Equal(t, 12, g.Time)
	assert.True(t, g.Optimal)
	assert.Equal(t, "206", g.Objective.String())
	assert.Equal(t, []model.Route{{1, 3}, {2}}, g.Routes)
	c := got["02. Successor - CHUFFED"]
	assert.False(t, c.Objective.Valid)
	assert.Empty(t, c.Routes)

	// same label overwrites in place
	upd := gecodeRecord()
	upd.Time = 7
	require.NoError(t, s.Save(ctx, key, upd, true))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 7, got[upd.Label].Time)

	// without merge the entry holds only the new record
	require.NoError(t, s.Save(ctx, key, chuffedRecord(), false))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "02. Successor - CHUFFED")
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	lite, err := NewSQLite(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.Close() })
	return map[string]Store{
		"file":   f,
		"memory": NewMemory(),
		"sqlite": lite,
	}
}

func TestStoresMergeAndReplace(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			exerciseMerge(t, s, "5")
		})
	}
}

func TestStoresGetMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "42")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoresListNaturalOrder(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, k := range []string{"10", "2", "1"} {
				require.NoError(t, s.Save(ctx, k, gecodeRecord(), true))
			}
			keys, err := s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"1", "2", "10"}, keys)
		})
	}
}

func TestFileDocumentShape(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Save(context.Background(), "5", gecodeRecord(), true))

	data, err := os.ReadFile(filepath.Join(dir, "5.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"01. Successor - GECODE":{"time":12,"optimal":true,"obj":206,"sol":[[1,3],[2]]}}`, string(data))
}

func TestFileMergeKeepsForeignEntries(t *testing.T) {
	dir := t.TempDir()
	foreign := `{"gurobi-mip": {"time": 3, "optimal": true, "obj": 14, "sol": [[1]], "note": "external"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "5.json"), []byte(foreign), 0o644))

	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Save(context.Background(), "5", gecodeRecord(), true))

	var doc map[string]map[string]any
	data, err := os.ReadFile(filepath.Join(dir, "5.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "external", doc["gurobi-mip"]["note"])
	assert.Contains(t, doc, "01. Successor - GECODE")
}

func TestFileMergeRefusesCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "5.json")
	truncated := `{"01. Successor - GECODE": {"time": 12, "optimal": true, "obj": 206, "sol": [[1,3],[2]]}`
	require.NoError(t, os.WriteFile(path, []byte(truncated), 0o644))

	f, err := NewFile(dir)
	require.NoError(t, err)
	err = f.Save(context.Background(), "5", chuffedRecord(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse results 5")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, truncated, string(data))

	// a replacing save does not read the old document
	require.NoError(t, f.Save(context.Background(), "5", chuffedRecord(), false))
}

func TestFileMergeReplacesNonObjectDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "5.json"), []byte("[1, 2]\n"), 0o644))

	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Save(context.Background(), "5", gecodeRecord(), true))
	got, err := f.Get(context.Background(), "5")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFileRejectsUnsafeKeys(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	for _, k := range []string{"", "..", "a/b"} {
		assert.Error(t, f.Save(context.Background(), k, gecodeRecord(), true), k)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, "1", gecodeRecord(), true))
	got, err := m.Get(ctx, "1")
	require.NoError(t, err)
	got["01. Successor - GECODE"].Routes[0][0] = 99

	again, err := m.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, again["01. Successor - GECODE"].Routes[0][0])
}
