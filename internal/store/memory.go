package store

import (
	"context"
	"sync"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

// Memory is a simple in-memory store used by tests and when persistence is disabled.
type Memory struct {
	mu      sync.Mutex
	results map[string]model.InstanceResults // instance key -> label -> record
}

func NewMemory() *Memory {
	return &Memory{results: map[string]model.InstanceResults{}}
}

func (m *Memory) Save(ctx context.Context, key string, rec model.ResultRecord, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.results[key]
	if entry == nil || !merge {
		entry = model.InstanceResults{}
		m.results[key] = entry
	}
	entry[rec.Label] = cloneRecord(rec)
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (model.InstanceResults, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.results[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(model.InstanceResults, len(entry))
	for label, rec := range entry {
		out[label] = cloneRecord(rec)
	}
	return out, nil
}

func (m *Memory) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.results))
	for k := range m.results {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys, nil
}

func cloneRecord(rec model.ResultRecord) model.ResultRecord {
	routes := make([]model.Route, len(rec.Routes))
	for i, r := range rec.Routes {
		routes[i] = append(model.Route{}, r...)
	}
	rec.Routes = routes
	return rec
}
