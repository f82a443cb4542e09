package store

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

// Store persists result records keyed by instance then solver label.
type Store interface {
	// Save writes rec under key. With merge, sibling labels already stored for key are
	// kept; without it, the entry for key is replaced by rec alone.
	Save(ctx context.Context, key string, rec model.ResultRecord, merge bool) error
	// Get returns every record stored for key, or ErrNotFound.
	Get(ctx context.Context, key string) (model.InstanceResults, error)
	// List returns the stored instance keys in natural order.
	List(ctx context.Context) ([]string, error)
}

var ErrNotFound = errors.New("not found")

// SortKeys orders instance keys numerically when they are numbers, lexically otherwise.
func SortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
}

func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	for _, r := range key {
		if r == '/' || r == '\\' || r == 0 {
			return false
		}
	}
	return true
}
