package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

// File keeps one JSON document per instance under Dir: <Dir>/<key>.json holding
// {"<label>": {"time", "optimal", "obj", "sol"}}.
//
// Writes are read-merge-write with an atomic rename. There is no locking: two
// processes saving the same key concurrently may lose one update.
type File struct {
	Dir string
}

func NewFile(dir string) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("result directory is required")
	}
	return &File{Dir: dir}, nil
}

func (f *File) path(key string) string { return filepath.Join(f.Dir, key+".json") }

func (f *File) Save(ctx context.Context, key string, rec model.ResultRecord, merge bool) error {
	if !validKey(key) {
		return fmt.Errorf("invalid instance key %q", key)
	}
	if rec.Label == "" {
		return fmt.Errorf("record for %s has no label", key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return err
	}

	doc := map[string]json.RawMessage{}
	if merge {
		existing, err := f.readRaw(key)
		if err != nil && err != ErrNotFound {
			return err
		}
		if existing != nil {
			doc = existing
		}
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	doc[rec.Label] = body

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(f.path(key), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write results %s: %w", key, err)
	}
	return nil
}

// readRaw keeps entries as raw JSON so labels written by other tools survive a merge
// even when they do not match the record shape. Valid JSON that is not an object is
// replaced; a document that does not parse is an error so a merge never drops entries.
func (f *File) readRaw(key string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("parse results %s: invalid JSON document", key)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil
	}
	return doc, nil
}

func (f *File) Get(ctx context.Context, key string) (model.InstanceResults, error) {
	if !validKey(key) {
		return nil, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var out model.InstanceResults
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse results %s: %w", key, err)
	}
	for label, rec := range out {
		rec.Label = label
		out[label] = rec
	}
	return out, nil
}

func (f *File) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	SortKeys(keys)
	return keys, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	_ = tmp.Sync() // best-effort durability
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
