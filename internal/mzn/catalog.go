// Package mzn binds MiniZinc models to instance data and runs the external solver.
package mzn

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

// familyByPrefix maps the two-character model file prefix to its solution encoding.
var familyByPrefix = map[string]model.Family{
	"01": model.FamilySuccessor, "02": model.FamilySuccessor, "03": model.FamilySuccessor,
	"04": model.FamilyOwnerPath, "05": model.FamilyOwnerPath, "06": model.FamilyOwnerPath,
	"07": model.FamilySuccessor, "08": model.FamilySuccessor, "09": model.FamilySuccessor,
	"10": model.FamilyPadded, "11": model.FamilyPadded, "12": model.FamilyPadded, "13": model.FamilyPadded,
	"14": model.FamilyPadded, "15": model.FamilyPadded, "16": model.FamilyPadded,
}

// solverBySuffix maps the text after the last '-' of a model file name to a solver id.
var solverBySuffix = map[string]string{
	" GECODE.mzn":             "gecode",
	" GECODE WITHOUT SYM.mzn": "gecode",
	" GECODE WITHOUT RAR.mzn": "gecode",
	" CHUFFED.mzn":            "chuffed",
	" ORTOOLS.mzn":            "cp-sat",
	" ORTOOLS CP.mzn":         "cp",
	" GUROBI.mzn":             "gurobi",
}

// FamilyForModel resolves the decoding family from the model file name.
func FamilyForModel(name string) (model.Family, error) {
	base := filepath.Base(name)
	if len(base) < 2 {
		return model.FamilyUnknown, bindingErrorf(name, "model name %q has no family prefix", base)
	}
	f, ok := familyByPrefix[base[:2]]
	if !ok {
		return model.FamilyUnknown, bindingErrorf(name, "no decoding family registered for prefix %q", base[:2])
	}
	return f, nil
}

// SolverForModel resolves the solver id from the model file name suffix, or fallback.
func SolverForModel(name, fallback string) string {
	base := filepath.Base(name)
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return fallback
	}
	if id, ok := solverBySuffix[base[i+1:]]; ok {
		return id
	}
	return fallback
}

// Label is the result-store key of a model: its file name without extension.
func Label(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Catalog lists the model files of a directory, addressable by two-digit selector.
type Catalog struct {
	Dir    string
	Models []string // sorted file names
}

// LoadCatalog reads the non-hidden files of dir in lexical order.
func LoadCatalog(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	c := &Catalog{Dir: dir}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		c.Models = append(c.Models, e.Name())
	}
	sort.Strings(c.Models)
	return c, nil
}

// Selector is the two-digit, 1-based selector of the i-th (0-based) model.
func Selector(i int) string { return fmt.Sprintf("%02d", i+1) }

// Resolve returns the model path for a selector such as "01".
func (c *Catalog) Resolve(selector string) (string, error) {
	for i, name := range c.Models {
		if Selector(i) == selector {
			return filepath.Join(c.Dir, name), nil
		}
	}
	return "", bindingErrorf(selector, "no model with selector %q in %s", selector, c.Dir)
}

// Paths returns every model path in selector order.
func (c *Catalog) Paths() []string {
	out := make([]string, len(c.Models))
	for i, name := range c.Models {
		out[i] = filepath.Join(c.Dir, name)
	}
	return out
}
