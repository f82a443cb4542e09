package mzn

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/alishhde/Couriers-Planning-Problem/internal/dzn"
	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

// BindingError reports a model or instance that cannot be bound for solving.
type BindingError struct {
	Ref    string
	Reason string
	Err    error
}

func (e *BindingError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Reason
	if e.Ref != "" {
		msg = e.Ref + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BindingError) Unwrap() error { return e.Err }

func bindingErrorf(ref, format string, args ...any) error {
	return &BindingError{Ref: ref, Reason: fmt.Sprintf(format, args...)}
}

// Binding is a solver-ready unit: a readable model file plus instance data.
type Binding struct {
	ModelPath string
	Label     string
	SolverID  string
	Family    model.Family
	Instance  model.TranscodedInstance
}

// Couriers is the number of routes a decoded solution must hold.
func (b Binding) Couriers() int { return b.Instance.NumCourier }

// DistributionPoints is items plus depot.
func (b Binding) DistributionPoints() int { return b.Instance.DistributionPoints() }

// Binder resolves model references into Bindings.
type Binder struct {
	// DefaultSolver is used when the model file name carries no known solver suffix.
	DefaultSolver string
}

// Bind loads the model and attaches a transcoded instance.
func (b Binder) Bind(modelPath string, inst model.TranscodedInstance) (Binding, error) {
	family, err := FamilyForModel(modelPath)
	if err != nil {
		return Binding{}, err
	}
	if err := checkReadable(modelPath); err != nil {
		return Binding{}, err
	}
	if inst.NumCourier < 1 {
		return Binding{}, bindingErrorf(modelPath, "instance declares no couriers")
	}
	if inst.Text == "" {
		inst.Text = dzn.Format(inst)
	}
	fallback := b.DefaultSolver
	if fallback == "" {
		fallback = "gecode"
	}
	return Binding{
		ModelPath: modelPath,
		Label:     Label(modelPath),
		SolverID:  SolverForModel(modelPath, fallback),
		Family:    family,
		Instance:  inst,
	}, nil
}

// checkReadable opens the model once; minizinc reads it again by path.
func checkReadable(modelPath string) error {
	fh, err := os.Open(modelPath)
	if err != nil {
		return &BindingError{Ref: modelPath, Reason: "model not readable", Err: err}
	}
	defer fh.Close()
	fi, err := fh.Stat()
	if err != nil {
		return &BindingError{Ref: modelPath, Reason: "model not readable", Err: err}
	}
	if fi.IsDir() {
		return bindingErrorf(modelPath, "model is a directory")
	}
	return nil
}

// BindText binds a model to instance data text, such as a pre-transcoded .dzn file.
func (b Binder) BindText(modelPath, text string) (Binding, error) {
	couriers, err := CourierCount(text)
	if err != nil {
		return Binding{}, err
	}
	inst, err := dzn.Parse(text)
	if err != nil {
		return Binding{}, &BindingError{Ref: modelPath, Reason: "instance data not parseable", Err: err}
	}
	if inst.NumCourier != couriers {
		return Binding{}, bindingErrorf(modelPath, "courier count %d does not match num_courier %d", couriers, inst.NumCourier)
	}
	return b.Bind(modelPath, inst)
}

var digitRun = regexp.MustCompile(`\d+`)

// CourierCount extracts the first run of digits before the first ';' of instance text.
func CourierCount(text string) (int, error) {
	flat := strings.ReplaceAll(strings.ReplaceAll(text, "\r", ""), "\n", "")
	first, _, _ := strings.Cut(flat, ";")
	m := digitRun.FindString(first)
	if m == "" {
		return 0, bindingErrorf("", "instance text has no courier count before the first ';'")
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, &BindingError{Reason: "courier count out of range", Err: err}
	}
	return n, nil
}
