package mzn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

// DefaultTimeBudget is the wall-clock limit given to every solve.
const DefaultTimeBudget = 300 * time.Second

// Outcome is what the solver reports for one binding.
type Outcome struct {
	Status   model.Status
	Solution *model.Assignment // set iff Status.HasSolution()
	// SolveTime comes from the solver statistics; zero when HasStats is false.
	SolveTime time.Duration
	HasStats  bool
	Elapsed   time.Duration
}

// Solver is the external constraint solver boundary.
type Solver interface {
	Solve(ctx context.Context, b Binding, budget time.Duration) (Outcome, error)
}

// CLISolver runs the minizinc executable in JSON stream mode.
type CLISolver struct {
	Binary string
	// Grace is added to the budget before the process is killed; minizinc enforces
	// the budget itself and needs a moment to report the best solution found.
	Grace     time.Duration
	ExtraArgs []string
	Log       *zap.Logger
}

// NewCLISolver returns a solver using binary, or "minizinc" from PATH when empty.
func NewCLISolver(binary string, log *zap.Logger) *CLISolver {
	if binary == "" {
		binary = "minizinc"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CLISolver{Binary: binary, Grace: 30 * time.Second, Log: log}
}

// Args builds the command line for a binding.
func (s *CLISolver) Args(b Binding, budget time.Duration) []string {
	args := []string{
		"--solver", b.SolverID,
		"--time-limit", strconv.FormatInt(budget.Milliseconds(), 10),
		"--json-stream",
		"--output-mode", "json",
		"--output-objective",
		"--statistics",
	}
	args = append(args, s.ExtraArgs...)
	args = append(args, "--cmdline-data", b.Instance.Text, b.ModelPath)
	return args
}

func (s *CLISolver) Solve(ctx context.Context, b Binding, budget time.Duration) (Outcome, error) {
	if budget <= 0 {
		budget = DefaultTimeBudget
	}
	ctx, cancel := context.WithTimeout(ctx, budget+s.Grace)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Binary, s.Args(b, budget)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	out, parseErr := ParseStream(&stdout)
	out.Elapsed = elapsed
	if parseErr != nil {
		return out, fmt.Errorf("%s on %s: %w", b.SolverID, b.Label, parseErr)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) && ctx.Err() == nil {
			return out, fmt.Errorf("run %s: %w", s.Binary, runErr)
		}
		if out.Status == model.StatusUnknown && out.Solution == nil && ctx.Err() == nil {
			return out, fmt.Errorf("%s exited: %w: %s", s.Binary, runErr, bytes.TrimSpace(stderr.Bytes()))
		}
		s.Log.Warn("solver process ended abnormally",
			zap.String("model", b.Label),
			zap.String("solver", b.SolverID),
			zap.String("status", string(out.Status)),
			zap.Error(runErr))
	}
	return out, nil
}
