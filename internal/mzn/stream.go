package mzn

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

// streamMessage is one line of `minizinc --json-stream` output.
type streamMessage struct {
	Type       string                     `json:"type"`
	Status     string                     `json:"status,omitempty"`
	Output     *streamOutput              `json:"output,omitempty"`
	Statistics map[string]json.RawMessage `json:"statistics,omitempty"`
	What       string                     `json:"what,omitempty"`
	Message    string                     `json:"message,omitempty"`
}

type streamOutput struct {
	JSON json.RawMessage `json:"json,omitempty"`
}

type solutionVars struct {
	Sequence   [][]int      `json:"sequence"`
	Path       [][]int      `json:"path"`
	Objective  *json.Number `json:"_objective"`
	Objective2 *json.Number `json:"objective"`
}

// SolverError is an error message reported inside the solver output stream.
type SolverError struct {
	What    string
	Message string
}

func (e *SolverError) Error() string {
	if e.What == "" {
		return "solver error: " + e.Message
	}
	return fmt.Sprintf("solver %s: %s", e.What, e.Message)
}

// ParseStream folds a JSON stream into an Outcome. The last solution wins; a final
// status message decides optimality; a solution without one means the budget ran out.
func ParseStream(r io.Reader) (Outcome, error) {
	out := Outcome{Status: model.StatusUnknown}
	var final string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var msg streamMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return out, fmt.Errorf("decode solver message: %w", err)
		}
		switch msg.Type {
		case "solution":
			if msg.Output == nil || len(msg.Output.JSON) == 0 {
				return out, fmt.Errorf("solution message without json output")
			}
			a, err := decodeSolution(msg.Output.JSON)
			if err != nil {
				return out, err
			}
			out.Solution = &a
		case "status":
			final = msg.Status
		case "statistics":
			if raw, ok := msg.Statistics["solveTime"]; ok {
				var secs float64
				if err := json.Unmarshal(raw, &secs); err == nil && secs >= 0 {
					out.SolveTime = time.Duration(secs * float64(time.Second))
					out.HasStats = true
				}
			}
		case "error":
			return out, &SolverError{What: msg.What, Message: msg.Message}
		}
	}
	if err := sc.Err(); err != nil {
		return out, err
	}
	out.Status = classifyStatus(final, out.Solution != nil)
	if !out.Status.HasSolution() {
		out.Solution = nil
	}
	return out, nil
}

func classifyStatus(final string, haveSolution bool) model.Status {
	switch strings.ToUpper(final) {
	case "OPTIMAL_SOLUTION":
		if haveSolution {
			return model.StatusOptimal
		}
	case "ALL_SOLUTIONS", "SATISFIED":
		if haveSolution {
			return model.StatusSatisfied
		}
	case "UNSATISFIABLE":
		return model.StatusUnsatisfiable
	case "UNKNOWN", "UNBOUNDED", "UNSAT_OR_UNBOUNDED", "ERROR":
		return model.StatusUnknown
	}
	if haveSolution {
		return model.StatusSatisfied
	}
	return model.StatusUnknown
}

func decodeSolution(raw json.RawMessage) (model.Assignment, error) {
	raw = bytes.TrimSpace(raw)
	// Older releases embed the json section as a string.
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.Assignment{}, fmt.Errorf("decode solution: %w", err)
		}
		raw = []byte(s)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var vars solutionVars
	if err := dec.Decode(&vars); err != nil {
		return model.Assignment{}, fmt.Errorf("decode solution: %w", err)
	}
	a := model.Assignment{Sequence: vars.Sequence, Path: vars.Path}
	obj := vars.Objective
	if obj == nil {
		obj = vars.Objective2
	}
	if obj != nil {
		v, err := obj.Float64()
		if err != nil || math.IsInf(v, 0) {
			return model.Assignment{}, fmt.Errorf("decode objective %q", obj.String())
		}
		a.Objective = model.NewObjective(v)
	}
	return a, nil
}
