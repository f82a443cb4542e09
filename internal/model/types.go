package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Core domain types shared by the transcoder, decoder, classifier and stores.

// RawInstance is a tabular instance file split into lines.
type RawInstance struct {
	Name  string
	Lines []string
}

// TranscodedInstance is a parsed instance plus its MiniZinc data text.
type TranscodedInstance struct {
	NumCourier int
	NumItem    int
	Capacity   []int
	ItemSize   []int
	Distances  [][]int // (NumItem+1)x(NumItem+1), depot last
	Text       string
}

// DistributionPoints is the node count: items plus the depot.
func (t TranscodedInstance) DistributionPoints() int { return t.NumItem + 1 }

// Depot is the 1-based node id of the depot.
func (t TranscodedInstance) Depot() int { return t.NumItem + 1 }

// Route is the ordered list of 1-based item nodes for one courier, depot excluded.
type Route []int

// Assignment is the raw variable binding returned by the solver.
type Assignment struct {
	Sequence  [][]int   `json:"sequence,omitempty"`
	Path      [][]int   `json:"path,omitempty"`
	Objective Objective `json:"-"`
}

// Status is the terminal classification reported by the solver.
type Status string

const (
	StatusOptimal       Status = "OPTIMAL_SOLUTION"
	StatusSatisfied     Status = "SATISFIED"
	StatusUnsatisfiable Status = "UNSATISFIABLE"
	StatusUnknown       Status = "UNKNOWN"
)

// HasSolution reports whether a solution accompanies the status.
func (s Status) HasSolution() bool { return s == StatusOptimal || s == StatusSatisfied }

// Objective is a numeric objective value or "N/A" when absent.
type Objective struct {
	Value float64
	Valid bool
}

// NewObjective returns a present objective.
func NewObjective(v float64) Objective { return Objective{Value: v, Valid: true} }

// NoObjective is the "N/A" objective.
var NoObjective = Objective{}

func (o Objective) String() string {
	if !o.Valid {
		return "N/A"
	}
	return strconv.FormatFloat(o.Value, 'f', -1, 64)
}

// Int returns the objective rounded to the nearest integer.
func (o Objective) Int() (int, bool) {
	if !o.Valid {
		return 0, false
	}
	return int(math.Round(o.Value)), true
}

func (o Objective) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte(`"N/A"`), nil
	}
	if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return nil, fmt.Errorf("objective %v is not representable", o.Value)
	}
	return []byte(strconv.FormatFloat(o.Value, 'f', -1, 64)), nil
}

func (o *Objective) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*o = NoObjective
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "N/A" || s == "" {
			*o = NoObjective
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("objective %q: %w", s, err)
		}
		*o = NewObjective(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = NewObjective(v)
	return nil
}

// ResultRecord is the persisted outcome of one (instance, model) run.
type ResultRecord struct {
	Label     string    `json:"-"`
	Time      int       `json:"time"`
	Optimal   bool      `json:"optimal"`
	Objective Objective `json:"obj"`
	Routes    []Route   `json:"sol"`
}

// InstanceResults maps solver label to its record for one instance.
type InstanceResults map[string]ResultRecord

// SysInfo saves the basic system information of the solving host.
type SysInfo struct {
	Platform string `json:"platform"`
	CPU      string `json:"cpu"`
	RAM      string `json:"ram"`
}
