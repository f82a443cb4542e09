// Package report tabulates stored results across instances as a Markdown table.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
	"github.com/alishhde/Couriers-Planning-Problem/internal/store"
)

// NotAvailable marks an instance a model has no usable result for.
const NotAvailable = "N/A"

type Row struct {
	Model string   `json:"model"`
	Label string   `json:"label"`
	Cells []string `json:"cells"`
}

type Table struct {
	Instances []int `json:"instances"`
	Rows      []Row `json:"rows"`
}

// Build reads instances from..to (inclusive) from st. Rows appear in the order their
// label is first seen; an instance missing from the store leaves N/A cells.
func Build(ctx context.Context, st store.Store, from, to int) (Table, error) {
	if from < 1 || to < from {
		return Table{}, fmt.Errorf("instance range %d..%d is empty", from, to)
	}
	t := Table{}
	for i := from; i <= to; i++ {
		t.Instances = append(t.Instances, i)
	}
	index := map[string]int{}
	for col, inst := range t.Instances {
		results, err := st.Get(ctx, strconv.Itoa(inst))
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return Table{}, fmt.Errorf("instance %d: %w", inst, err)
		}
		labels := make([]string, 0, len(results))
		for label := range results {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			r, ok := index[label]
			if !ok {
				r = len(t.Rows)
				index[label] = r
				cells := make([]string, len(t.Instances))
				for c := range cells {
					cells[c] = NotAvailable
				}
				t.Rows = append(t.Rows, Row{Model: ModelName(label), Label: label, Cells: cells})
			}
			t.Rows[r].Cells[col] = Cell(results[label])
		}
	}
	return t, nil
}

// Cell renders one result: `**` marks a proven optimum, `*` a feasible solution.
func Cell(rec model.ResultRecord) string {
	switch {
	case !rec.Objective.Valid:
		return NotAvailable
	case rec.Optimal:
		return fmt.Sprintf("`**`%s (%ds)", rec.Objective, rec.Time)
	default:
		return fmt.Sprintf("`*`%s (%ds)", rec.Objective, rec.Time)
	}
}

// ModelName shortens a label such as "01. Successor - GECODE" to "Successor".
func ModelName(label string) string {
	name, _, _ := strings.Cut(label, "-")
	if _, rest, ok := strings.Cut(name, ". "); ok {
		name = rest
	}
	return strings.TrimSpace(name)
}

// Markdown renders the table with one column per instance.
func (t Table) Markdown() string {
	var b strings.Builder
	b.WriteString("| Model |")
	for _, i := range t.Instances {
		fmt.Fprintf(&b, " inst%d |", i)
	}
	b.WriteString("\n| :---: |")
	for range t.Instances {
		b.WriteString(" :---: |")
	}
	b.WriteString("\n")
	for _, r := range t.Rows {
		fmt.Fprintf(&b, "| %s | %s |\n", r.Model, strings.Join(r.Cells, " | "))
	}
	return b.String()
}
