// Package dzn converts tabular courier instances into MiniZinc data blocks and back.
package dzn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

// DataFormatError reports a malformed raw instance or data block.
type DataFormatError struct {
	Source string
	Line   int // 1-based; 0 when the error is not tied to a line
	Reason string
}

func (e *DataFormatError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Source != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Reason)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	case e.Source != "":
		return fmt.Sprintf("%s: %s", e.Source, e.Reason)
	}
	return e.Reason
}

func formatErrorf(src string, line int, format string, args ...any) error {
	return &DataFormatError{Source: src, Line: line, Reason: fmt.Sprintf(format, args...)}
}

// Line layout of a raw instance.
const (
	lineCouriers   = 0
	lineItems      = 1
	lineCapacities = 2
	lineSizes      = 3
	lineMatrix     = 4
)

// Transcode parses a raw instance and renders its MiniZinc data block.
func Transcode(raw model.RawInstance) (model.TranscodedInstance, error) {
	inst, err := ParseRaw(raw)
	if err != nil {
		return model.TranscodedInstance{}, err
	}
	inst.Text = Format(inst)
	return inst, nil
}

// ParseRaw validates the fixed line layout and returns the typed instance without text.
func ParseRaw(raw model.RawInstance) (model.TranscodedInstance, error) {
	src := raw.Name
	lines := trimTrailingBlank(raw.Lines)
	if len(lines) < lineMatrix {
		return model.TranscodedInstance{}, formatErrorf(src, 0, "expected at least %d header lines, got %d", lineMatrix, len(lines))
	}

	var inst model.TranscodedInstance
	var err error
	if inst.NumCourier, err = parseCount(src, lines, lineCouriers, "courier count"); err != nil {
		return model.TranscodedInstance{}, err
	}
	if inst.NumItem, err = parseCount(src, lines, lineItems, "item count"); err != nil {
		return model.TranscodedInstance{}, err
	}
	if inst.Capacity, err = parseRow(src, lines, lineCapacities, inst.NumCourier, "courier capacities"); err != nil {
		return model.TranscodedInstance{}, err
	}
	if inst.ItemSize, err = parseRow(src, lines, lineSizes, inst.NumItem, "item sizes"); err != nil {
		return model.TranscodedInstance{}, err
	}

	points := inst.NumItem + 1
	if got := len(lines) - lineMatrix; got != points {
		return model.TranscodedInstance{}, formatErrorf(src, 0, "distance matrix has %d rows, want %d", got, points)
	}
	inst.Distances = make([][]int, points)
	for r := 0; r < points; r++ {
		row, err := parseRow(src, lines, lineMatrix+r, points, "distance matrix row")
		if err != nil {
			return model.TranscodedInstance{}, err
		}
		inst.Distances[r] = row
	}
	return inst, nil
}

// Format renders the five named assignments in declaration order.
func Format(inst model.TranscodedInstance) string {
	var b strings.Builder
	fmt.Fprintf(&b, "num_courier = %d;\n", inst.NumCourier)
	fmt.Fprintf(&b, "num_item = %d;\n", inst.NumItem)
	fmt.Fprintf(&b, "courier_capacity = [%s];\n", joinInts(inst.Capacity))
	fmt.Fprintf(&b, "item_size = [%s];\n", joinInts(inst.ItemSize))
	b.WriteString("distance_mat = [")
	for _, row := range inst.Distances {
		b.WriteString("| ")
		b.WriteString(joinInts(row))
		b.WriteByte('\n')
	}
	if len(inst.Distances) == 0 {
		b.WriteByte('\n')
	}
	b.WriteString("|];\n")
	return b.String()
}

func parseCount(src string, lines []string, idx int, what string) (int, error) {
	fields := strings.Fields(lines[idx])
	if len(fields) != 1 {
		return 0, formatErrorf(src, idx+1, "%s: expected a single value, got %d fields", what, len(fields))
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, formatErrorf(src, idx+1, "%s: %q is not an integer", what, fields[0])
	}
	if n < 1 {
		return 0, formatErrorf(src, idx+1, "%s must be positive, got %d", what, n)
	}
	return n, nil
}

func parseRow(src string, lines []string, idx, want int, what string) ([]int, error) {
	fields := strings.Fields(lines[idx])
	if len(fields) != want {
		return nil, formatErrorf(src, idx+1, "%s: expected %d values, got %d", what, want, len(fields))
	}
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, formatErrorf(src, idx+1, "%s: value %d (%q) is not an integer", what, i+1, f)
		}
		out[i] = v
	}
	return out, nil
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func trimTrailingBlank(lines []string) []string {
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[:end]
}
