package dzn

import (
	"strconv"
	"strings"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

// Parse reads a data block in the layout produced by Format. Statement order is free,
// but all five assignments must be present and consistent with the declared counts.
func Parse(text string) (model.TranscodedInstance, error) {
	stmts := map[string]string{}
	for _, stmt := range strings.Split(text, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		name, value, ok := strings.Cut(stmt, "=")
		if !ok {
			return model.TranscodedInstance{}, formatErrorf("", 0, "statement %q is not an assignment", abbreviate(stmt))
		}
		stmts[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	for _, name := range []string{"num_courier", "num_item", "courier_capacity", "item_size", "distance_mat"} {
		if _, ok := stmts[name]; !ok {
			return model.TranscodedInstance{}, formatErrorf("", 0, "missing assignment %s", name)
		}
	}

	var inst model.TranscodedInstance
	var err error
	if inst.NumCourier, err = parseScalar("num_courier", stmts["num_courier"]); err != nil {
		return model.TranscodedInstance{}, err
	}
	if inst.NumItem, err = parseScalar("num_item", stmts["num_item"]); err != nil {
		return model.TranscodedInstance{}, err
	}
	if inst.Capacity, err = parseArray("courier_capacity", stmts["courier_capacity"], inst.NumCourier); err != nil {
		return model.TranscodedInstance{}, err
	}
	if inst.ItemSize, err = parseArray("item_size", stmts["item_size"], inst.NumItem); err != nil {
		return model.TranscodedInstance{}, err
	}
	if inst.Distances, err = parseMatrix(stmts["distance_mat"], inst.NumItem+1); err != nil {
		return model.TranscodedInstance{}, err
	}
	inst.Text = text
	return inst, nil
}

func parseScalar(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, formatErrorf("", 0, "%s: %q is not an integer", name, value)
	}
	if n < 1 {
		return 0, formatErrorf("", 0, "%s must be positive, got %d", name, n)
	}
	return n, nil
}

func parseArray(name, value string, want int) ([]int, error) {
	if !strings.HasPrefix(value, "[") || !strings.HasSuffix(value, "]") {
		return nil, formatErrorf("", 0, "%s: expected a [...] literal", name)
	}
	vals, err := splitInts(name, strings.TrimSuffix(strings.TrimPrefix(value, "["), "]"))
	if err != nil {
		return nil, err
	}
	if len(vals) != want {
		return nil, formatErrorf("", 0, "%s: expected %d values, got %d", name, want, len(vals))
	}
	return vals, nil
}

func parseMatrix(value string, points int) ([][]int, error) {
	if !strings.HasPrefix(value, "[|") || !strings.HasSuffix(value, "|]") {
		return nil, formatErrorf("", 0, "distance_mat: expected a [| ... |] literal")
	}
	body := strings.TrimSuffix(strings.TrimPrefix(value, "[|"), "|]")
	rows := strings.Split(body, "|")
	if len(rows) != points {
		return nil, formatErrorf("", 0, "distance_mat: expected %d rows, got %d", points, len(rows))
	}
	out := make([][]int, points)
	for i, row := range rows {
		vals, err := splitInts("distance_mat", row)
		if err != nil {
			return nil, err
		}
		if len(vals) != points {
			return nil, formatErrorf("", 0, "distance_mat row %d: expected %d values, got %d", i+1, points, len(vals))
		}
		out[i] = vals
	}
	return out, nil
}

func splitInts(name, body string) ([]int, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}
	parts := strings.Split(body, ",")
	out := make([]int, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" && i == len(parts)-1 {
			// MiniZinc accepts a trailing comma.
			break
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, formatErrorf("", 0, "%s: %q is not an integer", name, p)
		}
		out = append(out, v)
	}
	return out, nil
}

func abbreviate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
