package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// All selects every instance or every model.
const All = "all"

// Job is a parsed "<instances>-<model>" request such as "1:4-01", "1,3-01" or "all-all".
type Job struct {
	Instances string
	Model     string
}

// ParseJob splits expr at its last '-' and checks both halves.
func ParseJob(expr string) (Job, error) {
	expr = strings.TrimSpace(expr)
	i := strings.LastIndex(expr, "-")
	if i <= 0 || i == len(expr)-1 {
		return Job{}, fmt.Errorf("job %q: want <instances>-<model>, e.g. 1:4-01", expr)
	}
	j := Job{Instances: expr[:i], Model: expr[i+1:]}
	if !strings.EqualFold(j.Instances, All) {
		for _, part := range strings.Split(j.Instances, ",") {
			if _, _, err := parseRange(strings.TrimSpace(part)); err != nil {
				return Job{}, fmt.Errorf("instances %q: %w", j.Instances, err)
			}
		}
	}
	if err := checkModelSelector(j.Model); err != nil {
		return Job{}, err
	}
	return j, nil
}

func checkModelSelector(s string) error {
	if strings.EqualFold(s, All) {
		return nil
	}
	if n, err := strconv.Atoi(s); err != nil || n < 1 || len(s) != 2 {
		return fmt.Errorf("model selector %q: want two digits such as 01, or all", s)
	}
	return nil
}

// ParseInstances expands an instance expression into sorted 1-based instance numbers no
// greater than total. Accepted forms: "all", "7", "1:4" (inclusive) and "1,3" lists
// whose items may themselves be ranges.
func ParseInstances(expr string, total int) ([]int, error) {
	expr = strings.TrimSpace(expr)
	if strings.EqualFold(expr, All) {
		out := make([]int, total)
		for i := range out {
			out[i] = i + 1
		}
		return out, nil
	}
	seen := map[int]bool{}
	var out []int
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		lo, hi, err := parseRange(part)
		if err != nil {
			return nil, fmt.Errorf("instances %q: %w", expr, err)
		}
		if hi > total {
			return nil, fmt.Errorf("instances %q: %d exceeds the %d available instances", expr, hi, total)
		}
		for n := lo; n <= hi; n++ {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Ints(out)
	return out, nil
}

func parseRange(part string) (int, int, error) {
	a, b, isRange := strings.Cut(part, ":")
	lo, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil || lo < 1 {
		return 0, 0, fmt.Errorf("%q is not a positive instance number", a)
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil || hi < lo {
		return 0, 0, fmt.Errorf("range %q must be ascending", part)
	}
	return lo, hi, nil
}
