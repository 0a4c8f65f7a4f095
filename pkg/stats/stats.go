package stats

import (
	"math"
	"sort"
)

// Observed returns the non-NaN values of x in their original order.
func Observed(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Mode returns the most frequent value in the slice. Ties resolve to the
// smallest value. ok is false when x is empty.
func Mode(x []float64) (mode float64, ok bool) {
	if len(x) == 0 {
		return 0, false
	}
	counts := make(map[float64]int, len(x))
	for _, v := range x {
		counts[v]++
	}
	keys := make([]float64, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, true
}

// ModeString is Mode for categorical values, ties resolving to the
// lexically smallest string.
func ModeString(x []string) (mode string, ok bool) {
	if len(x) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(x))
	for _, v := range x {
		counts[v]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, true
}
