package stages

import (
	"math"
	"time"

	"github.com/jonathan/claim-detective/internal/types"
)

const defaultCredibilityTTL = time.Hour

// stringSlice reads a []string stored in stage data. Data that went through
// JSON comes back as []any.
func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// floatValue reads a number from response or stage data.
func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func priorStrings(prior map[string]types.StageResult, stage, key string) []string {
	res, ok := prior[stage]
	if !ok || res.Data == nil {
		return nil
	}
	return stringSlice(res.Data[key])
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
