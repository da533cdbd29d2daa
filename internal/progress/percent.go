// Package progress derives run and claim status from stored state. It keeps
// no progress of its own.
package progress

import (
	"math"

	"github.com/jonathan/claim-detective/internal/types"
)

// Percent is the share of terminal stages in run, in [0, 100]. A completed
// run reports 100. Stages never leave a terminal status, so the value only
// grows over a run's lifetime and holds still while the run is suspended.
func Percent(run *types.Run) float64 {
	if run == nil || len(run.Stages) == 0 {
		return 0
	}
	if run.State == types.RunStateCompleted {
		return 100
	}
	p := float64(run.CompletedStages()) / float64(len(run.Stages)) * 100
	p = math.Round(p*10) / 10
	return math.Max(0, math.Min(100, p))
}

// CurrentStage names the first unfinished stage, or "" when none remain.
func CurrentStage(run *types.Run) string {
	if run == nil {
		return ""
	}
	if s := run.CurrentStage(); s != nil {
		return s.Name
	}
	return ""
}
