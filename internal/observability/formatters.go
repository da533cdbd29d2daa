// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/claim-detective/internal/stages"
	"github.com/jonathan/claim-detective/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// stageMarks maps a stage status to its list marker.
var stageMarks = map[string]string{
	types.StageStatusCompleted: "✓",
	types.StageStatusFailed:    "✗",
	types.StageStatusRunning:   "▶",
}

// PrintRun outputs the state of a run and the confidence of each stage.
func (p *Printer) PrintRun(claim *types.Claim, run *types.Run) {
	if run == nil {
		return
	}

	var sb strings.Builder
	if claim != nil {
		sb.WriteString(fmt.Sprintf("Claim:  %s\n", truncate(claim.Text, 46)))
	}
	sb.WriteString(fmt.Sprintf("Run:    %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("State:  %s\n\n", run.State))

	for _, stage := range run.Stages {
		mark, ok := stageMarks[stage.Status]
		if !ok {
			mark = "·"
		}
		sb.WriteString(fmt.Sprintf("%s %-20s", mark, stage.Name))
		if stage.Confidence != nil {
			sb.WriteString(fmt.Sprintf(" %.2f", *stage.Confidence))
		}
		if stage.ErrorMessage != nil {
			sb.WriteString(" (failed)")
		}
		sb.WriteString("\n")
	}
	if run.Error != nil {
		sb.WriteString(fmt.Sprintf("\nError: %s\n", *run.Error))
	}

	p.printBox("VERIFICATION RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintScore outputs a reliability score with its band and factors.
func (p *Printer) PrintScore(score *types.ReliabilityScore) {
	if score == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Score:   %.3f (%s)\n", score.Value, stages.VerdictBand(score.Value)))
	sb.WriteString(fmt.Sprintf("Source:  %s\n", score.Source))

	if len(score.Factors) > 0 {
		sb.WriteString("\nFactors:\n")
		names := make([]string, 0, len(score.Factors))
		for name := range score.Factors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("  • %-20s %.3f\n", name, score.Factors[name]))
		}
	}
	if score.Justification != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", score.Justification))
	}

	p.printBox("RELIABILITY SCORE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintConsensus outputs the result of folding crowd verifications.
func (p *Printer) PrintConsensus(result *types.ConsensusResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Verifications:  %d\n", result.Count))
	if result.Reached {
		sb.WriteString(fmt.Sprintf("Consensus:      %s\n", result.DominantVerdict))
	} else {
		sb.WriteString("Consensus:      not reached\n")
	}
	sb.WriteString(fmt.Sprintf("Agreement:      %.1f%%\n", result.Agreement*100))
	sb.WriteString(fmt.Sprintf("Weighted score: %.3f\n", result.WeightedScore))

	if len(result.GroupWeights) > 0 {
		sb.WriteString("\n")
		for _, verdict := range types.Verdicts {
			if w, ok := result.GroupWeights[verdict]; ok {
				sb.WriteString(fmt.Sprintf("  • %-12s %.2f\n", verdict, w))
			}
		}
	}

	p.printBox("CROWD CONSENSUS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintClarifications outputs pending clarification requests.
func (p *Printer) PrintClarifications(reqs []types.ClarificationRequest) {
	if len(reqs) == 0 {
		return
	}

	var sb strings.Builder
	count := min(len(reqs), maxItemsToShow)
	for i := 0; i < count; i++ {
		req := reqs[i]
		sb.WriteString(fmt.Sprintf("[%s] %s\n", req.Priority, truncate(req.Title, 44)))
		sb.WriteString(fmt.Sprintf("    %s, expires %s\n", req.Type, req.ExpiresAt.Format("15:04:05")))
		if len(req.Options) > 0 {
			sb.WriteString(fmt.Sprintf("    Options: %s\n", strings.Join(req.Options, ", ")))
		}
	}
	if len(reqs) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(reqs)-maxItemsToShow))
	}

	p.printBox(fmt.Sprintf("PENDING CLARIFICATIONS (%d)", len(reqs)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAudit outputs the most recent audit events.
func (p *Printer) PrintAudit(events []types.AuditEvent) {
	if len(events) == 0 {
		p.printBox("AUDIT TRAIL", "No events recorded")
		return
	}

	var sb strings.Builder
	start := max(len(events)-maxItemsToShow*2, 0)
	if start > 0 {
		sb.WriteString(fmt.Sprintf("... %d earlier events\n", start))
	}
	for _, ev := range events[start:] {
		sb.WriteString(fmt.Sprintf("%s  %s", ev.Timestamp.Format("15:04:05.000"), ev.Type))
		if ev.ActorID != nil && *ev.ActorID != "" {
			sb.WriteString(fmt.Sprintf(" by %s", *ev.ActorID))
		}
		sb.WriteString("\n")
	}

	p.printBox(fmt.Sprintf("AUDIT TRAIL (%d events)", len(events)), strings.TrimSuffix(sb.String(), "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
