// Package stages provides the six analysis stages of a verification run and
// the fixed, ordered registry the orchestrator executes them from.
package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/claim-detective/internal/analysis"
	"github.com/jonathan/claim-detective/internal/clarification"
	"github.com/jonathan/claim-detective/internal/credibility"
	"github.com/jonathan/claim-detective/internal/evidence"
	"github.com/jonathan/claim-detective/internal/store"
	"github.com/jonathan/claim-detective/internal/types"
)

// Stage names, in execution order.
const (
	ClaimParsing       = "claim-parsing"
	ContentAnalysis    = "content-analysis"
	FactChecking       = "fact-checking"
	SourceValidation   = "source-validation"
	CrossReferencing   = "cross-referencing"
	ReliabilityScoring = "reliability-scoring"
)

// Input is everything a stage may look at.
type Input struct {
	Claim    *types.Claim
	Prior    map[string]types.StageResult
	Evidence evidence.Provider
	// Response is set when the stage is re-entered after a clarification.
	Response *types.ClarificationResponse
}

// Outcome carries either a result or a request for human input.
type Outcome struct {
	Result  *types.StageResult
	Clarify *types.ClarificationNeed
}

// Stage is one unit of automated analysis.
type Stage interface {
	Name() string
	Analyze(ctx context.Context, in Input) (Outcome, error)
}

// Definition describes where a stage sits in the pipeline.
type Definition struct {
	Name         string
	Category     string
	Dependencies []string
}

// Definitions lists the built-in stages.
var Definitions = map[string]Definition{
	ClaimParsing:       {Name: ClaimParsing, Category: "detection"},
	ContentAnalysis:    {Name: ContentAnalysis, Category: "content"},
	FactChecking:       {Name: FactChecking, Category: "evidence", Dependencies: []string{ClaimParsing}},
	SourceValidation:   {Name: SourceValidation, Category: "evidence"},
	CrossReferencing:   {Name: CrossReferencing, Category: "evidence", Dependencies: []string{ClaimParsing}},
	ReliabilityScoring: {Name: ReliabilityScoring, Category: "scoring", Dependencies: []string{ClaimParsing, ContentAnalysis, FactChecking, SourceValidation, CrossReferencing}},
}

// DependencyError reports a stage registered before the stages it reads.
type DependencyError struct {
	Stage               string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("stage %s registered before its dependencies: %s", e.Stage, strings.Join(e.MissingDependencies, ", "))
}

// Registry is the closed, ordered list of stages a run executes.
type Registry struct {
	stages []Stage
}

// NewRegistry builds a registry in the given order. Stage names must be
// unique and every known dependency must come earlier.
func NewRegistry(stages ...Stage) (*Registry, error) {
	seen := make(map[string]bool, len(stages))
	for _, s := range stages {
		name := s.Name()
		if seen[name] {
			return nil, fmt.Errorf("duplicate stage: %s", name)
		}
		var missing []string
		for _, dep := range Definitions[name].Dependencies {
			if !seen[dep] {
				missing = append(missing, dep)
			}
		}
		if len(missing) > 0 {
			return nil, &DependencyError{Stage: name, MissingDependencies: missing}
		}
		seen[name] = true
	}
	return &Registry{stages: stages}, nil
}

// Deps are the collaborators the built-in stages need.
type Deps struct {
	Analyzer    analysis.TextAnalyzer
	Credibility *credibility.Scorer
	Claims      store.ClaimStore
	Policy      clarification.Policy
}

// Default returns the six built-in stages in their fixed order.
func Default(d Deps) *Registry {
	if d.Analyzer == nil {
		d.Analyzer = analysis.NewHeuristic()
	}
	if d.Credibility == nil {
		d.Credibility = credibility.NewScorer(defaultCredibilityTTL)
	}
	return &Registry{stages: []Stage{
		NewClaimParser(),
		NewContentAnalyzer(d.Analyzer),
		NewFactChecker(d.Credibility, d.Policy),
		NewSourceValidator(d.Credibility),
		NewCrossReferencer(d.Claims),
		NewReliabilityScorer(),
	}}
}

// Len returns the number of stages.
func (r *Registry) Len() int { return len(r.stages) }

// At returns the stage at index i.
func (r *Registry) At(i int) Stage { return r.stages[i] }

// Names returns the stage names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.stages))
	for i, s := range r.stages {
		names[i] = s.Name()
	}
	return names
}
