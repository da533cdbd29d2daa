// Package pipeline runs the verification stages of a claim in order,
// suspending the run when a stage needs a human decision and resuming it
// once the clarification is resolved.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/audit"
	"github.com/jonathan/claim-detective/internal/clarification"
	"github.com/jonathan/claim-detective/internal/evidence"
	"github.com/jonathan/claim-detective/internal/keylock"
	"github.com/jonathan/claim-detective/internal/progress"
	"github.com/jonathan/claim-detective/internal/stages"
	"github.com/jonathan/claim-detective/internal/store"
	"github.com/jonathan/claim-detective/internal/types"
)

// Repository is the slice of persistence the orchestrator writes to.
type Repository interface {
	store.ClaimStore
	store.RunStore
	store.ScoreStore
}

// Options configures an Orchestrator. Zero values select defaults.
type Options struct {
	Registry       *stages.Registry
	Evidence       evidence.Provider
	Notifier       Notifier
	MinClaimLength int
	Clock          func() time.Time
}

// Orchestrator owns the lifecycle of runs.
type Orchestrator struct {
	repo     Repository
	coord    *clarification.Coordinator
	audit    *audit.Log
	registry *stages.Registry
	evidence evidence.Provider
	notifier Notifier
	minLen   int
	now      func() time.Time

	locks *keylock.Map
	wg    sync.WaitGroup
}

// New creates an orchestrator and registers it as the coordinator's resumer.
func New(repo Repository, coord *clarification.Coordinator, auditLog *audit.Log, opts Options) *Orchestrator {
	if opts.Registry == nil {
		opts.Registry = stages.Default(stages.Deps{Claims: repo, Policy: coord.Policy()})
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(ProgressEvent) {})
	}
	if opts.MinClaimLength <= 0 {
		opts.MinClaimLength = types.MinClaimLength
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	o := &Orchestrator{
		repo:     repo,
		coord:    coord,
		audit:    auditLog,
		registry: opts.Registry,
		evidence: opts.Evidence,
		notifier: opts.Notifier,
		minLen:   opts.MinClaimLength,
		now:      opts.Clock,
		locks:    keylock.New(),
	}
	coord.SetResumer(o)
	return o
}

// Registry returns the stages runs execute.
func (o *Orchestrator) Registry() *stages.Registry { return o.registry }

// Submit stores a new claim and starts its first run.
func (o *Orchestrator) Submit(ctx context.Context, text string, sourceURLs []string, actorID string) (*types.Claim, *types.Run, error) {
	req := types.CreateClaimRequest{ClaimText: text, SourceURLs: sourceURLs}
	if err := req.Validate(o.minLen); err != nil {
		return nil, nil, err
	}

	claim := types.NewClaim(text, sourceURLs, o.now())
	if err := o.repo.CreateClaim(ctx, claim); err != nil {
		return nil, nil, types.Infra("create claim", err)
	}
	if err := o.audit.Record(ctx, claim.ID, nil, actorID, types.EventClaimSubmitted, map[string]any{
		"fingerprint":  claim.Fingerprint,
		"source_count": len(claim.SourceURLs),
		"text_length":  len([]rune(claim.Text)),
	}); err != nil {
		return nil, nil, err
	}
	log.Printf("[pipeline] claim %s submitted", claim.ID)

	run, err := o.StartRun(ctx, claim.ID, actorID)
	if err != nil {
		return claim, nil, err
	}
	return claim, run, nil
}

// StartRun creates a run for an existing claim and executes it in the
// background. It returns the run as created.
func (o *Orchestrator) StartRun(ctx context.Context, claimID uuid.UUID, actorID string) (*types.Run, error) {
	claim, err := o.repo.GetClaim(ctx, claimID)
	if err != nil {
		return nil, types.Infra("get claim", err)
	}
	if claim == nil {
		return nil, &types.NotFoundError{Kind: "claim", ID: claimID.String()}
	}

	run := types.NewRun(claim.ID, o.registry.Names(), o.now())
	if err := o.repo.CreateRun(ctx, run); err != nil {
		return nil, types.Infra("create run", err)
	}
	log.Printf("[pipeline] run %s created for claim %s", run.ID, claim.ID)

	o.dispatch(ctx, run.ID, nil, actorID)
	return run.Clone(), nil
}

// Resume re-enters the suspended stage of runID with resp. It implements
// clarification.Resumer.
func (o *Orchestrator) Resume(ctx context.Context, runID uuid.UUID, resp types.ClarificationResponse) error {
	run, err := o.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if err := resumable(run, resp); err != nil {
		return err
	}
	o.dispatch(ctx, runID, &resp, resp.ResponderID)
	return nil
}

func resumable(run *types.Run, resp types.ClarificationResponse) error {
	if run.State != types.RunStateAwaitingClarification {
		return &types.InvalidTransitionError{From: run.State, To: types.RunStateRunning}
	}
	st := run.CurrentStage()
	if st == nil || st.Index != resp.StageIndex {
		return &types.ValidationError{Field: "stage_index", Message: fmt.Sprintf("run %s is not suspended at stage %d", run.ID, resp.StageIndex)}
	}
	if st.ClarificationID != nil && *st.ClarificationID != resp.RequestID {
		return &types.ValidationError{Field: "request_id", Message: fmt.Sprintf("stage %d is waiting on %s", st.Index, *st.ClarificationID)}
	}
	return nil
}

// RequestClarification suspends an active run on an externally raised
// clarification. stage_index must name the run's current stage. A run that
// has not started yet is started first, so its execution finds it suspended.
func (o *Orchestrator) RequestClarification(ctx context.Context, runID uuid.UUID, req types.CreateClarificationRequest) (*types.ClarificationRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := o.locks.Lock(runID)
	defer unlock()

	run, err := o.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	params := clarification.CreateParams{
		RunID:          run.ID,
		ClaimID:        run.ClaimID,
		StageIndex:     *req.StageIndex,
		Type:           req.Type,
		Priority:       req.Priority,
		Title:          req.Title,
		Description:    req.Description,
		Options:        req.Options,
		DefaultValue:   req.DefaultValue,
		TimeoutSeconds: req.TimeoutSeconds,
	}
	if err := clarification.ValidateParams(params); err != nil {
		return nil, err
	}
	if err := attachable(run, params.StageIndex); err != nil {
		return nil, err
	}

	if run.State == types.RunStateCreated {
		if err := o.enter(ctx, run, "", types.EventRunStarted, nil); err != nil {
			return nil, err
		}
		o.emit(run, EventRunStarted, -1, "Run started", nil)
	}
	created, err := o.park(ctx, run, params)
	if err != nil {
		o.fail(ctx, run, err)
		return nil, err
	}
	return created, nil
}

// attachable reports whether an external clarification may suspend run at
// stage i.
func attachable(run *types.Run, i int) error {
	if i >= len(run.Stages) {
		return &types.ValidationError{Field: "stage_index", Message: fmt.Sprintf("must be < %d", len(run.Stages))}
	}
	switch run.State {
	case types.RunStateCreated, types.RunStateRunning:
	default:
		return &types.InvalidTransitionError{From: run.State, To: types.RunStateAwaitingClarification}
	}
	if st := run.CurrentStage(); st == nil || st.Index != i {
		return &types.ValidationError{Field: "stage_index", Message: fmt.Sprintf("run %s is not at stage %d", run.ID, i)}
	}
	return nil
}

// GetRun returns the run or a *types.NotFoundError.
func (o *Orchestrator) GetRun(ctx context.Context, runID uuid.UUID) (*types.Run, error) {
	run, err := o.repo.GetRun(ctx, runID)
	if err != nil {
		return nil, types.Infra("get run", err)
	}
	if run == nil {
		return nil, &types.NotFoundError{Kind: "run", ID: runID.String()}
	}
	return run, nil
}

// Wait blocks until every dispatched execution has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

var errInterrupted = errors.New("process stopped before the run finished")

// Recover fails the runs a previous process left created or running. Nothing
// executes them anymore and they would block new runs of their claims.
// Awaiting runs are kept: their clarification still resumes them. Call it
// before serving, never alongside executions of this orchestrator.
func (o *Orchestrator) Recover(ctx context.Context) (int, error) {
	stale, err := o.repo.ListRunsByState(ctx, types.RunStateCreated, types.RunStateRunning)
	if err != nil {
		return 0, types.Infra("list stale runs", err)
	}
	recovered := 0
	for _, r := range stale {
		unlock := o.locks.Lock(r.ID)
		run, err := o.GetRun(ctx, r.ID)
		if err != nil || (run.State != types.RunStateCreated && run.State != types.RunStateRunning) {
			unlock()
			continue
		}
		cause := types.Infra("execute run", errInterrupted)
		for i := range run.Stages {
			if st := &run.Stages[i]; st.Status == types.StageStatusRunning {
				msg := cause.Error()
				st.Status = types.StageStatusFailed
				st.ErrorMessage = &msg
			}
		}
		o.fail(ctx, run, cause)
		unlock()
		if run.State == types.RunStateFailed {
			recovered++
		}
	}
	if recovered > 0 {
		log.Printf("[pipeline] recovered %d stale runs", recovered)
	}
	return recovered, nil
}

// dispatch executes the run in its own goroutine. The execution outlives the
// caller's request but keeps its values.
func (o *Orchestrator) dispatch(ctx context.Context, runID uuid.UUID, resp *types.ClarificationResponse, actorID string) {
	ctx = context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.execute(ctx, runID, resp, actorID)
	}()
}

// execute advances the run as far as it can go. State changes of one run
// are serialized.
func (o *Orchestrator) execute(ctx context.Context, runID uuid.UUID, resp *types.ClarificationResponse, actorID string) {
	unlock := o.locks.Lock(runID)
	defer unlock()

	run, err := o.GetRun(ctx, runID)
	if err != nil {
		log.Printf("[pipeline] failed to load run %s: %v", runID, err)
		return
	}
	claim, err := o.repo.GetClaim(ctx, run.ClaimID)
	if err == nil && claim == nil {
		err = &types.NotFoundError{Kind: "claim", ID: run.ClaimID.String()}
	}
	if err != nil {
		o.fail(ctx, run, fmt.Errorf("failed to load claim %s: %w", run.ClaimID, err))
		return
	}

	if err := o.advance(ctx, run, claim, resp, actorID); err != nil {
		o.fail(ctx, run, err)
	}
}

func (o *Orchestrator) advance(ctx context.Context, run *types.Run, claim *types.Claim, resp *types.ClarificationResponse, actorID string) error {
	switch run.State {
	case types.RunStateCreated:
		if err := o.enter(ctx, run, actorID, types.EventRunStarted, nil); err != nil {
			return err
		}
		o.emit(run, EventRunStarted, -1, "Run started", nil)
	case types.RunStateAwaitingClarification:
		if resp == nil || resumable(run, *resp) != nil {
			log.Printf("[pipeline] run %s is awaiting another clarification, skipping", run.ID)
			return nil
		}
		if err := o.enter(ctx, run, actorID, types.EventRunResumed, map[string]any{
			"request_id":  resp.RequestID.String(),
			"stage_index": resp.StageIndex,
			"fallback":    resp.Fallback,
		}); err != nil {
			return err
		}
		o.emit(run, EventRunResumed, resp.StageIndex, "Run resumed", nil)
	default:
		log.Printf("[pipeline] run %s is %s, nothing to execute", run.ID, run.State)
		return nil
	}

	for i := range run.Stages {
		if run.Stages[i].Terminal() {
			continue
		}
		var stageResp *types.ClarificationResponse
		if resp != nil && resp.StageIndex == i {
			stageResp, resp = resp, nil
		}
		suspended, err := o.runStage(ctx, run, claim, i, stageResp)
		if err != nil {
			return err
		}
		if suspended {
			return nil
		}
	}
	return o.finalize(ctx, run)
}

// enter moves the run to running and records why.
func (o *Orchestrator) enter(ctx context.Context, run *types.Run, actorID, eventType string, data map[string]any) error {
	if err := transition(run, types.RunStateRunning); err != nil {
		return err
	}
	if err := o.save(ctx, run); err != nil {
		return err
	}
	runID := run.ID
	return o.audit.Record(ctx, run.ClaimID, &runID, actorID, eventType, data)
}

// runStage executes stage i and reports whether the run suspended.
func (o *Orchestrator) runStage(ctx context.Context, run *types.Run, claim *types.Claim, i int, resp *types.ClarificationResponse) (bool, error) {
	st := &run.Stages[i]
	stage := o.registry.At(i)
	runID := run.ID

	if resp != nil && resp.Fallback && resp.Data == nil {
		return false, o.recordFailure(ctx, run, i, errors.New(resp.Reason))
	}

	now := o.now().UTC()
	st.Status = types.StageStatusRunning
	if st.StartedAt == nil {
		st.StartedAt = &now
	}
	if err := o.save(ctx, run); err != nil {
		return false, err
	}
	if err := o.audit.Record(ctx, run.ClaimID, &runID, "", types.EventStageStarted, map[string]any{
		"stage":       st.Name,
		"stage_index": i,
		"resumed":     resp != nil,
	}); err != nil {
		return false, err
	}
	o.emit(run, EventStageStarted, i, fmt.Sprintf("Running %s (%d/%d)", st.Name, i+1, len(run.Stages)), nil)

	outcome, err := invoke(ctx, stage, stages.Input{
		Claim:    claim,
		Prior:    run.Outputs(),
		Evidence: o.evidence,
		Response: resp,
	})
	switch {
	case err != nil:
		return false, o.recordFailure(ctx, run, i, err)
	case outcome.Clarify != nil && resp != nil:
		return false, o.recordFailure(ctx, run, i, errors.New("stage asked for clarification again after a response"))
	case outcome.Clarify != nil:
		return o.suspend(ctx, run, i, outcome.Clarify)
	case outcome.Result == nil:
		return false, o.recordFailure(ctx, run, i, errors.New("stage returned no result"))
	}

	result := outcome.Result
	result.Stage = st.Name
	if result.Evidence == nil {
		result.Evidence = []types.EvidenceRef{}
	}
	confidence := types.Clamp01(result.Confidence)
	result.Confidence = confidence
	done := o.now().UTC()
	st.Status = types.StageStatusCompleted
	st.Output = result
	st.Confidence = &confidence
	st.CompletedAt = &done
	if err := o.save(ctx, run); err != nil {
		return false, err
	}
	if err := o.audit.Record(ctx, run.ClaimID, &runID, "", types.EventStageCompleted, map[string]any{
		"stage":          st.Name,
		"stage_index":    i,
		"confidence":     confidence,
		"evidence_count": len(result.Evidence),
	}); err != nil {
		return false, err
	}
	o.emit(run, EventStageCompleted, i, fmt.Sprintf("Completed %s with confidence %.3f", st.Name, confidence), result)
	return false, nil
}

// invoke calls the stage, turning a panic into an error.
func invoke(ctx context.Context, stage stages.Stage, in stages.Input) (out stages.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return stage.Analyze(ctx, in)
}

// recordFailure degrades stage i to a zero-confidence result. The run goes on.
func (o *Orchestrator) recordFailure(ctx context.Context, run *types.Run, i int, cause error) error {
	st := &run.Stages[i]
	stageErr := &types.StageExecutionError{Stage: st.Name, Cause: cause}
	msg := stageErr.Error()
	zero := 0.0
	now := o.now().UTC()

	st.Status = types.StageStatusFailed
	st.Output = types.FailedResult(st.Name)
	st.Confidence = &zero
	st.ErrorMessage = &msg
	st.CompletedAt = &now
	if st.StartedAt == nil {
		st.StartedAt = &now
	}
	log.Printf("[pipeline] run %s: %v", run.ID, stageErr)

	if err := o.save(ctx, run); err != nil {
		return err
	}
	runID := run.ID
	if err := o.audit.Record(ctx, run.ClaimID, &runID, "", types.EventStageFailed, map[string]any{
		"stage":       st.Name,
		"stage_index": i,
		"error":       msg,
		"code":        stageErr.Code(),
	}); err != nil {
		return err
	}
	o.emit(run, EventStageFailed, i, msg, nil)
	return nil
}

// suspend parks the run on a clarification a stage asked for. No goroutine
// waits on it.
func (o *Orchestrator) suspend(ctx context.Context, run *types.Run, i int, need *types.ClarificationNeed) (bool, error) {
	_, err := o.park(ctx, run, clarification.CreateParams{
		RunID:          run.ID,
		ClaimID:        run.ClaimID,
		StageIndex:     i,
		Type:           need.Type,
		Priority:       need.Priority,
		Title:          need.Title,
		Description:    need.Description,
		Options:        need.Options,
		DefaultValue:   need.DefaultValue,
		TimeoutSeconds: need.TimeoutSeconds,
	})
	var validation *types.ValidationError
	switch {
	case errors.As(err, &validation):
		return false, o.recordFailure(ctx, run, i, err)
	case err != nil:
		return false, err
	}
	return true, nil
}

// park moves a running run to awaiting_clarification and creates the request
// it waits on. When the request cannot be stored the run is put back to
// running.
func (o *Orchestrator) park(ctx context.Context, run *types.Run, p clarification.CreateParams) (*types.ClarificationRequest, error) {
	i := p.StageIndex
	if err := transition(run, types.RunStateAwaitingClarification); err != nil {
		return nil, err
	}
	if err := o.save(ctx, run); err != nil {
		run.State = types.RunStateRunning
		return nil, err
	}

	req, err := o.coord.Create(ctx, p)
	if err != nil {
		if terr := transition(run, types.RunStateRunning); terr != nil {
			return nil, terr
		}
		return nil, err
	}

	run.Stages[i].ClarificationID = &req.ID
	if err := o.save(ctx, run); err != nil {
		return nil, err
	}
	runID := run.ID
	if err := o.audit.Record(ctx, run.ClaimID, &runID, "", types.EventRunSuspended, map[string]any{
		"stage":       run.Stages[i].Name,
		"stage_index": i,
		"request_id":  req.ID.String(),
		"priority":    req.Priority,
	}); err != nil {
		return nil, err
	}
	log.Printf("[pipeline] run %s suspended at %s awaiting %s", run.ID, run.Stages[i].Name, req.ID)
	o.emit(run, EventAwaitingClarification, i, req.Title, req)
	return req, nil
}

// finalize writes the pipeline score and completes the run.
func (o *Orchestrator) finalize(ctx context.Context, run *types.Run) error {
	b := stages.Compute(run.Outputs())
	runID := run.ID
	score := &types.ReliabilityScore{
		ClaimID:       run.ClaimID,
		Value:         b.Value,
		Source:        types.ScoreSourcePipeline,
		Factors:       b.Factors,
		Justification: b.Justification,
		RunID:         &runID,
		ComputedAt:    o.now().UTC(),
	}
	applied, err := o.repo.PutScore(ctx, score)
	if err != nil {
		return types.Infra("put score", err)
	}

	eventType := types.EventScoreComputed
	data := map[string]any{
		"value":   b.Value,
		"verdict": b.Verdict,
		"factors": b.Factors,
	}
	if !applied {
		eventType = types.EventScoreSuperseded
		data["kept_source"] = types.ScoreSourceConsensus
	}
	if err := o.audit.Record(ctx, run.ClaimID, &runID, "", eventType, data); err != nil {
		return err
	}

	if err := transition(run, types.RunStateCompleted); err != nil {
		return err
	}
	done := o.now().UTC()
	run.CompletedAt = &done
	if err := o.save(ctx, run); err != nil {
		return err
	}

	failed := 0
	for _, s := range run.Stages {
		if s.Status == types.StageStatusFailed {
			failed++
		}
	}
	if err := o.audit.Record(ctx, run.ClaimID, &runID, "", types.EventRunCompleted, map[string]any{
		"reliability":   b.Value,
		"verdict":       b.Verdict,
		"failed_stages": failed,
		"score_applied": applied,
	}); err != nil {
		return err
	}
	log.Printf("[pipeline] run %s completed: %.3f (%s)", run.ID, b.Value, b.Verdict)
	o.emit(run, EventRunCompleted, -1, fmt.Sprintf("Reliability %.3f (%s)", b.Value, b.Verdict), score)
	return nil
}

// fail marks the run failed after an infrastructure error.
func (o *Orchestrator) fail(ctx context.Context, run *types.Run, cause error) {
	log.Printf("[pipeline] run %s failed: %v", run.ID, cause)
	if err := transition(run, types.RunStateFailed); err != nil {
		log.Printf("[pipeline] run %s left %s: %v", run.ID, run.State, err)
		return
	}
	msg := cause.Error()
	run.Error = &msg
	if err := o.save(ctx, run); err != nil {
		log.Printf("[pipeline] failed to persist failure of run %s: %v", run.ID, err)
	}
	runID := run.ID
	o.audit.RecordBestEffort(ctx, run.ClaimID, &runID, "", types.EventRunFailed, map[string]any{
		"error": msg,
		"code":  types.ErrorCode(cause),
	})
	o.emit(run, EventRunFailed, -1, "Run failed", nil)
}

func (o *Orchestrator) save(ctx context.Context, run *types.Run) error {
	run.UpdatedAt = o.now().UTC()
	if err := o.repo.SaveRun(ctx, run); err != nil {
		return types.Infra("save run", err)
	}
	return nil
}

func (o *Orchestrator) emit(run *types.Run, eventType string, i int, message string, content any) {
	ev := ProgressEvent{
		Type:            eventType,
		ClaimID:         run.ClaimID,
		RunID:           run.ID,
		StageIndex:      i,
		State:           run.State,
		PercentComplete: progress.Percent(run),
		Message:         message,
		Content:         content,
	}
	if i >= 0 && i < len(run.Stages) {
		ev.Stage = run.Stages[i].Name
	}
	o.notifier.Notify(ev)
}
