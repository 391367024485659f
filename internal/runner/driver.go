package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/xp-sweep/internal/ledger"
	"github.com/GoSim-25-26J-441/xp-sweep/internal/sweep"
	"github.com/GoSim-25-26J-441/xp-sweep/pkg/config"
	"github.com/GoSim-25-26J-441/xp-sweep/pkg/logger"
	"github.com/GoSim-25-26J-441/xp-sweep/pkg/utils"
)

// FailurePolicy decides what happens after an invocation fails
type FailurePolicy string

const (
	// FailureContinue keeps launching the remaining invocations
	FailureContinue FailurePolicy = config.FailureContinue
	// FailureAbort launches nothing new; in-flight invocations finish
	FailureAbort FailurePolicy = config.FailureAbort
)

// ParseFailurePolicy accepts "continue", "abort" or "" (continue)
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailureContinue:
		return FailureContinue, nil
	case FailureAbort:
		return FailureAbort, nil
	}
	return "", fmt.Errorf("unknown failure policy: %q", s)
}

// Progress is a snapshot of a running sweep
type Progress struct {
	SweepID    string    `json:"sweep_id"`
	Stage      string    `json:"stage"`
	StageTotal int       `json:"stage_total"`
	StageDone  int       `json:"stage_done"`
	Total      int       `json:"total"`
	Done       int       `json:"done"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Running    bool      `json:"running"`
	StartedAt  time.Time `json:"started_at"`
}

// ProgressReporter is called after every finished invocation. Calls are
// serialized.
type ProgressReporter func(Progress)

// Driver turns planned stages into executed invocations
type Driver struct {
	executor    Executor
	store       ledger.Store
	maxParallel int
	policy      FailurePolicy
	reporter    ProgressReporter
	manifest    *Manifest
	sweepID     string

	mu       sync.RWMutex
	progress Progress
	aborted  bool

	reportMu sync.Mutex
}

// NewDriver creates a sequential driver with the continue policy. A nil
// store records to memory.
func NewDriver(executor Executor, store ledger.Store) *Driver {
	if store == nil {
		store = ledger.NewMemoryStore()
	}
	id := utils.GenerateSweepID()
	return &Driver{
		executor:    executor,
		store:       store,
		maxParallel: 1,
		policy:      FailureContinue,
		sweepID:     id,
		progress:    Progress{SweepID: id},
	}
}

// WithMaxParallel bounds concurrent invocations; values below 1 mean 1
func (d *Driver) WithMaxParallel(n int) *Driver {
	if n < 1 {
		n = 1
	}
	d.maxParallel = n
	return d
}

func (d *Driver) WithFailurePolicy(p FailurePolicy) *Driver {
	d.policy = p
	return d
}

func (d *Driver) WithProgressReporter(fn ProgressReporter) *Driver {
	d.reporter = fn
	return d
}

func (d *Driver) WithManifest(m *Manifest) *Driver {
	d.manifest = m
	return d
}

// WithSweepID overrides the generated sweep id
func (d *Driver) WithSweepID(id string) *Driver {
	if id == "" {
		return d
	}
	d.sweepID = id
	d.mu.Lock()
	d.progress.SweepID = id
	d.mu.Unlock()
	return d
}

func (d *Driver) SweepID() string {
	return d.sweepID
}

func (d *Driver) Store() ledger.Store {
	return d.store
}

// Progress returns the current snapshot
func (d *Driver) Progress() Progress {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.progress
}

// Run executes stages in order and returns the overall summary. The error
// is ctx.Err() when the sweep was interrupted, ErrInvocationsFailed when any
// invocation failed, or a planning error.
func (d *Driver) Run(ctx context.Context, stages []*sweep.Stage) (*Summary, error) {
	total := 0
	for _, st := range stages {
		total += st.Total()
	}

	start := time.Now()
	d.mu.Lock()
	d.aborted = false
	d.progress = Progress{
		SweepID:   d.sweepID,
		Total:     total,
		Running:   true,
		StartedAt: start,
	}
	d.mu.Unlock()

	logger.Info("sweep started",
		"sweep_id", d.sweepID,
		"stages", len(stages),
		"invocations", total,
		"max_parallel", d.maxParallel,
		"failure_policy", string(d.policy))

	summary := &Summary{SweepID: d.sweepID}

	plans := make([][]sweep.Invocation, len(stages))
	for i, st := range stages {
		plan, err := st.Plan()
		if err != nil {
			for _, skipped := range stages {
				summary.Stages = append(summary.Stages, skippedStage(skipped))
			}
			d.skip(total)
			d.finish(summary, start)
			return summary, err
		}
		plans[i] = plan
	}

	for i, st := range stages {
		if ctx.Err() != nil || d.isAborted() {
			summary.Stages = append(summary.Stages, skippedStage(st))
			d.skip(st.Total())
			continue
		}

		ss, _ := d.runPlan(ctx, st, plans[i])
		summary.Stages = append(summary.Stages, ss)
	}
	d.finish(summary, start)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, summary.Err()
}

func (d *Driver) finish(summary *Summary, start time.Time) {
	summary.Duration = time.Since(start)

	d.mu.Lock()
	d.progress.Running = false
	d.mu.Unlock()

	summary.Log()
}

func skippedStage(st *sweep.Stage) StageSummary {
	n := st.Total()
	return StageSummary{Stage: st.Name, Mode: st.Mode, Total: n, Skipped: n}
}

// RunStage dispatches st by mode
func (d *Driver) RunStage(ctx context.Context, st *sweep.Stage) (StageSummary, error) {
	switch st.Mode {
	case sweep.ModeGenerate:
		return d.GenerateArtifacts(ctx, st)
	case sweep.ModeSweep:
		return d.RunSweep(ctx, st)
	}
	return StageSummary{Stage: st.Name, Mode: st.Mode}, fmt.Errorf("stage %s: %w: %q", st.Name, sweep.ErrUnknownMode, st.Mode)
}

// GenerateArtifacts runs a generate stage: one invocation per combination
// and instance, each creating one artifact.
func (d *Driver) GenerateArtifacts(ctx context.Context, st *sweep.Stage) (StageSummary, error) {
	if st.Mode != sweep.ModeGenerate {
		return StageSummary{Stage: st.Name, Mode: st.Mode}, fmt.Errorf("stage %s: %w: want %s", st.Name, sweep.ErrWrongStageMode, sweep.ModeGenerate)
	}
	return d.execute(ctx, st)
}

// RunSweep runs a sweep stage: every combination, every repeat attempt
// from the start index, in ascending order.
func (d *Driver) RunSweep(ctx context.Context, st *sweep.Stage) (StageSummary, error) {
	if st.Mode != sweep.ModeSweep {
		return StageSummary{Stage: st.Name, Mode: st.Mode}, fmt.Errorf("stage %s: %w: want %s", st.Name, sweep.ErrWrongStageMode, sweep.ModeSweep)
	}
	return d.execute(ctx, st)
}

type outcome struct {
	launched bool
	failure  *FailedInvocation
}

// execute plans the whole stage, then runs it
func (d *Driver) execute(ctx context.Context, st *sweep.Stage) (StageSummary, error) {
	plan, err := st.Plan()
	if err != nil {
		d.skip(st.Total())
		return skippedStage(st), err
	}
	return d.runPlan(ctx, st, plan)
}

// runPlan feeds a stage plan through a bounded pool. A slot is acquired
// before each launch: with one slot invocations run strictly in plan order
// and an abort takes effect before the next launch.
func (d *Driver) runPlan(ctx context.Context, st *sweep.Stage, plan []sweep.Invocation) (StageSummary, error) {
	ss := StageSummary{Stage: st.Name, Mode: st.Mode, Total: len(plan)}

	d.mu.Lock()
	d.progress.Stage = st.Name
	d.progress.StageTotal = len(plan)
	d.progress.StageDone = 0
	d.mu.Unlock()

	log := logger.With("stage", st.Name, "mode", string(st.Mode))
	log.Info("stage started",
		"invocations", len(plan),
		"combinations", st.Combinations())

	start := time.Now()
	semaphore := make(chan struct{}, d.maxParallel)
	var wg sync.WaitGroup
	results := make([]outcome, len(plan))

	for i, inv := range plan {
		acquired := false
		select {
		case semaphore <- struct{}{}:
			acquired = true
		case <-ctx.Done():
		}
		if !acquired || ctx.Err() != nil || d.isAborted() {
			if acquired {
				<-semaphore
			}
			break
		}

		wg.Add(1)
		go func(idx int, inv sweep.Invocation) {
			defer wg.Done()
			defer func() { <-semaphore }()
			results[idx] = d.invoke(ctx, inv)
		}(i, inv)
	}
	wg.Wait()

	for _, r := range results {
		switch {
		case !r.launched:
			ss.Skipped++
		case r.failure != nil:
			ss.Failed++
			ss.Failures = append(ss.Failures, *r.failure)
		default:
			ss.Succeeded++
		}
	}
	if ss.Skipped > 0 {
		d.skip(ss.Skipped)
	}
	ss.Duration = time.Since(start)

	log.Info("stage finished",
		"succeeded", ss.Succeeded,
		"failed", ss.Failed,
		"skipped", ss.Skipped,
		"duration", ss.Duration.String())

	return ss, ctx.Err()
}

func (d *Driver) invoke(ctx context.Context, inv sweep.Invocation) outcome {
	id := utils.InvocationID(d.sweepID, inv.Stage, inv.Seq)
	// ledger writes outlive ctx cancellation
	recordCtx := context.WithoutCancel(ctx)

	rec := ledger.Record{
		ID:      id,
		SweepID: d.sweepID,
		Stage:   inv.Stage,
		Seq:     inv.Seq,
		Args:    inv.Args,
		Output:  inv.Output,
	}
	if err := d.store.Begin(recordCtx, rec); err != nil {
		logger.Warn("failed to record invocation start", "id", id, "error", err)
	}

	logger.Debug("invocation started", "id", id, "command", inv.Command())
	res, err := d.executor.Execute(ctx, inv)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if ferr := d.store.Finish(recordCtx, id, res.ExitCode, errMsg); ferr != nil {
		logger.Warn("failed to record invocation result", "id", id, "error", ferr)
	}

	out := outcome{launched: true}
	status := ledger.StatusSucceeded
	if err != nil || res.ExitCode != 0 {
		status = ledger.StatusFailed
		out.failure = &FailedInvocation{
			ID:       id,
			Command:  inv.Command(),
			ExitCode: res.ExitCode,
			Error:    errMsg,
		}
		logger.Error("invocation failed",
			"id", id,
			"command", inv.Command(),
			"exit_code", res.ExitCode,
			"error", errMsg)
		if d.policy == FailureAbort {
			d.abort(id)
		}
	}

	if d.manifest != nil {
		if merr := d.manifest.Write(d.sweepID, inv, status, res); merr != nil {
			logger.Warn("failed to write manifest row", "id", id, "error", merr)
		}
	}

	d.advance(status == ledger.StatusSucceeded)
	p := d.Progress()
	logger.Info("invocation finished",
		"stage", inv.Stage,
		"seq", inv.Seq,
		"output", inv.Output,
		"exit_code", res.ExitCode,
		"duration", res.Duration.String(),
		"stage_done", p.StageDone,
		"stage_total", p.StageTotal,
		"done", p.Done,
		"total", p.Total)
	d.report(p)
	return out
}

func (d *Driver) advance(ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress.Done++
	d.progress.StageDone++
	if ok {
		d.progress.Succeeded++
	} else {
		d.progress.Failed++
	}
}

func (d *Driver) skip(n int) {
	d.mu.Lock()
	d.progress.Skipped += n
	d.mu.Unlock()
}

func (d *Driver) abort(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.aborted {
		logger.Warn("aborting sweep after failure", "id", id)
	}
	d.aborted = true
}

func (d *Driver) isAborted() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.aborted
}

func (d *Driver) report(p Progress) {
	if d.reporter == nil {
		return
	}
	d.reportMu.Lock()
	defer d.reportMu.Unlock()
	d.reporter(p)
}
