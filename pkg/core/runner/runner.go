// Package runner implements the Runner (C7): the Init -> Capture -> Launch
// -> Wait -> Evaluate -> Result lifecycle a Deployer hands a scenario's
// workloads and expectations through, plus the top-level panic/interrupt
// recovery that guarantees the cleanup stack always runs.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/jihwankim/nomos-harness/pkg/core/cleanup"
	"github.com/jihwankim/nomos-harness/pkg/emergency"
	"github.com/jihwankim/nomos-harness/pkg/harness"
	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/runtime/runcontext"
	"github.com/jihwankim/nomos-harness/pkg/runtime/telemetry"
)

// Plan is the subset of harness.Scenario[Caps] the Runner needs. It is an
// interface rather than a second generic parameter because every
// instantiation of Scenario[Caps] exposes the same method set regardless of
// Caps — the capability witness only matters to the builder and the
// deployer that produced this Runner, never to the run loop itself.
type Plan interface {
	Workloads() []harness.Workload
	Expectations() []harness.Expectation
	RunDuration() time.Duration
}

// Stage is the run's current lifecycle stage, mirroring the state-machine
// style progress reporting used elsewhere in this codebase.
type Stage int

const (
	StageInit Stage = iota
	StageCapture
	StageLaunch
	StageWait
	StageEvaluate
	StageCompleted
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "INIT"
	case StageCapture:
		return "CAPTURE"
	case StageLaunch:
		return "LAUNCH"
	case StageWait:
		return "WAIT"
	case StageEvaluate:
		return "EVALUATE"
	case StageCompleted:
		return "COMPLETED"
	case StageFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of one Execute call.
type Result struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Stage     Stage
	Success   bool
}

// Runner drives one scenario's run against an already-deployed RunContext.
// A Deployer constructs exactly one Runner per Deploy call, handing it the
// RunContext and CleanupStack it built along the way (§4.8 step 6).
type Runner struct {
	rc            *runcontext.RunContext
	stack         *cleanup.Stack
	log           *reporting.Logger
	emergencyCtrl *emergency.Controller
}

// New builds a Runner. log may be nil.
func New(rc *runcontext.RunContext, stack *cleanup.Stack, log *reporting.Logger) *Runner {
	return &Runner{rc: rc, stack: stack, log: log}
}

// WithEmergencyController attaches an emergency controller whose OnStop
// callback runs the cleanup stack immediately, ahead of Execute's own
// deferred cleanup (e.g. a stop-file or SIGINT/SIGTERM firing mid-run).
func (r *Runner) WithEmergencyController(c *emergency.Controller) *Runner {
	r.emergencyCtrl = c
	return r
}

// Execute runs plan's workloads and expectations to completion (§4.7). The
// cleanup stack always runs on return, including after a recovered panic —
// mirroring the orchestrator-style defer recover() + defer cleanup pattern
// this package's predecessor used, generalised to run() any CleanupGuard
// stack rather than a sidecar-specific coordinator.
func (r *Runner) Execute(ctx context.Context, plan Plan) (result *Result, err error) {
	res := &Result{StartTime: time.Now()}

	if r.emergencyCtrl != nil {
		emergencyCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		r.emergencyCtrl.OnStop(func() {
			r.logf("emergency stop triggered, running cleanup")
			if cerr := r.stack.Run(context.Background()); cerr != nil {
				r.logErr("emergency cleanup errors", cerr)
			}
		})
		r.emergencyCtrl.Start(emergencyCtx)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logf("panic during run, running cleanup")
			if cerr := r.stack.Run(context.Background()); cerr != nil {
				r.logErr("panic cleanup errors", cerr)
			}
			res.Stage = StageFailed
			res.EndTime = time.Now()
			res.Duration = res.EndTime.Sub(res.StartTime)
			result = res
			err = fmt.Errorf("runner: panic: %v", rec)
			return
		}
		if cerr := r.stack.Run(context.Background()); cerr != nil {
			r.logErr("cleanup errors", cerr)
		}
	}()

	r.transition(res, StageInit)
	for _, w := range plan.Workloads() {
		if ierr := w.Init(r.rc.Topology(), r.rc.RunMetrics()); ierr != nil {
			return r.fail(res, fmt.Errorf("runner: init %s: %w", w.Name(), ierr))
		}
	}

	r.transition(res, StageCapture)
	expects := make([]harness.Expectation, 0, len(plan.Expectations()))
	expects = append(expects, plan.Expectations()...)
	for _, w := range plan.Workloads() {
		expects = append(expects, w.Expectations()...)
	}
	for _, e := range expects {
		if cerr := e.StartCapture(ctx, r.rc); cerr != nil {
			return r.fail(res, fmt.Errorf("runner: capture %s: %w", e.Name(), cerr))
		}
	}

	r.transition(res, StageLaunch)
	runCtx, cancel := context.WithTimeout(ctx, plan.RunDuration())
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	for _, w := range plan.Workloads() {
		w := w
		g.Go(func() error {
			if werr := w.Start(gctx, r.rc); werr != nil {
				return fmt.Errorf("workload %s: %w", w.Name(), werr)
			}
			return nil
		})
	}

	r.transition(res, StageWait)
	workloadErr := g.Wait()

	r.transition(res, StageEvaluate)
	var merr *multierror.Error
	for _, e := range expects {
		if eerr := e.Evaluate(ctx, r.rc); eerr != nil {
			merr = multierror.Append(merr, fmt.Errorf("expectation %s: %w", e.Name(), eerr))
		}
	}
	if workloadErr != nil {
		merr = multierror.Append(merr, fmt.Errorf("runner: %w", workloadErr))
	}

	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)

	if agg := merr.ErrorOrNil(); agg != nil {
		res.Stage = StageFailed
		return res, agg
	}

	r.transition(res, StageCompleted)
	res.Success = true
	return res, nil
}

// Telemetry exposes the run's Prometheus sink, for callers that want to
// query cluster metrics after a run completes (e.g. the CLI's run summary).
func (r *Runner) Telemetry() *telemetry.Sink { return r.rc.Telemetry() }

// CleanupSummary reports the outcome of the cleanup stack's teardown walk.
// Only meaningful after Execute has returned.
func (r *Runner) CleanupSummary() cleanup.Summary { return r.stack.Summary() }

// CleanupLog returns the cleanup stack's audit trail in teardown order.
// Only meaningful after Execute has returned.
func (r *Runner) CleanupLog() []cleanup.AuditEntry { return r.stack.AuditLog() }

func (r *Runner) fail(res *Result, err error) (*Result, error) {
	res.Stage = StageFailed
	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)
	return res, err
}

func (r *Runner) transition(res *Result, stage Stage) {
	if r.log != nil {
		r.log.Info(fmt.Sprintf("%s -> %s", res.Stage, stage))
	}
	res.Stage = stage
}

func (r *Runner) logf(msg string) {
	if r.log != nil {
		r.log.Warn(msg)
	}
}

func (r *Runner) logErr(msg string, err error) {
	if r.log != nil {
		r.log.Error(msg, "error", err)
	}
}
