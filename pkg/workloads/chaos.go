package workloads

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jihwankim/nomos-harness/pkg/harness"
	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/runtime/runcontext"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// ChaosRestart periodically restarts a random validator or executor while
// the run is active, respecting a per-target cooldown (§4.5.3). Requires a
// deployer that supplies a NodeControlHandle; a scenario needing this
// workload can only be built through harness.ChaosBuilder — the compiler,
// not this type, enforces that.
type ChaosRestart struct {
	MinDelay, MaxDelay time.Duration
	TargetCooldown     time.Duration
	IncludeValidators  bool
	IncludeExecutors   bool
	Log                *reporting.Logger
}

// NewChaosRestart builds the workload.
func NewChaosRestart(minDelay, maxDelay, targetCooldown time.Duration, includeValidators, includeExecutors bool, log *reporting.Logger) *ChaosRestart {
	return &ChaosRestart{
		MinDelay:          minDelay,
		MaxDelay:          maxDelay,
		TargetCooldown:    targetCooldown,
		IncludeValidators: includeValidators,
		IncludeExecutors:  includeExecutors,
		Log:               log,
	}
}

func (w *ChaosRestart) Name() string { return "chaos_restart" }

// Expectations contributes none; chaos-restart is exercised through
// consensus_liveness at the scenario level.
func (w *ChaosRestart) Expectations() []harness.Expectation { return nil }

func (w *ChaosRestart) Init(topology scenario.Topology, metrics scenario.RunMetrics) error {
	if w.MinDelay > w.MaxDelay {
		return fmt.Errorf("%s: min_delay must not exceed max_delay", w.Name())
	}
	if w.TargetCooldown < w.MinDelay {
		return fmt.Errorf("%s: target_cooldown must be at least min_delay", w.Name())
	}
	if !w.IncludeValidators && !w.IncludeExecutors {
		return fmt.Errorf("%s: at least one of validators or executors must be included", w.Name())
	}
	return nil
}

type chaosTarget struct {
	role    scenario.NodeRole
	index   int
	readyAt time.Time
}

// buildTargets excludes validators entirely when fewer than two are
// present, so a single-validator run never guarantees an outage by chaos
// restarting its only validator.
func (w *ChaosRestart) buildTargets(topology scenario.Topology) []chaosTarget {
	now := time.Now()
	var targets []chaosTarget
	if w.IncludeValidators && len(topology.Validators) >= 2 {
		for i := range topology.Validators {
			targets = append(targets, chaosTarget{role: scenario.RoleValidator, index: i, readyAt: now})
		}
	}
	if w.IncludeExecutors {
		for i := range topology.Executors {
			targets = append(targets, chaosTarget{role: scenario.RoleExecutor, index: i, readyAt: now})
		}
	}
	return targets
}

func (w *ChaosRestart) Start(ctx context.Context, rc *runcontext.RunContext) error {
	handle, ok := rc.NodeControl()
	if !ok {
		return fmt.Errorf("%s: no node-control handle available", w.Name())
	}

	targets := w.buildTargets(rc.Topology())
	if len(targets) == 0 {
		return fmt.Errorf("%s: no eligible restart targets in topology", w.Name())
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(randomDuration(w.MinDelay, w.MaxDelay)):
		}

		idx, err := w.pickReadyTarget(ctx, targets)
		if err != nil {
			return nil
		}

		t := &targets[idx]
		var restartErr error
		switch t.role {
		case scenario.RoleValidator:
			restartErr = handle.RestartValidator(ctx, t.index)
		case scenario.RoleExecutor:
			restartErr = handle.RestartExecutor(ctx, t.index)
		}
		if restartErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%s: restart %s %d: %w", w.Name(), t.role, t.index, restartErr)
		}

		t.readyAt = time.Now().Add(w.TargetCooldown)
		if w.Log != nil {
			w.Log.Info("restarted node", "role", t.role.String(), "index", t.index)
		}
	}
}

// pickReadyTarget returns a uniformly random ready target, or sleeps until
// the earliest cooldown elapses if every target is currently cooling down.
func (w *ChaosRestart) pickReadyTarget(ctx context.Context, targets []chaosTarget) (int, error) {
	for {
		now := time.Now()
		var ready []int
		var earliest time.Time
		for i, t := range targets {
			if !t.readyAt.After(now) {
				ready = append(ready, i)
			} else if earliest.IsZero() || t.readyAt.Before(earliest) {
				earliest = t.readyAt
			}
		}
		if len(ready) > 0 {
			return ready[rand.Intn(len(ready))], nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Until(earliest)):
		}
	}
}

func randomDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}
