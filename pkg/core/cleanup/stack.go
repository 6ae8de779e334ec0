// Package cleanup implements the LIFO guard stack (C9): best-effort teardown
// of every resource a deployer acquires — block feed, node processes or
// containers, rendered workspaces, port forwards — executed in reverse
// construction order with per-guard failures aggregated rather than
// short-circuited, so one broken guard never stops the rest of the stack
// from running.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/jihwankim/nomos-harness/pkg/reporting"
)

// Guard is any resource that can be torn down exactly once.
type Guard interface {
	Cleanup(ctx context.Context) error
}

// GuardFunc adapts a plain function to the Guard interface.
type GuardFunc func(ctx context.Context) error

func (f GuardFunc) Cleanup(ctx context.Context) error { return f(ctx) }

// AuditEntry records one guard's teardown outcome, in the order it actually
// ran (reverse of construction order).
type AuditEntry struct {
	Timestamp time.Time
	Name      string
	Success   bool
	Error     error
}

// Stack is a LIFO stack of cleanup guards. Deployers push guards in
// construction order; Run pops them in reverse.
type Stack struct {
	log      *reporting.Logger
	guards   []namedGuard
	auditLog []AuditEntry
}

type namedGuard struct {
	name  string
	guard Guard
}

// New creates an empty Stack. log may be nil.
func New(log *reporting.Logger) *Stack {
	return &Stack{log: log}
}

// Push adds a guard to the top of the stack.
func (s *Stack) Push(name string, g Guard) {
	s.guards = append(s.guards, namedGuard{name: name, guard: g})
}

// PushFunc is a convenience wrapper around Push for function-shaped guards.
func (s *Stack) PushFunc(name string, f func(ctx context.Context) error) {
	s.Push(name, GuardFunc(f))
}

// Run pops every guard in reverse construction order, recovering from any
// guard panic and converting it to an error, and aggregates failures with
// multierror.Append instead of stopping at the first one (§4.9). Safe to
// call from a deferred statement on every exit path, including after a
// recovered panic or a cancelled context — guards are expected to honor ctx
// cancellation internally for their own bounded operations, not to abort the
// walk itself.
func (s *Stack) Run(ctx context.Context) error {
	var merr *multierror.Error
	for i := len(s.guards) - 1; i >= 0; i-- {
		ng := s.guards[i]
		err := s.runGuard(ctx, ng)
		s.auditLog = append(s.auditLog, AuditEntry{Timestamp: time.Now(), Name: ng.name, Success: err == nil, Error: err})
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("cleanup %s: %w", ng.name, err))
			if s.log != nil {
				s.log.Error("cleanup guard failed", "guard", ng.name, "error", err)
			}
			continue
		}
		if s.log != nil {
			s.log.Debug("cleanup guard succeeded", "guard", ng.name)
		}
	}
	s.guards = nil
	return merr.ErrorOrNil()
}

// runGuard recovers from a panicking guard so a single broken guard never
// breaks the LIFO walk for the rest of the stack (no guard may panic the
// caller, per §4.9).
func (s *Stack) runGuard(ctx context.Context, ng namedGuard) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return ng.guard.Cleanup(ctx)
}

// AuditLog returns the recorded teardown outcomes in the order they ran.
func (s *Stack) AuditLog() []AuditEntry { return s.auditLog }

// Summary aggregates the audit log into pass/fail counts.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Summary computes the current pass/fail counts from the audit log.
func (s *Stack) Summary() Summary {
	sum := Summary{Total: len(s.auditLog)}
	for _, e := range s.auditLog {
		if e.Success {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	return sum
}

func (sum Summary) String() string {
	return fmt.Sprintf("cleanup summary: %d total, %d succeeded, %d failed", sum.Total, sum.Succeeded, sum.Failed)
}
