package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/runtime/nodeclient"
)

// readinessPollInterval is how often a not-yet-ready node is re-probed.
const readinessPollInterval = 500 * time.Millisecond

// waitReady blocks until every client's HTTP endpoint answers consensus_info
// and, for executor clients, its DA membership surface answers too, or until
// timeout elapses. A zero timeout disables the wait entirely ("readiness
// explicitly disabled", §4.8 step 1).
func waitReady(ctx context.Context, backend string, validators, executors []*nodeclient.Client, timeout time.Duration, log *reporting.Logger) error {
	if timeout <= 0 {
		return nil
	}
	deadline := time.Now().Add(timeout)

	allClients := make([]*nodeclient.Client, 0, len(validators)+len(executors))
	allClients = append(allClients, validators...)
	allClients = append(allClients, executors...)

	for _, c := range allClients {
		if err := waitClientReady(ctx, c, deadline, log); err != nil {
			return deployErrorf(backend, fmt.Sprintf("readiness(%s)", c.Node), err)
		}
	}
	for _, c := range executors {
		if err := waitDAReady(ctx, c, deadline, log); err != nil {
			return deployErrorf(backend, fmt.Sprintf("da-readiness(%s)", c.Node), err)
		}
	}
	return nil
}

func waitClientReady(ctx context.Context, c *nodeclient.Client, deadline time.Time, log *reporting.Logger) error {
	for {
		if _, _, err := c.ConsensusInfo(ctx); err == nil {
			return nil
		} else if log != nil {
			log.Debug("node not ready yet", "node", c.Node.String(), "error", err.Error())
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for %s to answer consensus_info", c.Node)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readinessPollInterval):
		}
	}
}

// waitDAReady waits for an executor's DA balancer/membership surface to
// answer at all; the core does not interpret the response, only that the
// endpoint is up (§4 Glossary: "Readiness").
func waitDAReady(ctx context.Context, c *nodeclient.Client, deadline time.Time, log *reporting.Logger) error {
	for {
		if _, err := c.DAGetMembership(ctx, "readiness-probe"); err == nil {
			return nil
		} else if log != nil {
			log.Debug("executor DA surface not ready yet", "node", c.Node.String(), "error", err.Error())
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for %s DA membership", c.Node)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readinessPollInterval):
		}
	}
}
