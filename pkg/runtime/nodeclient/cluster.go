package nodeclient

import (
	"context"
	"fmt"
	"math/rand"
)

// Cluster aggregates every node client in a topology and implements the
// try-all-clients retry fan-out used by workloads so a single node outage or
// restart is transparent to them.
type Cluster struct {
	Validators []*Client
	Executors  []*Client
}

// AllClients returns every client, validators first.
func (c *Cluster) AllClients() []*Client {
	all := make([]*Client, 0, len(c.Validators)+len(c.Executors))
	all = append(all, c.Validators...)
	all = append(all, c.Executors...)
	return all
}

func (c *Cluster) ValidatorClients() []*Client { return c.Validators }
func (c *Cluster) ExecutorClients() []*Client   { return c.Executors }

// RandomValidator returns a uniformly random validator client, or nil if
// there are none.
func (c *Cluster) RandomValidator() *Client {
	if len(c.Validators) == 0 {
		return nil
	}
	return c.Validators[rand.Intn(len(c.Validators))]
}

// TryAllClients applies op to every client in a randomised order, returning
// the first success. On total failure it returns the last error
// encountered, so a single flaky node never masks a genuine cluster-wide
// failure the caller should see.
func TryAllClients[T any](ctx context.Context, clients []*Client, op func(ctx context.Context, c *Client) (T, error)) (T, error) {
	var zero T
	if len(clients) == 0 {
		return zero, fmt.Errorf("nodeclient: no clients available")
	}
	order := rand.Perm(len(clients))
	var lastErr error
	for _, idx := range order {
		result, err := op(ctx, clients[idx])
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return zero, fmt.Errorf("nodeclient: all %d clients failed, last error: %w", len(clients), lastErr)
}
