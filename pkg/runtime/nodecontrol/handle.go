// Package nodecontrol defines the node-control interface (§6): a backend
// capability to restart a specific validator or executor. Only the local and
// compose deployers can supply a working implementation; the Kubernetes/Helm
// deployer supplies no handle and rejects a node-control scenario in Deploy.
package nodecontrol

import (
	"context"
	"errors"
)

// ErrUnsupported is the error an Unsupported handle returns for every
// restart request.
var ErrUnsupported = errors.New("nodecontrol: restart is not supported by this backend")

// Handle restarts a specific node by role-relative index.
type Handle interface {
	RestartValidator(ctx context.Context, index int) error
	RestartExecutor(ctx context.Context, index int) error
}

// Unsupported is an inert Handle that always returns ErrUnsupported. No
// deployer in this repository installs it: a backend without node control
// passes no handle, and RunContext.NodeControl() then reports ok == false.
type Unsupported struct{}

func (Unsupported) RestartValidator(ctx context.Context, index int) error { return ErrUnsupported }
func (Unsupported) RestartExecutor(ctx context.Context, index int) error  { return ErrUnsupported }
