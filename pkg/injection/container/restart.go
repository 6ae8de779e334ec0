// Package container drives container-level node-control operations against
// a Compose-managed cluster.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/jihwankim/nomos-harness/pkg/reporting"
)

// RestartManager restarts a single validator or executor container on
// behalf of a NodeControlHandle (§4.5.3). It only ever targets one
// container at a time; the chaos-restart workload (pkg/workloads/chaos.go)
// owns cooldown spacing between successive targets, so this type does not
// need its own batch/stagger variants.
type RestartManager struct {
	dockerClient *client.Client
	log          *reporting.Logger
}

// NewRestartManager creates a new RestartManager.
func NewRestartManager(dockerClient *client.Client, log *reporting.Logger) *RestartManager {
	return &RestartManager{
		dockerClient: dockerClient,
		log:          log,
	}
}

// RestartContainer stops, optionally waits, then restarts a single
// container, blocking until it reports Running again.
func (rm *RestartManager) RestartContainer(ctx context.Context, containerID string, params RestartParams) error {
	rm.log.Debug("restarting container", "container", containerID, "grace_period", params.GracePeriod, "restart_delay", params.RestartDelay)

	gracePeriod := params.GracePeriod
	if gracePeriod == 0 {
		gracePeriod = 10
	}

	stopOptions := container.StopOptions{Timeout: &gracePeriod}
	if err := rm.dockerClient.ContainerStop(ctx, containerID, stopOptions); err != nil {
		return fmt.Errorf("failed to stop container %s: %w", containerID, err)
	}

	if err := rm.waitForStop(ctx, containerID, 30*time.Second); err != nil {
		return fmt.Errorf("container %s did not stop in time: %w", containerID, err)
	}

	if params.RestartDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(params.RestartDelay) * time.Second):
		}
	}

	if err := rm.dockerClient.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", containerID, err)
	}

	// Validators/executors need time to rejoin consensus, hence the longer
	// bound than waitForStop's.
	if err := rm.waitForRunning(ctx, containerID, 120*time.Second); err != nil {
		return fmt.Errorf("container %s did not start in time: %w", containerID, err)
	}

	rm.log.Info("container restarted", "container", containerID)
	return nil
}

func (rm *RestartManager) waitForStop(ctx context.Context, containerID string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		inspect, err := rm.dockerClient.ContainerInspect(ctx, containerID)
		if err != nil {
			return fmt.Errorf("failed to inspect container: %w", err)
		}
		if !inspect.State.Running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	return fmt.Errorf("container did not stop within %v", timeout)
}

func (rm *RestartManager) waitForRunning(ctx context.Context, containerID string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		inspect, err := rm.dockerClient.ContainerInspect(ctx, containerID)
		if err != nil {
			return fmt.Errorf("failed to inspect container: %w", err)
		}
		if inspect.State.Running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	return fmt.Errorf("container did not start within %v", timeout)
}
