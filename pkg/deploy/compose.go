package deploy

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/jihwankim/nomos-harness/pkg/config"
	"github.com/jihwankim/nomos-harness/pkg/core/cleanup"
	"github.com/jihwankim/nomos-harness/pkg/core/runner"
	"github.com/jihwankim/nomos-harness/pkg/discovery"
	"github.com/jihwankim/nomos-harness/pkg/discovery/docker"
	"github.com/jihwankim/nomos-harness/pkg/harness"
	"github.com/jihwankim/nomos-harness/pkg/injection/container"
	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/runtime/nodeclient"
	"github.com/jihwankim/nomos-harness/pkg/runtime/nodecontrol"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// ComposeDeployer (§4.8 "Compose") drives `docker compose` to stand up the
// cluster and then reuses the Docker API (via pkg/discovery/docker, almost
// unchanged from its original sidecar-management role) to discover the
// resulting containers and, when node control is required, restart them
// through pkg/injection/container.RestartManager.
type ComposeDeployer[Caps scenario.Capability] struct {
	Cfg *config.Config
	Log *reporting.Logger
}

func NewComposeDeployer[Caps scenario.Capability](cfg *config.Config, log *reporting.Logger) *ComposeDeployer[Caps] {
	return &ComposeDeployer[Caps]{Cfg: cfg, Log: log}
}

func (d *ComposeDeployer[Caps]) Deploy(ctx context.Context, sc *harness.Scenario[Caps]) (*runner.Runner, error) {
	const backend = "compose"
	cc := d.Cfg.Harness.Compose
	topology := resolvedTopology(sc.Topology(), d.Cfg.Harness)

	stack := cleanup.New(d.Log)

	if err := d.composeUp(ctx, topology); err != nil {
		return nil, deployErrorf(backend, "compose-up", err)
	}
	stack.PushFunc("compose-down", func(ctx context.Context) error {
		return d.composeDown(ctx)
	})

	dc, err := docker.New()
	if err != nil {
		stack.Run(context.Background())
		return nil, deployErrorf(backend, "docker-client", err)
	}
	stack.PushFunc("docker-client", func(ctx context.Context) error { return dc.Close() })

	validatorSvcs, err := discoverServices(ctx, dc, cc.LabelSelector, "validator", len(topology.Validators))
	if err != nil {
		stack.Run(context.Background())
		return nil, deployErrorf(backend, "discover-validators", err)
	}
	executorSvcs, err := discoverServices(ctx, dc, cc.LabelSelector, "executor", len(topology.Executors))
	if err != nil {
		stack.Run(context.Background())
		return nil, deployErrorf(backend, "discover-executors", err)
	}

	validatorClients := clientsFromServices(topology.Validators, validatorSvcs)
	executorClients := clientsFromServices(topology.Executors, executorSvcs)

	if err := waitReady(ctx, backend, validatorClients, executorClients, d.Cfg.Harness.ReadinessTimeout, d.Log); err != nil {
		stack.Run(context.Background())
		return nil, err
	}

	var nc nodecontrol.Handle
	if sc.RequiresNodeControl() {
		nc = &composeNodeControl{
			restarter:  container.NewRestartManager(dc.GetClient(), d.Log),
			validators: validatorSvcs,
			executors:  executorSvcs,
		}
	}

	return assemble(ctx, postDeployInputs{
		Backend:           backend,
		Topology:          topology,
		Wallets:           sc.Wallets(),
		Validators:        validatorClients,
		Executors:         executorClients,
		PrometheusURL:     d.Cfg.Prometheus.URL,
		PrometheusTimeout: d.Cfg.Prometheus.Timeout,
		RunDuration:       sc.RunDuration(),
		NodeControl:       nc,
		Log:               d.Log,
		Stack:             stack,
	})
}

// composeUp/composeDown shell out to the `docker compose` CLI the way a
// human operator would, against the project directory/name configured for
// this backend. Topology sizing (validator/executor counts) is passed
// through `--scale` so one compose file serves any topology.
func (d *ComposeDeployer[Caps]) composeUp(ctx context.Context, topology scenario.Topology) error {
	cc := d.Cfg.Harness.Compose
	args := []string{"compose", "-p", cc.ProjectName, "up", "-d",
		"--scale", fmt.Sprintf("validator=%d", len(topology.Validators)),
		"--scale", fmt.Sprintf("executor=%d", len(topology.Executors)),
	}
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Dir = cc.ProjectDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker compose up: %w: %s", err, string(out))
	}
	return nil
}

func (d *ComposeDeployer[Caps]) composeDown(ctx context.Context) error {
	cc := d.Cfg.Harness.Compose
	cmd := exec.CommandContext(ctx, "docker", "compose", "-p", cc.ProjectName, "down", "-v")
	cmd.Dir = cc.ProjectDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker compose down: %w: %s", err, string(out))
	}
	return nil
}

// discoverServices lists the containers labelled with role=r under labelKey
// once and returns the first want of them, failing if fewer are visible. It
// does not wait or retry: it relies on compose's own startup ordering rather
// than imposing a separate readiness model at this layer (readiness of the
// node's API surface is handled by waitReady afterward).
func discoverServices(ctx context.Context, dc *docker.Client, labelKey, role string, want int) ([]*discovery.Service, error) {
	if want == 0 {
		return nil, nil
	}
	svcs, err := dc.GetContainersByLabel(ctx, map[string]string{labelKey: role})
	if err != nil {
		return nil, err
	}
	if len(svcs) < want {
		return nil, fmt.Errorf("expected %d %s containers, found %d", want, role, len(svcs))
	}
	return svcs[:want], nil
}

// clientsFromServices pairs discovered containers with their topology
// descriptor by position; compose's own --scale numbering and the
// descriptor's Index are both dense 0..n-1 so positional pairing is exact
// once GetContainersByLabel's order is stabilised by container creation
// order (Docker preserves this for `compose up --scale`-created replicas).
func clientsFromServices(nodes []scenario.NodeDescriptor, svcs []*discovery.Service) []*nodeclient.Client {
	clients := make([]*nodeclient.Client, 0, len(nodes))
	for i, desc := range nodes {
		if i >= len(svcs) {
			break
		}
		svc := svcs[i]
		host := svc.IP
		apiPort := desc.APIPort
		testingPort := desc.TestingPort
		if p, ok := svc.Ports[strconv.Itoa(desc.APIPort)+"/tcp"]; ok {
			apiPort = int(p)
		}
		if p, ok := svc.Ports[strconv.Itoa(desc.TestingPort)+"/tcp"]; ok {
			testingPort = int(p)
		}
		baseURL := fmt.Sprintf("http://%s:%d", host, apiPort)
		testingURL := fmt.Sprintf("http://%s:%d", host, testingPort)
		clients = append(clients, nodeclient.New(desc, baseURL, testingURL))
	}
	return clients
}

// composeNodeControl restarts a node's container via the Docker API.
type composeNodeControl struct {
	restarter  *container.RestartManager
	validators []*discovery.Service
	executors  []*discovery.Service
}

func (n *composeNodeControl) RestartValidator(ctx context.Context, index int) error {
	return n.restart(ctx, n.validators, index)
}

func (n *composeNodeControl) RestartExecutor(ctx context.Context, index int) error {
	return n.restart(ctx, n.executors, index)
}

func (n *composeNodeControl) restart(ctx context.Context, svcs []*discovery.Service, index int) error {
	if index < 0 || index >= len(svcs) {
		return fmt.Errorf("nodecontrol: index %d out of range (have %d)", index, len(svcs))
	}
	return n.restarter.RestartContainer(ctx, svcs[index].ContainerID, container.RestartParams{GracePeriod: 10})
}
