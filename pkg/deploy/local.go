package deploy

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/jihwankim/nomos-harness/pkg/config"
	"github.com/jihwankim/nomos-harness/pkg/core/cleanup"
	"github.com/jihwankim/nomos-harness/pkg/core/runner"
	"github.com/jihwankim/nomos-harness/pkg/harness"
	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/runtime/nodeclient"
	"github.com/jihwankim/nomos-harness/pkg/runtime/nodecontrol"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// LocalDeployer (§4.8 "Local") spawns node binaries as child processes on
// the machine running the harness. It is the cheapest backend to stand up
// and the only one whose node control is a plain process restart rather
// than a container/pod operation.
type LocalDeployer[Caps scenario.Capability] struct {
	Cfg *config.Config
	Log *reporting.Logger
}

// NewLocalDeployer builds a LocalDeployer against cfg.
func NewLocalDeployer[Caps scenario.Capability](cfg *config.Config, log *reporting.Logger) *LocalDeployer[Caps] {
	return &LocalDeployer[Caps]{Cfg: cfg, Log: log}
}

func (d *LocalDeployer[Caps]) Deploy(ctx context.Context, sc *harness.Scenario[Caps]) (*runner.Runner, error) {
	const backend = "local"

	topology := resolvedTopology(sc.Topology(), d.Cfg.Harness)
	runDir, err := os.MkdirTemp("", "nomos-harness-local-*")
	if err != nil {
		return nil, deployErrorf(backend, "workspace", err)
	}

	stack := cleanup.New(d.Log)
	stack.PushFunc("local-workdir", func(ctx context.Context) error {
		if os.Getenv("HARNESS_PRESERVE_WORKSPACE") != "" {
			if d.Log != nil {
				d.Log.Info("preserving local run workspace", "path", runDir)
			}
			return nil
		}
		return os.RemoveAll(runDir)
	})

	pt := newProcessTable()

	validatorClients, err := d.spawnAll(ctx, scenario.RoleValidator, topology.Validators, runDir, pt, stack)
	if err != nil {
		stack.Run(context.Background())
		return nil, deployErrorf(backend, "spawn-validators", err)
	}
	executorClients, err := d.spawnAll(ctx, scenario.RoleExecutor, topology.Executors, runDir, pt, stack)
	if err != nil {
		stack.Run(context.Background())
		return nil, deployErrorf(backend, "spawn-executors", err)
	}

	if err := waitReady(ctx, backend, validatorClients, executorClients, d.Cfg.Harness.ReadinessTimeout, d.Log); err != nil {
		stack.Run(context.Background())
		return nil, err
	}

	var nc nodecontrol.Handle
	if sc.RequiresNodeControl() {
		nc = &localNodeControl{table: pt, deployer: d, runDir: runDir, topology: topology, stack: stack}
	}

	return assemble(ctx, postDeployInputs{
		Backend:           backend,
		Topology:          topology,
		Wallets:           sc.Wallets(),
		Validators:        validatorClients,
		Executors:         executorClients,
		BlockIntervalHint: 0,
		PrometheusURL:     d.Cfg.Prometheus.URL,
		PrometheusTimeout: d.Cfg.Prometheus.Timeout,
		RunDuration:       sc.RunDuration(),
		NodeControl:       nc,
		Log:               d.Log,
		Stack:             stack,
	})
}

func (d *LocalDeployer[Caps]) spawnAll(ctx context.Context, role scenario.NodeRole, nodes []scenario.NodeDescriptor, runDir string, pt *processTable, stack *cleanup.Stack) ([]*nodeclient.Client, error) {
	clients := make([]*nodeclient.Client, 0, len(nodes))
	for _, desc := range nodes {
		cmd, err := d.startProcess(ctx, role, desc, runDir)
		if err != nil {
			return nil, fmt.Errorf("%s-%d: %w", role, desc.Index, err)
		}
		pt.put(role, desc.Index, cmd)
		stack.PushFunc(fmt.Sprintf("process-%s-%d", role, desc.Index), func(ctx context.Context) error {
			return terminateProcess(pt.take(role, desc.Index))
		})

		baseURL := fmt.Sprintf("http://127.0.0.1:%d", desc.APIPort)
		testingURL := fmt.Sprintf("http://127.0.0.1:%d", desc.TestingPort)
		clients = append(clients, nodeclient.New(desc, baseURL, testingURL))
	}
	return clients, nil
}

func (d *LocalDeployer[Caps]) startProcess(ctx context.Context, role scenario.NodeRole, desc scenario.NodeDescriptor, runDir string) (*exec.Cmd, error) {
	binary := d.Cfg.Harness.Local.ValidatorBinary
	if role == scenario.RoleExecutor {
		binary = d.Cfg.Harness.Local.ExecutorBinary
	}

	nodeDir := filepath.Join(runDir, fmt.Sprintf("%s-%d", role, desc.Index))
	if err := os.MkdirAll(nodeDir, 0755); err != nil {
		return nil, err
	}

	var configPath string
	if len(desc.Config) > 0 {
		configPath = filepath.Join(nodeDir, "config.yaml")
		if err := os.WriteFile(configPath, desc.Config, 0644); err != nil {
			return nil, fmt.Errorf("write node config: %w", err)
		}
	}

	args := []string{
		fmt.Sprintf("--network-port=%d", desc.NetworkPort),
		fmt.Sprintf("--da-port=%d", desc.DAPort),
		fmt.Sprintf("--blend-port=%d", desc.BlendPort),
		fmt.Sprintf("--api-port=%d", desc.APIPort),
		fmt.Sprintf("--testing-port=%d", desc.TestingPort),
	}
	if configPath != "" {
		args = append(args, "--config="+configPath)
	}

	cmd := exec.Command(binary, args...)
	cmd.Dir = nodeDir
	logPath := filepath.Join(nodeDir, "stdout.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}
	if d.Log != nil {
		d.Log.Info("spawned node process", "role", role.String(), "index", desc.Index, "pid", cmd.Process.Pid)
	}
	return cmd, nil
}

// processTable tracks the live *exec.Cmd for every node so node control can
// restart it by (role, index).
type processTable struct {
	mu    sync.Mutex
	procs map[string]*exec.Cmd
}

func newProcessTable() *processTable { return &processTable{procs: make(map[string]*exec.Cmd)} }

func processKey(role scenario.NodeRole, index int) string { return fmt.Sprintf("%s-%d", role, index) }

func (t *processTable) put(role scenario.NodeRole, index int, cmd *exec.Cmd) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.procs[processKey(role, index)] = cmd
}

func (t *processTable) get(role scenario.NodeRole, index int) *exec.Cmd {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.procs[processKey(role, index)]
}

func (t *processTable) take(role scenario.NodeRole, index int) *exec.Cmd {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := processKey(role, index)
	cmd := t.procs[key]
	delete(t.procs, key)
	return cmd
}

func terminateProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil {
		return err
	}
	_ = cmd.Wait()
	return nil
}

// localNodeControl restarts a node by killing its process and re-executing
// the same binary/args/workdir it originally started with.
type localNodeControl struct {
	table    *processTable
	deployer interface {
		startProcess(ctx context.Context, role scenario.NodeRole, desc scenario.NodeDescriptor, runDir string) (*exec.Cmd, error)
	}
	runDir   string
	topology scenario.Topology
	stack    *cleanup.Stack
}

func (n *localNodeControl) RestartValidator(ctx context.Context, index int) error {
	return n.restart(ctx, scenario.RoleValidator, index)
}

func (n *localNodeControl) RestartExecutor(ctx context.Context, index int) error {
	return n.restart(ctx, scenario.RoleExecutor, index)
}

func (n *localNodeControl) restart(ctx context.Context, role scenario.NodeRole, index int) error {
	var desc scenario.NodeDescriptor
	nodes := n.topology.Validators
	if role == scenario.RoleExecutor {
		nodes = n.topology.Executors
	}
	if index < 0 || index >= len(nodes) {
		return fmt.Errorf("nodecontrol: %s index %d out of range", role, index)
	}
	desc = nodes[index]

	old := n.table.take(role, index)
	if err := terminateProcess(old); err != nil {
		return fmt.Errorf("nodecontrol: stop %s-%d: %w", role, index, err)
	}
	// Give the OS a moment to release the bound ports before re-spawning.
	time.Sleep(500 * time.Millisecond)

	cmd, err := n.deployer.startProcess(ctx, role, desc, n.runDir)
	if err != nil {
		return fmt.Errorf("nodecontrol: restart %s-%d: %w", role, index, err)
	}
	n.table.put(role, index, cmd)
	return nil
}
