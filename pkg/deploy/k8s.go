package deploy

import (
	"context"
	"fmt"
	"os"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"

	"github.com/jihwankim/nomos-harness/pkg/config"
	"github.com/jihwankim/nomos-harness/pkg/core/cleanup"
	"github.com/jihwankim/nomos-harness/pkg/core/runner"
	"github.com/jihwankim/nomos-harness/pkg/harness"
	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/runtime/nodeclient"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// podReadyPollInterval mirrors the pack's own pod-readiness polling cadence
// (Scoutflo-kubernetes-mcp-server's connectivity checker polls every second).
const podReadyPollInterval = 1 * time.Second

// K8sDeployer (§4.8 "Kubernetes (via Helm)") installs a chart that renders
// one StatefulSet/Service pair per role and waits for client-go to report
// every pod Running. It never supports node control: NodeControlHandle is
// absent, so Deploy rejects a node-control-requiring scenario up front
// (testable property #2, §8) instead of failing mid-run.
type K8sDeployer[Caps scenario.Capability] struct {
	Cfg *config.Config
	Log *reporting.Logger

	// Kubeconfig, if empty, falls back to the KubeconfigEnv-named env var
	// or the default loading rules (in-cluster, then ~/.kube/config).
	Kubeconfig string
}

func NewK8sDeployer[Caps scenario.Capability](cfg *config.Config, log *reporting.Logger) *K8sDeployer[Caps] {
	return &K8sDeployer[Caps]{Cfg: cfg, Log: log}
}

func (d *K8sDeployer[Caps]) Deploy(ctx context.Context, sc *harness.Scenario[Caps]) (*runner.Runner, error) {
	const backend = "k8s"

	if err := rejectUnsupportedNodeControl(backend, sc); err != nil {
		return nil, err
	}

	kc := d.Cfg.Harness.K8s
	topology := resolvedTopology(sc.Topology(), d.Cfg.Harness)

	restCfg, err := d.restConfig()
	if err != nil {
		return nil, deployErrorf(backend, "kubeconfig", err)
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, deployErrorf(backend, "clientset", err)
	}

	stack := cleanup.New(d.Log)

	if err := d.helmInstall(topology); err != nil {
		return nil, deployErrorf(backend, "helm-install", err)
	}
	stack.PushFunc("helm-uninstall", func(ctx context.Context) error {
		return d.helmUninstall()
	})

	if err := waitPodsReady(ctx, clientset, kc.Namespace, kc.ReleaseName, "validator", len(topology.Validators)); err != nil {
		stack.Run(context.Background())
		return nil, deployErrorf(backend, "wait-validators", err)
	}
	if err := waitPodsReady(ctx, clientset, kc.Namespace, kc.ReleaseName, "executor", len(topology.Executors)); err != nil {
		stack.Run(context.Background())
		return nil, deployErrorf(backend, "wait-executors", err)
	}

	validatorClients := serviceClients(kc, topology.Validators, "validator")
	executorClients := serviceClients(kc, topology.Executors, "executor")

	if err := waitReady(ctx, backend, validatorClients, executorClients, d.Cfg.Harness.ReadinessTimeout, d.Log); err != nil {
		stack.Run(context.Background())
		return nil, err
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
		NodeControl:       nil,
		Log:               d.Log,
		Stack:             stack,
	})
}

func (d *K8sDeployer[Caps]) restConfig() (*rest.Config, error) {
	if d.Kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", d.Kubeconfig)
	}
	if env := d.Cfg.Harness.K8s.KubeconfigEnv; env != "" {
		if path := os.Getenv(env); path != "" {
			return clientcmd.BuildConfigFromFlags("", path)
		}
	}
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
}

// helmActionConfig initialises a Helm action configuration for namespace,
// storing release state in Kubernetes Secrets.
func (d *K8sDeployer[Caps]) helmActionConfig(namespace string) (*action.Configuration, error) {
	settings := cli.New()
	actionCfg := new(action.Configuration)
	if err := actionCfg.Init(settings.RESTClientGetter(), namespace, "secrets", func(format string, v ...interface{}) {
		if d.Log != nil {
			d.Log.Debug(fmt.Sprintf(format, v...))
		}
	}); err != nil {
		return nil, fmt.Errorf("init helm action config: %w", err)
	}
	return actionCfg, nil
}

// helmInstall renders and installs the configured chart, passing the
// topology's sizing through as chart values the way a human operator would
// with `helm install --set`.
func (d *K8sDeployer[Caps]) helmInstall(topology scenario.Topology) error {
	kc := d.Cfg.Harness.K8s

	actionCfg, err := d.helmActionConfig(kc.Namespace)
	if err != nil {
		return err
	}

	chrt, err := loader.Load(kc.ChartPath)
	if err != nil {
		return fmt.Errorf("load chart %s: %w", kc.ChartPath, err)
	}

	values := map[string]interface{}{
		"image":          kc.NodeImage,
		"validatorCount": len(topology.Validators),
		"executorCount":  len(topology.Executors),
	}

	install := action.NewInstall(actionCfg)
	install.Namespace = kc.Namespace
	install.ReleaseName = kc.ReleaseName
	install.CreateNamespace = true
	_, err = install.Run(chrt, values)
	return err
}

func (d *K8sDeployer[Caps]) helmUninstall() error {
	kc := d.Cfg.Harness.K8s
	actionCfg, err := d.helmActionConfig(kc.Namespace)
	if err != nil {
		return err
	}
	uninstall := action.NewUninstall(actionCfg)
	_, err = uninstall.Run(kc.ReleaseName)
	return err
}

// waitPodsReady polls every podReadyPollInterval until `want` pods labelled
// app.kubernetes.io/instance=release,nomos-harness/role=role are Running. It
// fails as soon as a matching pod is Failed, a List call errors, or ctx is done.
func waitPodsReady(ctx context.Context, clientset kubernetes.Interface, namespace, release, role string, want int) error {
	if want == 0 {
		return nil
	}
	selector := fmt.Sprintf("app.kubernetes.io/instance=%s,nomos-harness/role=%s", release, role)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %d %s pods", want, role)
		default:
		}

		pods, err := clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
		if err != nil {
			return err
		}
		running := 0
		for _, p := range pods.Items {
			if p.Status.Phase == corev1.PodFailed {
				return fmt.Errorf("pod %s failed", p.Name)
			}
			if p.Status.Phase == corev1.PodRunning {
				running++
			}
		}
		if running >= want {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %d %s pods", want, role)
		case <-time.After(podReadyPollInterval):
		}
	}
}

// serviceClients builds node clients against the chart's per-node
// ClusterIP services, following the convention <release>-<role>-<index>.
// Reachable only from inside the cluster (or via a separate port-forward
// the caller sets up); the core treats the resulting BaseURL as opaque.
func serviceClients(kc config.K8sBackendConfig, nodes []scenario.NodeDescriptor, role string) []*nodeclient.Client {
	clients := make([]*nodeclient.Client, 0, len(nodes))
	for i, desc := range nodes {
		host := fmt.Sprintf("%s-%s-%d.%s.svc.cluster.local", kc.ReleaseName, role, i, kc.Namespace)
		baseURL := fmt.Sprintf("http://%s:%d", host, desc.APIPort)
		testingURL := fmt.Sprintf("http://%s:%d", host, desc.TestingPort)
		clients = append(clients, nodeclient.New(desc, baseURL, testingURL))
	}
	return clients
}
