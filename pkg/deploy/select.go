package deploy

import (
	"fmt"

	"github.com/jihwankim/nomos-harness/pkg/config"
	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// New builds the Deployer[Caps] named by cfg.Harness.Backend. Callers
// (cmd/harness-runner, tests) go through this rather than constructing a
// backend directly so a new backend only needs to be registered here.
func New[Caps scenario.Capability](cfg *config.Config, log *reporting.Logger) (Deployer[Caps], error) {
	switch cfg.Harness.Backend {
	case "local":
		return NewLocalDeployer[Caps](cfg, log), nil
	case "compose":
		return NewComposeDeployer[Caps](cfg, log), nil
	case "k8s":
		return NewK8sDeployer[Caps](cfg, log), nil
	default:
		return nil, fmt.Errorf("deploy: unknown backend %q", cfg.Harness.Backend)
	}
}
