// Package parser decodes a YAML scenario file into a built harness scenario.
// It is a thin layer over the fluent builder (pkg/harness): a scenario file
// is one more way of driving the same Builder/ChaosBuilder calls a
// code-defined scenario would make, for cases where the topology and
// workload mix is more convenient to express as data than as Go.
package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jihwankim/nomos-harness/pkg/expectations"
	"github.com/jihwankim/nomos-harness/pkg/harness"
	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
	"github.com/jihwankim/nomos-harness/pkg/workloads"
)

func expectationsConsensusLiveness(lagAllowance int) *expectations.ConsensusLiveness {
	return expectations.NewConsensusLiveness(lagAllowance)
}

// File is the on-disk shape of a scenario file.
type File struct {
	Validators int    `yaml:"validators"`
	Executors  int    `yaml:"executors"`
	RunDuration string `yaml:"run_duration"`

	Wallets *WalletsSpec `yaml:"wallets"`

	Workloads    WorkloadsSpec    `yaml:"workloads"`
	Expectations ExpectationsSpec `yaml:"expectations"`
}

type WalletsSpec struct {
	TotalFunds uint64 `yaml:"total_funds"`
	UserCount  int    `yaml:"user_count"`
}

type WorkloadsSpec struct {
	Transaction      *TransactionSpec      `yaml:"transaction"`
	DataAvailability *DataAvailabilitySpec `yaml:"data_availability"`
	ChaosRestart     *ChaosRestartSpec     `yaml:"chaos_restart"`
}

type TransactionSpec struct {
	RatePerBlock uint64 `yaml:"rate_per_block"`
	UserLimit    int    `yaml:"user_limit"`
}

type DataAvailabilitySpec struct {
	ChannelRatePerBlock float64 `yaml:"channel_rate_per_block"`
	HeadroomPct         int     `yaml:"headroom_pct"`
	BlobRatePerBlock    float64 `yaml:"blob_rate_per_block"`
}

type ChaosRestartSpec struct {
	MinDelay          string `yaml:"min_delay"`
	MaxDelay          string `yaml:"max_delay"`
	TargetCooldown    string `yaml:"target_cooldown"`
	IncludeValidators bool   `yaml:"include_validators"`
	IncludeExecutors  bool   `yaml:"include_executors"`
}

type ExpectationsSpec struct {
	ConsensusLiveness *ConsensusLivenessSpec `yaml:"consensus_liveness"`
}

type ConsensusLivenessSpec struct {
	LagAllowance int `yaml:"lag_allowance"`
}

// Parser decodes scenario files, substituting ${VAR}/$VAR references against
// its own variable set and the process environment (in that order).
type Parser struct {
	Variables map[string]string
}

// New creates a new parser with optional variables for substitution.
func New(variables map[string]string) *Parser {
	if variables == nil {
		variables = make(map[string]string)
	}
	return &Parser{Variables: variables}
}

// SetVariable sets a variable for substitution.
func (p *Parser) SetVariable(key, value string) { p.Variables[key] = value }

// ParseFile reads and decodes a scenario file.
func (p *Parser) ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return p.Parse(data)
}

// Parse decodes scenario YAML bytes.
func (p *Parser) Parse(data []byte) (*File, error) {
	substituted := p.substituteVariables(string(data))

	var f File
	if err := yaml.Unmarshal([]byte(substituted), &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateRequiredFields(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func (p *Parser) substituteVariables(content string) string {
	return varPattern.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}
		if val, ok := p.Variables[varName]; ok {
			return val
		}
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

func validateRequiredFields(f *File) error {
	if f.Validators <= 0 {
		return fmt.Errorf("validators must be positive")
	}
	if f.Executors < 0 {
		return fmt.Errorf("executors must not be negative")
	}
	if f.RunDuration == "" {
		return fmt.Errorf("run_duration is required")
	}
	if _, err := time.ParseDuration(f.RunDuration); err != nil {
		return fmt.Errorf("invalid run_duration: %w", err)
	}
	if f.Workloads.Transaction == nil && f.Workloads.DataAvailability == nil && f.Workloads.ChaosRestart == nil {
		return fmt.Errorf("at least one workload (transaction, data_availability, chaos_restart) is required")
	}
	if f.Workloads.ChaosRestart != nil {
		cr := f.Workloads.ChaosRestart
		for name, v := range map[string]string{"min_delay": cr.MinDelay, "max_delay": cr.MaxDelay, "target_cooldown": cr.TargetCooldown} {
			if v == "" {
				return fmt.Errorf("workloads.chaos_restart.%s is required", name)
			}
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("workloads.chaos_restart.%s: %w", name, err)
			}
		}
	}
	return nil
}

// ApplyOverrides applies --set key=value CLI overrides onto a parsed File.
// Supports the handful of top-level scalar fields a human is likely to want
// to tweak without editing the file.
func ApplyOverrides(f *File, overrides map[string]string) error {
	for key, value := range overrides {
		switch key {
		case "run_duration":
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid run_duration override: %w", err)
			}
			f.RunDuration = value
		case "validators":
			n, err := parseIntOverride(value)
			if err != nil {
				return fmt.Errorf("invalid validators override: %w", err)
			}
			f.Validators = n
		case "executors":
			n, err := parseIntOverride(value)
			if err != nil {
				return fmt.Errorf("invalid executors override: %w", err)
			}
			f.Executors = n
		default:
			return fmt.Errorf("unsupported override key: %s", key)
		}
	}
	return nil
}

func parseIntOverride(v string) (int, error) {
	var n int
	_, err := fmt.Sscanf(v, "%d", &n)
	return n, err
}

// ParseOverrides parses CLI override strings (--set key=value).
func ParseOverrides(overrides []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, override := range overrides {
		parts := strings.SplitN(override, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid override format: %s (expected key=value)", override)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			return nil, fmt.Errorf("empty key in override: %s", override)
		}
		result[key] = value
	}
	return result, nil
}

// Built wraps whichever Scenario capability instantiation the file produced.
// Only one of NoControl/WithControl is non-nil; RequiresNodeControl says
// which, so callers (cmd/harness-runner) can branch on it without a type
// assertion.
type Built struct {
	NoControl   *harness.Scenario[scenario.NoCapability]
	WithControl *harness.Scenario[scenario.NodeControlCapability]
}

func (b *Built) RequiresNodeControl() bool { return b.WithControl != nil }

// Build turns a parsed File into a harness Scenario by driving the same
// fluent builder a code-defined scenario would use. log is attached to
// every workload that logs.
func Build(f *File, log *reporting.Logger) (*Built, error) {
	runDuration, err := time.ParseDuration(f.RunDuration)
	if err != nil {
		return nil, fmt.Errorf("run_duration: %w", err)
	}

	topology := scenario.Topology{
		Validators: make([]scenario.NodeDescriptor, f.Validators),
		Executors:  make([]scenario.NodeDescriptor, f.Executors),
	}
	for i := range topology.Validators {
		topology.Validators[i] = scenario.NodeDescriptor{
			Role:  scenario.RoleValidator,
			Index: i,
			ID:    scenario.DeriveNodeID(scenario.RoleValidator, i),
		}
	}
	for i := range topology.Executors {
		topology.Executors[i] = scenario.NodeDescriptor{
			Role:  scenario.RoleExecutor,
			Index: i,
			ID:    scenario.DeriveNodeID(scenario.RoleExecutor, i),
		}
	}

	if f.Workloads.ChaosRestart != nil {
		cb := harness.NewScenarioBuilder().
			TopologyWith(topology).
			WithRunDuration(runDuration).
			EnableNodeControl()
		if err := applyCommon(&builderFacade{chaos: cb}, f, log); err != nil {
			return nil, err
		}
		cr := f.Workloads.ChaosRestart
		minDelay, _ := time.ParseDuration(cr.MinDelay)
		maxDelay, _ := time.ParseDuration(cr.MaxDelay)
		cooldown, _ := time.ParseDuration(cr.TargetCooldown)
		cb.ChaosWith(workloads.NewChaosRestart(minDelay, maxDelay, cooldown, cr.IncludeValidators, cr.IncludeExecutors, log))

		built, err := cb.Build()
		if err != nil {
			return nil, fmt.Errorf("build scenario: %w", err)
		}
		return &Built{WithControl: built}, nil
	}

	b := harness.NewScenarioBuilder().
		TopologyWith(topology).
		WithRunDuration(runDuration)
	if err := applyCommon(&builderFacade{base: b}, f, log); err != nil {
		return nil, err
	}
	built, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build scenario: %w", err)
	}
	return &Built{NoControl: built}, nil
}

// builderFacade lets applyCommon share logic between Builder and
// ChaosBuilder without duplicating every Wallets/TransactionsWith/DAWith
// call site; exactly one of base/chaos is set.
type builderFacade struct {
	base  *harness.Builder
	chaos *harness.ChaosBuilder
}

func (bf *builderFacade) Wallets(totalFunds uint64, userCount int) {
	if bf.base != nil {
		bf.base.Wallets(totalFunds, userCount)
	} else {
		bf.chaos.Wallets(totalFunds, userCount)
	}
}

func (bf *builderFacade) TransactionsWith(w harness.Workload) {
	if bf.base != nil {
		bf.base.TransactionsWith(w)
	} else {
		bf.chaos.TransactionsWith(w)
	}
}

func (bf *builderFacade) DAWith(w harness.Workload) {
	if bf.base != nil {
		bf.base.DAWith(w)
	} else {
		bf.chaos.DAWith(w)
	}
}

func (bf *builderFacade) ExpectConsensusLiveness(e harness.Expectation) {
	if bf.base != nil {
		bf.base.ExpectConsensusLiveness(e)
	} else {
		bf.chaos.ExpectConsensusLiveness(e)
	}
}

func applyCommon(bf *builderFacade, f *File, log *reporting.Logger) error {
	if f.Wallets != nil {
		bf.Wallets(f.Wallets.TotalFunds, f.Wallets.UserCount)
	}
	if t := f.Workloads.Transaction; t != nil {
		bf.TransactionsWith(workloads.NewTransaction(t.RatePerBlock, t.UserLimit, log))
	}
	if da := f.Workloads.DataAvailability; da != nil {
		bf.DAWith(workloads.NewDataAvailability(da.ChannelRatePerBlock, da.HeadroomPct, da.BlobRatePerBlock, log))
	}
	if cl := f.Expectations.ConsensusLiveness; cl != nil {
		bf.ExpectConsensusLiveness(expectationsConsensusLiveness(cl.LagAllowance))
	}
	return nil
}
