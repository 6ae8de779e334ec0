// Package validator checks a parsed scenario file for issues beyond what
// the parser's own required-field checks catch: value ranges, cross-field
// consistency, and scenarios that are legal but likely to surprise whoever
// runs them.
package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/jihwankim/nomos-harness/pkg/scenario/parser"
)

// Validator validates scenario files.
type Validator struct {
	// Warnings are non-fatal issues.
	Warnings []string

	// Errors are fatal issues.
	Errors []string
}

// New creates a new validator.
func New() *Validator {
	return &Validator{
		Warnings: make([]string, 0),
		Errors:   make([]string, 0),
	}
}

// Validate validates a parsed scenario file.
func (v *Validator) Validate(f *parser.File) error {
	v.Warnings = make([]string, 0)
	v.Errors = make([]string, 0)

	v.validateTopology(f)
	v.validateRunDuration(f)
	v.validateWallets(f)
	v.validateWorkloads(f)
	v.validateExpectations(f)
	v.checkDangerousScenarios(f)

	if len(v.Errors) > 0 {
		return fmt.Errorf("validation failed with %d errors", len(v.Errors))
	}
	return nil
}

// HasWarnings returns true if there are warnings.
func (v *Validator) HasWarnings() bool { return len(v.Warnings) > 0 }

// HasErrors returns true if there are errors.
func (v *Validator) HasErrors() bool { return len(v.Errors) > 0 }

// GetReport returns a formatted validation report.
func (v *Validator) GetReport() string {
	var sb strings.Builder

	if len(v.Errors) > 0 {
		sb.WriteString("ERRORS:\n")
		for _, err := range v.Errors {
			sb.WriteString(fmt.Sprintf("  - %s\n", err))
		}
	}

	if len(v.Warnings) > 0 {
		sb.WriteString("\nWARNINGS:\n")
		for _, warn := range v.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	if len(v.Errors) == 0 && len(v.Warnings) == 0 {
		sb.WriteString("Validation passed with no issues.\n")
	}

	return sb.String()
}

func (v *Validator) validateTopology(f *parser.File) {
	if f.Validators <= 0 {
		v.Errors = append(v.Errors, "validators must be positive")
	}
	if f.Executors < 0 {
		v.Errors = append(v.Errors, "executors must not be negative")
	}
	if f.Executors == 0 {
		v.Warnings = append(v.Warnings, "no executors configured; data_availability workloads will have no DA-capable nodes to publish against")
	}
	if f.Validators > 0 && f.Validators < 4 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("only %d validators configured; consensus liveness expectations are more meaningful with a larger committee", f.Validators))
	}
}

func (v *Validator) validateRunDuration(f *parser.File) {
	d, err := time.ParseDuration(f.RunDuration)
	if err != nil {
		v.Errors = append(v.Errors, fmt.Sprintf("run_duration is invalid: %v", err))
		return
	}
	if d <= 0 {
		v.Errors = append(v.Errors, "run_duration must be > 0")
		return
	}
	if d.Hours() > 24 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("run_duration is very long (%.1f hours)", d.Hours()))
	}
	if d < 30*time.Second {
		v.Warnings = append(v.Warnings, fmt.Sprintf("run_duration (%s) is short; expectations may not accumulate enough samples", d))
	}
}

func (v *Validator) validateWallets(f *parser.File) {
	if f.Wallets == nil {
		return
	}
	if f.Wallets.UserCount <= 0 {
		v.Errors = append(v.Errors, "wallets.user_count must be positive when wallets is set")
	}
	if f.Wallets.TotalFunds == 0 {
		v.Errors = append(v.Errors, "wallets.total_funds must be positive when wallets is set")
	}
	if f.Wallets.UserCount > 0 && uint64(f.Wallets.UserCount) > f.Wallets.TotalFunds {
		v.Errors = append(v.Errors, "wallets.user_count cannot exceed wallets.total_funds (each account needs at least 1 unit)")
	}
}

func (v *Validator) validateWorkloads(f *parser.File) {
	w := f.Workloads
	if w.Transaction == nil && w.DataAvailability == nil && w.ChaosRestart == nil {
		v.Errors = append(v.Errors, "at least one workload (transaction, data_availability, chaos_restart) is required")
		return
	}

	if t := w.Transaction; t != nil {
		if f.Wallets == nil {
			v.Errors = append(v.Errors, "workloads.transaction requires wallets to be configured")
		}
		if t.UserLimit < 0 {
			v.Errors = append(v.Errors, "workloads.transaction.user_limit must not be negative")
		}
		if t.RatePerBlock == 0 {
			v.Warnings = append(v.Warnings, "workloads.transaction.rate_per_block is 0; no transactions will be submitted")
		}
	}

	if da := w.DataAvailability; da != nil {
		if da.ChannelRatePerBlock <= 0 {
			v.Errors = append(v.Errors, "workloads.data_availability.channel_rate_per_block must be > 0")
		}
		if da.BlobRatePerBlock <= 0 {
			v.Errors = append(v.Errors, "workloads.data_availability.blob_rate_per_block must be > 0")
		}
		if da.HeadroomPct < 0 || da.HeadroomPct > 100 {
			v.Errors = append(v.Errors, "workloads.data_availability.headroom_pct must be between 0 and 100")
		}
		if f.Executors == 0 {
			v.Errors = append(v.Errors, "workloads.data_availability requires at least one executor")
		}
	}

	if cr := w.ChaosRestart; cr != nil {
		v.validateChaosRestart(cr)
	}
}

func (v *Validator) validateChaosRestart(cr *parser.ChaosRestartSpec) {
	minDelay, errMin := time.ParseDuration(cr.MinDelay)
	maxDelay, errMax := time.ParseDuration(cr.MaxDelay)
	cooldown, errCooldown := time.ParseDuration(cr.TargetCooldown)

	if errMin != nil {
		v.Errors = append(v.Errors, fmt.Sprintf("workloads.chaos_restart.min_delay is invalid: %v", errMin))
	}
	if errMax != nil {
		v.Errors = append(v.Errors, fmt.Sprintf("workloads.chaos_restart.max_delay is invalid: %v", errMax))
	}
	if errCooldown != nil {
		v.Errors = append(v.Errors, fmt.Sprintf("workloads.chaos_restart.target_cooldown is invalid: %v", errCooldown))
	}
	if errMin == nil && errMax == nil && minDelay > maxDelay {
		v.Errors = append(v.Errors, "workloads.chaos_restart.min_delay must not exceed max_delay")
	}
	if errCooldown == nil && cooldown <= 0 {
		v.Errors = append(v.Errors, "workloads.chaos_restart.target_cooldown must be > 0")
	}
	if !cr.IncludeValidators && !cr.IncludeExecutors {
		v.Errors = append(v.Errors, "workloads.chaos_restart must include at least one of include_validators, include_executors")
	}
}

func (v *Validator) validateExpectations(f *parser.File) {
	if cl := f.Expectations.ConsensusLiveness; cl != nil {
		if cl.LagAllowance < 0 {
			v.Errors = append(v.Errors, "expectations.consensus_liveness.lag_allowance must not be negative")
		}
	}
}

func (v *Validator) checkDangerousScenarios(f *parser.File) {
	if cr := f.Workloads.ChaosRestart; cr != nil {
		if cooldown, err := time.ParseDuration(cr.TargetCooldown); err == nil {
			if runDuration, err := time.ParseDuration(f.RunDuration); err == nil && cooldown > runDuration {
				v.Warnings = append(v.Warnings, "chaos_restart.target_cooldown exceeds run_duration; each node can be restarted at most once")
			}
		}
		if cr.IncludeValidators && f.Validators <= 1 {
			v.Warnings = append(v.Warnings, "chaos_restart.include_validators has no effect with only one validator configured; a lone validator is never restarted")
		}
	}

	if f.Expectations.ConsensusLiveness == nil {
		v.Warnings = append(v.Warnings, "expectations.consensus_liveness is not configured; only expectations contributed by workloads will be evaluated")
	}
}
