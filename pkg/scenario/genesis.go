package scenario

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Utxo references one spendable genesis ledger output: the transaction that
// created it, the output's index within that transaction, and the output
// itself (public key + value).
type Utxo struct {
	TxHash    [32]byte `yaml:"tx_hash"`
	Index     int      `yaml:"index"`
	PublicKey [32]byte `yaml:"public_key"`
	Value     uint64   `yaml:"value"`
}

// GenesisConfig is the genesis section embedded in a Topology's shared
// Config blob: the wallet accounts a deployer seeded at genesis, and the
// resulting spendable outputs. Workloads read this at Init time rather than
// querying a node, since Init runs before any node client exists.
type GenesisConfig struct {
	Wallets WalletConfig `yaml:"wallets"`
	Outputs []Utxo       `yaml:"outputs"`
}

// ParseGenesisConfig decodes a Topology's Config blob. An empty blob decodes
// to a zero-value GenesisConfig rather than an error, since not every
// scenario needs one (e.g. a DA-only run with no funded wallets).
func ParseGenesisConfig(raw []byte) (GenesisConfig, error) {
	if len(raw) == 0 {
		return GenesisConfig{}, nil
	}
	var gc GenesisConfig
	if err := yaml.Unmarshal(raw, &gc); err != nil {
		return GenesisConfig{}, fmt.Errorf("scenario: invalid genesis config: %w", err)
	}
	return gc, nil
}

// UtxoByPublicKey indexes the genesis outputs by recipient public key, for
// matching against a configured wallet's account list.
func (gc GenesisConfig) UtxoByPublicKey() map[[32]byte]Utxo {
	m := make(map[[32]byte]Utxo, len(gc.Outputs))
	for _, u := range gc.Outputs {
		m[u.PublicKey] = u
	}
	return m
}

// Marshal encodes the genesis config back to the blob format Topology.Config
// expects. No deployer or parser in this repository calls it: Topology.Config
// holds whatever the caller put into the topology it built.
func (gc GenesisConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(gc)
}

// GenesisConfigFromWallets builds a GenesisConfig whose outputs are exactly
// the wallet accounts' balances, each in its own single-output transaction —
// the simplest genesis ledger shape a self-transfer workload can spend from.
func GenesisConfigFromWallets(w WalletConfig) GenesisConfig {
	outputs := make([]Utxo, 0, len(w.Accounts))
	for i, acc := range w.Accounts {
		var txHash [32]byte
		txHash[0] = byte(i)
		txHash[1] = byte(i >> 8)
		txHash[2] = byte(i >> 16)
		txHash[3] = byte(i >> 24)
		outputs = append(outputs, Utxo{
			TxHash:    txHash,
			Index:     0,
			PublicKey: acc.PublicKey,
			Value:     acc.Value,
		})
	}
	return GenesisConfig{Wallets: w, Outputs: outputs}
}
