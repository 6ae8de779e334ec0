// Package workloads implements the concrete workload contracts (§4.5): the
// self-transfer transaction generator, the data-availability channel flow,
// and the chaos-restart node-control driver.
package workloads

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jihwankim/nomos-harness/pkg/expectations"
	"github.com/jihwankim/nomos-harness/pkg/harness"
	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/runtime/nodeclient"
	"github.com/jihwankim/nomos-harness/pkg/runtime/runcontext"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// Transaction submits rate_per_block self-transfer transactions per block on
// average, each from a distinct wallet account funded at genesis (§4.5.1).
type Transaction struct {
	RateBlock uint64
	UserLimit int
	Log       *reporting.Logger

	matched []walletUtxo
}

type walletUtxo struct {
	account scenario.WalletAccount
	utxo    scenario.Utxo
}

// NewTransaction builds the workload. rateBlock is transactions-per-block;
// userLimit caps the number of wallets used (0 means unlimited).
func NewTransaction(rateBlock uint64, userLimit int, log *reporting.Logger) *Transaction {
	return &Transaction{RateBlock: rateBlock, UserLimit: userLimit, Log: log}
}

func (w *Transaction) Name() string { return "transaction" }

func (w *Transaction) Expectations() []harness.Expectation {
	return []harness.Expectation{expectations.NewTxInclusion(w.RateBlock, w.UserLimit)}
}

// Init builds {pk -> Utxo} from the topology's genesis config and
// intersects it with the configured wallet set, before any node client
// exists.
func (w *Transaction) Init(topology scenario.Topology, metrics scenario.RunMetrics) error {
	gc, err := scenario.ParseGenesisConfig(topology.Config)
	if err != nil {
		return fmt.Errorf("%s: %w", w.Name(), err)
	}

	byKey := gc.UtxoByPublicKey()
	limit := scenario.LimitedUserCount(w.UserLimit, len(gc.Wallets.Accounts))

	matched := make([]walletUtxo, 0, limit)
	for _, acc := range gc.Wallets.Accounts {
		if len(matched) >= limit {
			break
		}
		utxo, ok := byKey[acc.PublicKey]
		if !ok {
			continue
		}
		matched = append(matched, walletUtxo{account: acc, utxo: utxo})
	}
	if len(matched) == 0 {
		return fmt.Errorf("%s: no genesis-funded wallet accounts available", w.Name())
	}
	w.matched = matched
	return nil
}

// Start computes the submission plan against the run's actual duration and
// block-interval hint (only available once a RunContext exists), then pops
// wallets FIFO, submitting one self-transfer transaction per wallet.
func (w *Transaction) Start(ctx context.Context, rc *runcontext.RunContext) error {
	planned, interval, err := scenario.SubmissionPlan(rc.RunDuration(), rc.RunMetrics().BlockIntervalHint, w.RateBlock, len(w.matched))
	if err != nil {
		return fmt.Errorf("%s: %w", w.Name(), err)
	}

	queue := w.matched[:planned]
	clients := rc.Clients().AllClients()

	for i, wu := range queue {
		tx := signSelfTransfer(wu.account, wu.utxo)
		_, err := nodeclient.TryAllClients(ctx, clients, func(ctx context.Context, c *nodeclient.Client) (struct{}, error) {
			return struct{}{}, c.SubmitTransaction(ctx, tx)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%s: submit tx %d/%d: %w", w.Name(), i+1, planned, err)
		}
		if w.Log != nil {
			w.Log.Debug("submitted self-transfer", "index", i, "wallet", wu.account.Label)
		}

		if i == len(queue)-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
	return nil
}

// signSelfTransfer builds a self-transfer transaction spending the wallet's
// genesis utxo back to the same public key, with a deterministic digest
// signature derived from the wallet's secret key.
func signSelfTransfer(acc scenario.WalletAccount, utxo scenario.Utxo) []byte {
	body, _ := json.Marshal(struct {
		TxHash    [32]byte `json:"tx_hash"`
		Index     int      `json:"index"`
		OutputKey [32]byte `json:"output_key"`
		Value     uint64   `json:"value"`
	}{utxo.TxHash, utxo.Index, acc.PublicKey, utxo.Value})

	sig := sha256.Sum256(append(append([]byte{}, acc.SecretKey[:]...), body...))

	signed, _ := json.Marshal(struct {
		Body      json.RawMessage `json:"body"`
		Signature [32]byte        `json:"signature"`
	}{body, sig})
	return signed
}
