package scenario

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// WalletConfig is the scenario's genesis wallet configuration: a list of
// accounts to fund at genesis.
type WalletConfig struct {
	Accounts []WalletAccount
}

// WalletConfigUniform distributes totalFunds across userCount accounts as
// evenly as possible: every account gets base = totalFunds/userCount, and the
// remainder (totalFunds%userCount) is distributed one unit at a time to the
// first accounts, so the sum is exactly totalFunds. Public keys are a pure
// function of (seed prefix, index) via deterministicWallet.
func WalletConfigUniform(totalFunds uint64, userCount int) (WalletConfig, error) {
	if userCount <= 0 {
		return WalletConfig{}, fmt.Errorf("scenario: wallet user count must be positive, got %d", userCount)
	}
	if totalFunds < uint64(userCount) {
		return WalletConfig{}, fmt.Errorf("scenario: total funds %d cannot cover %d accounts with at least 1 unit each", totalFunds, userCount)
	}

	base := totalFunds / uint64(userCount)
	remainder := totalFunds % uint64(userCount)

	accounts := make([]WalletAccount, userCount)
	for i := 0; i < userCount; i++ {
		value := base
		if uint64(i) < remainder {
			value++
		}
		accounts[i] = deterministicWallet(i, value)
	}
	return WalletConfig{Accounts: accounts}, nil
}

// walletSeedPrefix is the fixed prefix mixed into every deterministic wallet
// seed, matching the two-byte prefix used by the reference wallet derivation.
var walletSeedPrefix = [2]byte{'w', 'l'}

// deterministicWallet derives a WalletAccount whose secret/public key pair is
// a pure function of (walletSeedPrefix, index); value is attached afterward
// and does not influence the derived keys.
func deterministicWallet(index int, value uint64) WalletAccount {
	seed := make([]byte, 0, 2+8)
	seed = append(seed, walletSeedPrefix[:]...)
	idx := make([]byte, 8)
	binary.LittleEndian.PutUint64(idx, uint64(index))
	seed = append(seed, idx...)

	secret := sha256.Sum256(seed)
	public := sha256.Sum256(secret[:])

	return WalletAccount{
		Label:     fmt.Sprintf("wallet-user-%d", index),
		SecretKey: secret,
		PublicKey: public,
		Value:     value,
	}
}
