// Package scenario defines the data model for integration test scenarios run
// against a validator/executor node stack; the fluent builder lives in
// pkg/harness.
package scenario

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// NodeRole distinguishes the two kinds of node in the target stack.
type NodeRole int

const (
	RoleValidator NodeRole = iota
	RoleExecutor
)

func (r NodeRole) String() string {
	switch r {
	case RoleValidator:
		return "validator"
	case RoleExecutor:
		return "executor"
	default:
		return "unknown"
	}
}

// NodeID is a stable 32-byte node identifier.
type NodeID [32]byte

func (id NodeID) String() string {
	return fmt.Sprintf("%x", id[:8])
}

// nodeIDSeedPrefix is mixed into every derived node id, the same derivation
// shape as walletSeedPrefix in wallet.go.
var nodeIDSeedPrefix = [2]byte{'n', 'd'}

// DeriveNodeID computes the stable node id for (role, index): a pure
// function of the pair, so two topologies built with the same role/index
// layout always assign the same ids. Used by the scenario parser when it
// lays out a Topology's NodeDescriptors.
func DeriveNodeID(role NodeRole, index int) NodeID {
	seed := make([]byte, 0, 2+1+8)
	seed = append(seed, nodeIDSeedPrefix[:]...)
	seed = append(seed, byte(role))
	idx := make([]byte, 8)
	binary.LittleEndian.PutUint64(idx, uint64(index))
	seed = append(seed, idx...)
	return sha256.Sum256(seed)
}

// NodeDescriptor is immutable once a Topology is built. (role, index) is
// unique within a topology; (role, index, ID) determines network identity.
type NodeDescriptor struct {
	Role NodeRole
	// Index is zero-based within Role.
	Index int
	ID    NodeID

	NetworkPort int
	DAPort      int
	BlendPort   int
	APIPort     int
	TestingPort int

	// Config is an opaque per-node config blob produced by node-config
	// synthesis; the core never interprets it.
	Config []byte
}

func (d NodeDescriptor) String() string {
	return fmt.Sprintf("%s-%d", d.Role, d.Index)
}

// Topology is the full set of nodes that make up one run.
type Topology struct {
	Validators []NodeDescriptor
	Executors  []NodeDescriptor
	// Config is the shared per-topology config blob (e.g. genesis params).
	Config []byte
}

// Validate enforces the Topology invariants: validator/executor indices are
// dense 0..n, and at least one validator is present.
func (t Topology) Validate() error {
	if len(t.Validators) == 0 {
		return fmt.Errorf("topology: at least one validator is required")
	}
	for i, v := range t.Validators {
		if v.Role != RoleValidator || v.Index != i {
			return fmt.Errorf("topology: validator at position %d has role=%s index=%d, want role=validator index=%d", i, v.Role, v.Index, i)
		}
	}
	for i, e := range t.Executors {
		if e.Role != RoleExecutor || e.Index != i {
			return fmt.Errorf("topology: executor at position %d has role=%s index=%d, want role=executor index=%d", i, e.Role, e.Index, i)
		}
	}
	return nil
}

// ReferenceNode returns the node workloads should use to read genesis state:
// the first validator, or failing that the first executor.
func (t Topology) ReferenceNode() (NodeDescriptor, bool) {
	if len(t.Validators) > 0 {
		return t.Validators[0], true
	}
	if len(t.Executors) > 0 {
		return t.Executors[0], true
	}
	return NodeDescriptor{}, false
}

// RunMetrics are derived quantities exposed to workloads/expectations via the
// run context. They are computed once, at RunContext construction time.
type RunMetrics struct {
	// ExpectedConsensusBlocks = max(1, ceil(run_duration / BlockIntervalHint)).
	ExpectedConsensusBlocks uint64
	// BlockIntervalHint is the first slot duration observed in the topology,
	// or zero if unknown.
	BlockIntervalHint time.Duration
}

// ComputeRunMetrics derives RunMetrics from a run duration and a block
// interval hint (zero if unknown, in which case callers fall back to the run
// duration itself when dividing).
func ComputeRunMetrics(runDuration, blockIntervalHint time.Duration) RunMetrics {
	interval := blockIntervalHint
	if interval <= 0 {
		interval = runDuration
	}
	expected := uint64(1)
	if interval > 0 {
		blocks := uint64(runDuration / interval)
		if runDuration%interval != 0 {
			blocks++
		}
		if blocks > expected {
			expected = blocks
		}
	}
	return RunMetrics{
		ExpectedConsensusBlocks: expected,
		BlockIntervalHint:       blockIntervalHint,
	}
}

// HeaderID identifies a block header; MsgID identifies a DA channel message
// (inscription or blob) within the ledger.
type HeaderID [32]byte

func (h HeaderID) String() string { return fmt.Sprintf("%x", h[:8]) }

type MsgID [32]byte

func (m MsgID) String() string { return fmt.Sprintf("%x", m[:8]) }

// ChannelID identifies a data-availability channel.
type ChannelID uint64

// LedgerOp is one operation carried by a confirmed block, as far as the
// expectations/workloads in this package need to observe it.
type LedgerOp struct {
	Kind LedgerOpKind
	// Channel is populated for ChannelInscribe/ChannelBlob ops.
	Channel ChannelID
	// MsgID is populated for ChannelInscribe/ChannelBlob ops.
	MsgID MsgID
	// OutputKey is populated for LedgerOutput ops (transaction outputs).
	OutputKey [32]byte
}

type LedgerOpKind int

const (
	OpLedgerOutput LedgerOpKind = iota
	OpChannelInscribe
	OpChannelBlob
)

// Block is the minimal shape of a confirmed block the harness needs: its own
// header id, its parent, and the ops it carries.
type Block struct {
	Header    HeaderID
	Parent    HeaderID
	Height    uint64
	IsGenesis bool
	Ops       []LedgerOp
}

// BlockRecord is what the block feed broadcasts: a confirmed block paired
// with its header id, emitted ancestor-before-descendant.
type BlockRecord struct {
	Header HeaderID
	Block  *Block
}

// WalletAccount is one funded account in the scenario's genesis wallet
// configuration.
type WalletAccount struct {
	Label     string
	SecretKey [32]byte
	PublicKey [32]byte
	Value     uint64
}
