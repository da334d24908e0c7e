package blockchain

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"votechain/metrics"
	"votechain/models"
)

var (
	// ErrNothingToMine is returned by MineBlock when the pending pool is empty.
	ErrNothingToMine = errors.New("no votes to mine")

	// ErrMiningAttemptsExceeded is returned when the configured nonce-search
	// cap is exhausted before a hash satisfies the difficulty target.
	ErrMiningAttemptsExceeded = errors.New("mining attempt limit exceeded")
)

// Reasons reported by a ValidationError.
const (
	ReasonHashMismatch = "hash"
	ReasonLinkMismatch = "link"
)

// ValidationError reports the first block at which chain validation failed.
type ValidationError struct {
	Index  uint64
	Reason string
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonLinkMismatch:
		return fmt.Sprintf("block %d previous hash does not match", e.Index)
	default:
		return fmt.Sprintf("block %d hash is invalid", e.Index)
	}
}

// VoteState describes where a voter's record currently lives.
type VoteState int

const (
	VoteStateNone VoteState = iota
	VoteStatePending
	VoteStateMined
)

// Ledger owns the append-only chain of mined blocks and the mutable pending
// pool. It is the sole mutator of both. Every operation is serialized by one
// mutex; MineBlock holds it for the full proof-of-work search, so submissions
// block until mining completes rather than racing a pool snapshot.
type Ledger struct {
	mu          sync.Mutex
	chain       []models.Block
	pending     []models.VoteRecord
	pendingIDs  map[string]struct{}
	difficulty  uint8
	maxAttempts uint64
}

// New constructs a Ledger and seeds it with the mined genesis block. A
// genesis mining failure is fatal to the caller: the service cannot run
// without a valid chain root.
func New(difficulty uint8, maxAttempts uint64) (*Ledger, error) {
	l := &Ledger{
		pendingIDs:  make(map[string]struct{}),
		difficulty:  difficulty,
		maxAttempts: maxAttempts,
	}

	genesis := models.NewBlock(0, []models.VoteRecord{models.GenesisMarker()}, models.GenesisPrevHash)
	if !genesis.Mine(difficulty, maxAttempts) {
		return nil, errors.Wrap(ErrMiningAttemptsExceeded, "genesis block")
	}
	l.chain = append(l.chain, *genesis)

	metrics.BlocksMined.Inc()
	metrics.ChainHeight.Set(1)
	slog.Info("Genesis block created", "hash", genesis.Hash, "nonce", genesis.Nonce)

	return l, nil
}

// Submit appends a record to the pending pool. Uniqueness and validity are
// the admission controller's responsibility, not the pool's.
func (l *Ledger) Submit(record models.VoteRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, record)
	l.pendingIDs[record.VoterID] = struct{}{}
	metrics.PendingVotes.Set(float64(len(l.pending)))
}

// MineBlock flushes the pending pool into a new block. The pool snapshot,
// the proof-of-work search, the chain append and the pool clear all happen
// under the ledger mutex, so no concurrent Submit can slip between the
// snapshot and the clear.
func (l *Ledger) MineBlock() (models.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		return models.Block{}, ErrNothingToMine
	}

	slog.Info("Mining votes", "count", len(l.pending))

	transactions := make([]models.VoteRecord, len(l.pending))
	copy(transactions, l.pending)

	tip := l.chain[len(l.chain)-1]
	block := models.NewBlock(uint64(len(l.chain)), transactions, tip.Hash)
	if !block.Mine(l.difficulty, l.maxAttempts) {
		// Pool left untouched so the votes are retried on the next cycle.
		return models.Block{}, errors.Wrapf(ErrMiningAttemptsExceeded, "block %d", block.Index)
	}

	l.chain = append(l.chain, *block)
	l.pending = nil
	l.pendingIDs = make(map[string]struct{})

	metrics.BlocksMined.Inc()
	metrics.ChainHeight.Set(float64(len(l.chain)))
	metrics.PendingVotes.Set(0)
	slog.Info("Block mined", "index", block.Index, "votes", len(block.Transactions), "nonce", block.Nonce)

	return *block, nil
}

// ValidateChain recomputes every block digest and checks every previous-hash
// link, reporting the first failing index. A hash mismatch takes precedence
// over a link mismatch at the same index. The chain is never repaired.
func (l *Ledger) ValidateChain() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := 1; i < len(l.chain); i++ {
		current := &l.chain[i]
		previous := &l.chain[i-1]

		if !current.Validate() {
			return &ValidationError{Index: current.Index, Reason: ReasonHashMismatch}
		}
		if current.PrevHash != previous.Hash {
			return &ValidationError{Index: current.Index, Reason: ReasonLinkMismatch}
		}
	}
	return nil
}

// Tally counts votes per candidate across every mined block except genesis,
// plus the pending pool. A record is counted exactly once: MineBlock moves
// it from pending to mined under the same lock Tally takes.
func (l *Ledger) Tally() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(map[string]int)
	for _, block := range l.chain[1:] {
		for _, tx := range block.Transactions {
			if tx.IsVote() {
				counts[tx.Candidate]++
			}
		}
	}
	for _, tx := range l.pending {
		if tx.IsVote() {
			counts[tx.Candidate]++
		}
	}
	return counts
}

// HasVoted reports whether a record attributed to voterID exists in either
// the pending pool or any mined block. Admission consults this alongside the
// registry flag so a voter cannot vote again after mining clears the pool.
func (l *Ledger) HasVoted(voterID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.voteState(voterID) != VoteStateNone
}

// VoteState reports whether voterID's record is pending, mined, or absent.
func (l *Ledger) VoteState(voterID string) VoteState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.voteState(voterID)
}

// voteState must be called with the mutex held.
func (l *Ledger) voteState(voterID string) VoteState {
	if _, ok := l.pendingIDs[voterID]; ok {
		return VoteStatePending
	}
	for _, block := range l.chain[1:] {
		for _, tx := range block.Transactions {
			if tx.IsVote() && tx.VoterID == voterID {
				return VoteStateMined
			}
		}
	}
	return VoteStateNone
}

// Snapshot returns a consistent read-only projection of the chain for
// display collaborators: the blocks, the pending pool size, and the total
// number of admitted votes (mined plus pending).
func (l *Ledger) Snapshot() ([]models.Block, int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	blocks := make([]models.Block, len(l.chain))
	copy(blocks, l.chain)

	total := len(l.pending)
	for _, block := range l.chain[1:] {
		for _, tx := range block.Transactions {
			if tx.IsVote() {
				total++
			}
		}
	}
	return blocks, len(l.pending), total
}
