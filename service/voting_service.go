package service

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"votechain/blockchain"
	"votechain/metrics"
	"votechain/models"
	"votechain/registry"
)

var (
	ErrInvalidCandidate = errors.New("invalid candidate")
	ErrAlreadyVoted     = errors.New("voter has already cast a vote")
)

// recordIDLength is the number of hex characters in a vote record id.
const recordIDLength = 16

// VoterStatus is the per-voter view exposed by Status.
type VoterStatus struct {
	Registered   bool   `json:"registered"`
	HasVoted     bool   `json:"has_voted"`
	TokenPreview string `json:"token_preview"`
	VotedAt      string `json:"voted_at"`
}

// VotingService composes the registry and the ledger to enforce one vote per
// voter. The admission decision in CastVote is serialized by a service-wide
// mutex so two concurrent calls for the same voter cannot both pass the
// double-vote check before either submits.
type VotingService struct {
	mu         sync.Mutex
	registry   *registry.VoterRegistry
	ledger     *blockchain.Ledger
	candidates map[string]bool
}

// New builds a VotingService over an existing registry and ledger. The
// candidate set is fixed at startup and never mutated afterwards.
func New(reg *registry.VoterRegistry, ledger *blockchain.Ledger, candidates []string) *VotingService {
	set := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		set[candidate] = true
	}
	return &VotingService{
		registry:   reg,
		ledger:     ledger,
		candidates: set,
	}
}

// RegisterVoter issues a token for a new voter.
func (s *VotingService) RegisterVoter(voterID string) (string, error) {
	return s.registry.Register(voterID)
}

// CastVote admits at most one vote per voter. The double-vote check consults
// the registry flag, the pending pool and every mined block: a voter who
// voted before the last mining cycle must stay rejected after mining clears
// the pool.
func (s *VotingService) CastVote(voterID, token, candidate string) (models.VoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.registry.Exists(voterID) {
		return models.VoteRecord{}, errors.Wrap(registry.ErrNotRegistered, voterID)
	}
	if !s.registry.Verify(voterID, token) {
		return models.VoteRecord{}, errors.Wrap(registry.ErrInvalidToken, voterID)
	}
	if !s.candidates[candidate] {
		return models.VoteRecord{}, errors.Wrap(ErrInvalidCandidate, candidate)
	}
	if s.registry.HasVoted(voterID) || s.ledger.HasVoted(voterID) {
		return models.VoteRecord{}, errors.Wrap(ErrAlreadyVoted, voterID)
	}

	now := time.Now()
	record := models.VoteRecord{
		ID:        recordID(voterID, candidate, now),
		Type:      models.TxTypeVote,
		VoterID:   voterID,
		Candidate: candidate,
		CastAt:    now.Unix(),
	}

	s.ledger.Submit(record)
	s.registry.MarkVoted(voterID)

	metrics.VotesCast.WithLabelValues(candidate).Inc()
	slog.Info("Vote admitted", "voter_id", voterID, "record_id", record.ID)
	return record, nil
}

// recordID derives a stable receipt digest for a vote record.
func recordID(voterID, candidate string, castAt time.Time) string {
	sum := sha3.Sum256([]byte(fmt.Sprintf("%s|%s|%d", voterID, candidate, castAt.UnixNano())))
	return hex.EncodeToString(sum[:])[:recordIDLength]
}

// Results returns vote counts per candidate across mined and pending records.
func (s *VotingService) Results() map[string]int {
	return s.ledger.Tally()
}

// MineNow flushes the pending pool into a new block. It shares the ledger
// mutex with the background miner, so at most one proof-of-work search is
// ever in flight.
func (s *VotingService) MineNow() (models.Block, error) {
	return s.ledger.MineBlock()
}

// Validate checks chain integrity without mutating it.
func (s *VotingService) Validate() error {
	return s.ledger.ValidateChain()
}

// Chain returns the mined blocks, the pending pool size and the total vote
// count for display collaborators.
func (s *VotingService) Chain() ([]models.Block, int, int) {
	return s.ledger.Snapshot()
}

// Candidates returns the fixed candidate set in sorted order.
func (s *VotingService) Candidates() []string {
	out := make([]string, 0, len(s.candidates))
	for candidate := range s.candidates {
		out = append(out, candidate)
	}
	sort.Strings(out)
	return out
}

// Status reports every registered voter's state. The voted-at field is
// derived from the ledger's authoritative pending/mined membership rather
// than the cached registry flag alone.
func (s *VotingService) Status() map[string]VoterStatus {
	status := make(map[string]VoterStatus)
	for id, voter := range s.registry.Voters() {
		state := s.ledger.VoteState(id)

		votedAt := "Not voted"
		switch state {
		case blockchain.VoteStatePending:
			votedAt = "Pending"
		case blockchain.VoteStateMined:
			votedAt = "Mined"
		}

		status[id] = VoterStatus{
			Registered:   true,
			HasVoted:     voter.HasVoted || state != blockchain.VoteStateNone,
			TokenPreview: voter.Token[:4] + "...",
			VotedAt:      votedAt,
		}
	}
	return status
}
