package registry

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"votechain/metrics"
	"votechain/models"
)

var (
	ErrAlreadyRegistered = errors.New("voter already registered")
	ErrNotRegistered     = errors.New("voter not registered")
	ErrInvalidToken      = errors.New("invalid token")
)

// TokenLength is the number of hex characters in an issued token.
const TokenLength = 12

// VoterRegistry owns the voter_id -> Voter mapping. Entries are created once
// at registration and never removed.
type VoterRegistry struct {
	mu     sync.RWMutex
	voters map[string]*models.Voter
}

func New() *VoterRegistry {
	return &VoterRegistry{voters: make(map[string]*models.Voter)}
}

// Register issues a token for a new voter. Registering the same voter twice
// fails with ErrAlreadyRegistered.
func (r *VoterRegistry) Register(voterID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.voters[voterID]; exists {
		return "", errors.Wrap(ErrAlreadyRegistered, voterID)
	}

	token := newToken(voterID)
	r.voters[voterID] = &models.Voter{ID: voterID, Token: token}

	metrics.VotersRegistered.Inc()
	slog.Info("Voter registered", "voter_id", voterID)
	return token, nil
}

// newToken derives an unguessable token from the voter id, a fresh UUID and
// the current time, digested and truncated to a fixed display length.
func newToken(voterID string) string {
	seed := fmt.Sprintf("%s%s%d", voterID, uuid.NewString(), time.Now().UnixNano())
	digest := crypto.Keccak256([]byte(seed))
	return strings.TrimPrefix(hexutil.Encode(digest), "0x")[:TokenLength]
}

// Verify reports whether voterID is registered with exactly this token.
func (r *VoterRegistry) Verify(voterID, token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	voter, exists := r.voters[voterID]
	if !exists {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(voter.Token), []byte(token)) == 1
}

// Exists reports whether voterID is registered.
func (r *VoterRegistry) Exists(voterID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.voters[voterID]
	return exists
}

// HasVoted reports the voter's local voted flag.
func (r *VoterRegistry) HasVoted(voterID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	voter, exists := r.voters[voterID]
	return exists && voter.HasVoted
}

// MarkVoted flips the voter's flag. Idempotent; unknown voters are ignored.
func (r *VoterRegistry) MarkVoted(voterID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if voter, exists := r.voters[voterID]; exists {
		voter.HasVoted = true
	}
}

// Voters returns a copy of every registered voter keyed by id.
func (r *VoterRegistry) Voters() map[string]models.Voter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.Voter, len(r.voters))
	for id, voter := range r.voters {
		out[id] = *voter
	}
	return out
}
