package service_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"votechain/blockchain"
	"votechain/models"
	"votechain/registry"
	"votechain/service"
)

var testCandidates = []string{"Alice", "Bob", "Charlie", "Diana"}

func newTestService(t *testing.T) (*service.VotingService, *blockchain.Ledger) {
	t.Helper()
	ledger, err := blockchain.New(1, 0)
	require.NoError(t, err)
	return service.New(registry.New(), ledger, testCandidates), ledger
}

func TestCastVoteHappyPath(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.RegisterVoter("V1")
	require.NoError(t, err)

	record, err := svc.CastVote("V1", token, "Alice")
	require.NoError(t, err)
	assert.Equal(t, models.TxTypeVote, record.Type)
	assert.Equal(t, "V1", record.VoterID)
	assert.Equal(t, "Alice", record.Candidate)
	assert.NotEmpty(t, record.ID)

	_, pending, _ := svc.Chain()
	assert.Equal(t, 1, pending)
}

func TestCastVoteTwiceWhilePending(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.RegisterVoter("V1")
	require.NoError(t, err)
	_, err = svc.CastVote("V1", token, "Alice")
	require.NoError(t, err)

	_, err = svc.CastVote("V1", token, "Bob")
	require.ErrorIs(t, err, service.ErrAlreadyVoted)

	_, pending, _ := svc.Chain()
	assert.Equal(t, 1, pending)
	assert.Equal(t, map[string]int{"Alice": 1}, svc.Results())
}

func TestMineNowAndResults(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.RegisterVoter("V1")
	require.NoError(t, err)
	_, err = svc.CastVote("V1", token, "Alice")
	require.NoError(t, err)

	block, err := svc.MineNow()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), block.Index)
	require.Len(t, block.Transactions, 1)
	assert.Equal(t, "V1", block.Transactions[0].VoterID)

	blocks, pending, total := svc.Chain()
	assert.Len(t, blocks, 2)
	assert.Equal(t, 0, pending)
	assert.Equal(t, 1, total)
	assert.Equal(t, map[string]int{"Alice": 1}, svc.Results())
}

func TestCastVoteTwiceAfterMining(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.RegisterVoter("V1")
	require.NoError(t, err)
	_, err = svc.CastVote("V1", token, "Alice")
	require.NoError(t, err)
	_, err = svc.MineNow()
	require.NoError(t, err)

	// The pending pool is empty now; the mined-block check must still reject.
	_, err = svc.CastVote("V1", token, "Bob")
	require.ErrorIs(t, err, service.ErrAlreadyVoted)
	assert.Equal(t, map[string]int{"Alice": 1}, svc.Results())
}

func TestCastVoteInvalidToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RegisterVoter("V2")
	require.NoError(t, err)

	_, err = svc.CastVote("V2", "wrong-token", "Alice")
	require.ErrorIs(t, err, registry.ErrInvalidToken)

	_, pending, total := svc.Chain()
	assert.Equal(t, 0, pending)
	assert.Equal(t, 0, total)
	assert.Empty(t, svc.Results())
}

func TestCastVoteNotRegistered(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CastVote("ghost", "token", "Alice")
	require.ErrorIs(t, err, registry.ErrNotRegistered)
}

func TestCastVoteInvalidCandidate(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.RegisterVoter("V1")
	require.NoError(t, err)

	_, err = svc.CastVote("V1", token, "Mallory")
	require.ErrorIs(t, err, service.ErrInvalidCandidate)

	_, pending, _ := svc.Chain()
	assert.Equal(t, 0, pending)
}

func TestStatusTransitions(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.RegisterVoter("V1")
	require.NoError(t, err)

	status := svc.Status()
	require.Contains(t, status, "V1")
	assert.True(t, status["V1"].Registered)
	assert.False(t, status["V1"].HasVoted)
	assert.Equal(t, "Not voted", status["V1"].VotedAt)
	assert.Equal(t, token[:4]+"...", status["V1"].TokenPreview)

	_, err = svc.CastVote("V1", token, "Alice")
	require.NoError(t, err)
	status = svc.Status()
	assert.True(t, status["V1"].HasVoted)
	assert.Equal(t, "Pending", status["V1"].VotedAt)

	_, err = svc.MineNow()
	require.NoError(t, err)
	status = svc.Status()
	assert.True(t, status["V1"].HasVoted)
	assert.Equal(t, "Mined", status["V1"].VotedAt)
}

func TestCandidatesSorted(t *testing.T) {
	svc, _ := newTestService(t)
	assert.Equal(t, []string{"Alice", "Bob", "Charlie", "Diana"}, svc.Candidates())
}

func TestConcurrentCastVoteAdmitsOne(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.RegisterVoter("V1")
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CastVote("V1", token, "Alice")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for err := range results {
		if err == nil {
			admitted++
		} else {
			require.ErrorIs(t, err, service.ErrAlreadyVoted)
		}
	}
	assert.Equal(t, 1, admitted)
	assert.Equal(t, map[string]int{"Alice": 1}, svc.Results())
}
