package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"votechain/blockchain"
)

// AutoMiner periodically flushes the ledger's pending pool into a new block.
// It goes through the same MineBlock entry point as the manual trigger, so
// the two contend for the ledger mutex and never mine concurrently.
type AutoMiner struct {
	ledger   *blockchain.Ledger
	clock    clockwork.Clock
	interval time.Duration
}

// NewAutoMiner builds a miner ticking on the given clock. Tests pass a fake
// clock; production callers pass clockwork.NewRealClock().
func NewAutoMiner(ledger *blockchain.Ledger, interval time.Duration, clock clockwork.Clock) *AutoMiner {
	return &AutoMiner{
		ledger:   ledger,
		clock:    clock,
		interval: interval,
	}
}

// Run mines on every tick until the context is cancelled.
func (m *AutoMiner) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	slog.Info("Auto-miner started", "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Auto-miner stopped")
			return nil
		case <-ticker.Chan():
			block, err := m.ledger.MineBlock()
			switch {
			case errors.Is(err, blockchain.ErrNothingToMine):
				slog.Debug("No votes to mine")
			case err != nil:
				slog.Error("Auto-mining failed", "error", err)
			default:
				slog.Info("Auto-mined block", "index", block.Index, "votes", len(block.Transactions))
			}
		}
	}
}
