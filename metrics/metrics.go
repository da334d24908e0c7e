package metrics

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VotersRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "votechain_voters_registered_total",
		Help: "Total number of registered voters.",
	})

	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votechain_votes_cast_total",
		Help: "Total number of admitted votes per candidate.",
	}, []string{"candidate"})

	BlocksMined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "votechain_blocks_mined_total",
		Help: "Total number of mined blocks, genesis included.",
	})

	PendingVotes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "votechain_pending_votes",
		Help: "Number of admitted votes waiting to be mined.",
	})

	ChainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "votechain_chain_height",
		Help: "Number of blocks in the chain.",
	})
)

// NewServer starts a Prometheus metrics server on addr and returns it so the
// caller can shut it down gracefully.
func NewServer(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: ln.Addr().String(), Handler: mux}
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	return server, nil
}
