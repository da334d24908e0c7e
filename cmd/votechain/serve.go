package votechain

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"votechain/api"
	"votechain/blockchain"
	"votechain/config"
	"votechain/metrics"
	"votechain/registry"
	"votechain/service"
)

var serveConfig config.Config

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the voting service",
	Long:  `serve mines the genesis block, starts the HTTP API and the background auto-miner, and runs until interrupted.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		serveConfig = config.LoadFromCLI()
		if err := serveConfig.Validate(); err != nil {
			return fmt.Errorf("invalid serve configuration: %w", err)
		}
		slog.Debug("Command-line arguments", "serveConfig", serveConfig)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(serveConfig)
	},
}

func init() {
	ServeCmd.PersistentFlags().StringSlice("candidates", []string{"Alice", "Bob", "Charlie", "Diana"}, "Fixed candidate set")
	ServeCmd.PersistentFlags().UintP("difficulty", "d", 2, "Required number of leading zero hex characters in a block hash")
	ServeCmd.PersistentFlags().DurationP("mine-interval", "i", 20*time.Second, "Auto-mining interval")
	ServeCmd.PersistentFlags().Uint64("max-mine-attempts", 0, "Cap on nonce iterations per block, 0 means unbounded (advanced)")
	ServeCmd.PersistentFlags().String("listen", ":8080", "Address and port of the HTTP API")
	ServeCmd.PersistentFlags().Bool("enable-prometheus", false, "Enable Prometheus metrics server")
	ServeCmd.PersistentFlags().String("prometheus-addr", "0.0.0.0:2112", "Address and port of the Prometheus metrics server")

	if err := viper.BindPFlags(ServeCmd.PersistentFlags()); err != nil {
		slog.Error("Failed to bind ServeCmd flags", "error", err)
	}
}

func runServe(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A genesis mining failure is fatal: the service cannot run without a
	// valid chain root.
	ledger, err := blockchain.New(cfg.Difficulty, cfg.MaxMineAttempts)
	if err != nil {
		return errors.WithMessage(err, "failed to initialize ledger")
	}

	reg := registry.New()
	svc := service.New(reg, ledger, cfg.Candidates)
	miner := service.NewAutoMiner(ledger, cfg.MineInterval, clockwork.NewRealClock())

	apiServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.NewServer(svc).Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP API listening", "addr", cfg.Listen)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return errors.WithMessage(err, "API server failed")
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return apiServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return miner.Run(ctx)
	})

	if cfg.EnablePrometheus {
		metricsServer, err := metrics.NewServer(cfg.PrometheusAddr)
		if err != nil {
			return errors.WithMessage(err, "failed to start metrics server")
		}
		slog.Info("Metrics server listening", "addr", metricsServer.Addr)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
