package metrics_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"votechain/metrics"
)

func TestNewServer(t *testing.T) {
	t.Run("StartServer", func(t *testing.T) {
		server, err := metrics.NewServer("127.0.0.1:0")
		require.NoError(t, err)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			require.NoError(t, server.Shutdown(ctx))
		}()

		resp, err := http.Get("http://" + server.Addr + "/metrics")
		require.NoError(t, err, "Failed to connect to metrics server")
		defer resp.Body.Close()
		require.Equal(t, 200, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), "votechain_chain_height")
		require.Contains(t, string(body), "votechain_blocks_mined_total")
	})

	t.Run("WhenInvalidAddress", func(t *testing.T) {
		_, err := metrics.NewServer("invalid-address")
		require.Error(t, err)
	})
}
