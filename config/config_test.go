package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"votechain/config"
)

func validConfig() config.Config {
	return config.Config{
		Candidates:     []string{"Alice", "Bob"},
		Difficulty:     2,
		MineInterval:   20 * time.Second,
		Listen:         ":8080",
		PrometheusAddr: "0.0.0.0:2112",
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "NoCandidates",
			mutate:  func(c *config.Config) { c.Candidates = nil },
			wantErr: "at least one candidate",
		},
		{
			name:    "EmptyCandidate",
			mutate:  func(c *config.Config) { c.Candidates = []string{"Alice", ""} },
			wantErr: "non-empty",
		},
		{
			name:    "DuplicateCandidate",
			mutate:  func(c *config.Config) { c.Candidates = []string{"Alice", "Alice"} },
			wantErr: "duplicate candidate",
		},
		{
			name:    "DifficultyTooLow",
			mutate:  func(c *config.Config) { c.Difficulty = 0 },
			wantErr: "difficulty",
		},
		{
			name:    "DifficultyTooHigh",
			mutate:  func(c *config.Config) { c.Difficulty = 9 },
			wantErr: "difficulty",
		},
		{
			name:    "ZeroInterval",
			mutate:  func(c *config.Config) { c.MineInterval = 0 },
			wantErr: "mine-interval",
		},
		{
			name:    "MissingListen",
			mutate:  func(c *config.Config) { c.Listen = "" },
			wantErr: "listen",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
