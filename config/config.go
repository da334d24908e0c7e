package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration, fixed at startup. There is no
// runtime mutation endpoint for any of it.
type Config struct {
	Candidates       []string
	Difficulty       uint8
	MineInterval     time.Duration
	MaxMineAttempts  uint64
	Listen           string
	EnablePrometheus bool
	PrometheusAddr   string
}

// maxDifficulty bounds the leading-zero target; beyond this a single block
// would take minutes to mine on commodity hardware.
const maxDifficulty = 8

func (c Config) Validate() error {
	if len(c.Candidates) == 0 {
		return fmt.Errorf("at least one candidate is required")
	}
	seen := make(map[string]bool, len(c.Candidates))
	for _, candidate := range c.Candidates {
		if candidate == "" {
			return fmt.Errorf("candidate names must be non-empty")
		}
		if seen[candidate] {
			return fmt.Errorf("duplicate candidate: %s", candidate)
		}
		seen[candidate] = true
	}
	if c.Difficulty < 1 || c.Difficulty > maxDifficulty {
		return fmt.Errorf("difficulty must be between 1 and %d, got %d", maxDifficulty, c.Difficulty)
	}
	if c.MineInterval <= 0 {
		return fmt.Errorf("mine-interval must be positive")
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	return nil
}

// LoadFromCLI reads the configuration bound by the serve command's flags.
func LoadFromCLI() Config {
	return Config{
		Candidates:       viper.GetStringSlice("candidates"),
		Difficulty:       uint8(viper.GetUint("difficulty")),
		MineInterval:     viper.GetDuration("mine-interval"),
		MaxMineAttempts:  viper.GetUint64("max-mine-attempts"),
		Listen:           viper.GetString("listen"),
		EnablePrometheus: viper.GetBool("enable-prometheus"),
		PrometheusAddr:   viper.GetString("prometheus-addr"),
	}
}
