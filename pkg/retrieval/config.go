package retrieval

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned when retrieval thresholds or limits are
// unusable.
var ErrInvalidConfig = errors.New("invalid retrieval config")

// Config holds the retrieval thresholds.
type Config struct {
	// LocalThreshold is the minimum cosine similarity for a node hit.
	LocalThreshold float64 `mapstructure:"local_threshold" json:"local_threshold"`
	// GlobalThreshold is the minimum cosine similarity for a cluster hit.
	GlobalThreshold float64 `mapstructure:"global_threshold" json:"global_threshold"`
	// TopK caps the number of returned results.
	TopK int `mapstructure:"top_k" json:"top_k"`
}

// NewDefaultConfig returns the default thresholds.
func NewDefaultConfig() Config {
	return Config{
		LocalThreshold:  0.8,
		GlobalThreshold: 0.7,
		TopK:            10,
	}
}

// Validate checks that both thresholds lie in [-1, 1], that the global
// threshold does not exceed the local one and that TopK is positive.
func (c Config) Validate() error {
	inRange := func(v float64) bool { return !math.IsNaN(v) && v >= -1 && v <= 1 }
	switch {
	case !inRange(c.LocalThreshold):
		return fmt.Errorf("%w: local threshold %v outside [-1, 1]", ErrInvalidConfig, c.LocalThreshold)
	case !inRange(c.GlobalThreshold):
		return fmt.Errorf("%w: global threshold %v outside [-1, 1]", ErrInvalidConfig, c.GlobalThreshold)
	case c.GlobalThreshold > c.LocalThreshold:
		return fmt.Errorf("%w: global threshold %v exceeds local threshold %v", ErrInvalidConfig, c.GlobalThreshold, c.LocalThreshold)
	case c.TopK <= 0:
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidConfig)
	}
	return nil
}
