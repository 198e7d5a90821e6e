package embedder

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a training configuration is unusable.
var ErrInvalidConfig = errors.New("invalid embedding config")

// Config holds skip-gram training parameters.
type Config struct {
	// Dimension is the length of every vector.
	Dimension int `mapstructure:"dimension" json:"dimension"`
	// Window is the maximum distance between a center and a context symbol.
	Window int `mapstructure:"window" json:"window"`
	// Epochs is the number of passes over the corpus.
	Epochs int `mapstructure:"epochs" json:"epochs"`
	// Negative is the number of negative samples per positive pair.
	Negative int `mapstructure:"negative" json:"negative"`
	// LearningRate is the initial rate; it decays linearly during training.
	LearningRate float64 `mapstructure:"learning_rate" json:"learning_rate"`
	// MinCount drops symbols seen fewer times than this.
	MinCount int `mapstructure:"min_count" json:"min_count"`
	// Seed makes training reproducible.
	Seed uint64 `mapstructure:"seed" json:"seed"`
	// WalksPerNode is the number of random walks started from every node.
	WalksPerNode int `mapstructure:"walks_per_node" json:"walks_per_node"`
	// WalkLength is the number of nodes in each walk.
	WalkLength int `mapstructure:"walk_length" json:"walk_length"`
}

// NewDefaultConfig returns the default training parameters.
func NewDefaultConfig() Config {
	return Config{
		Dimension:    100,
		Window:       5,
		Epochs:       50,
		Negative:     5,
		LearningRate: 0.025,
		MinCount:     1,
		Seed:         42,
		WalksPerNode: 10,
		WalkLength:   8,
	}
}

// Validate checks the parameters.
func (c Config) Validate() error {
	switch {
	case c.Dimension <= 0:
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	case c.Window <= 0:
		return fmt.Errorf("%w: window must be positive", ErrInvalidConfig)
	case c.Epochs <= 0:
		return fmt.Errorf("%w: epochs must be positive", ErrInvalidConfig)
	case c.Negative < 0:
		return fmt.Errorf("%w: negative must not be negative", ErrInvalidConfig)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning rate must be positive", ErrInvalidConfig)
	case c.WalksPerNode < 0 || c.WalkLength < 0:
		return fmt.Errorf("%w: walk settings must not be negative", ErrInvalidConfig)
	}
	return nil
}
