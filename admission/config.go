/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"fmt"
	"strings"
	"time"

	"github.com/acronis/go-crptapi/config"
)

const cfgDefaultKeyPrefix = "admission"

const (
	cfgKeyCapacity  = "capacity"
	cfgKeyWindow    = "window"
	cfgKeyAlgorithm = "algorithm"
)

// Default values.
const (
	DefaultCapacity  = 1
	DefaultWindow    = time.Second
	DefaultAlgorithm = AlgorithmSlidingLog
)

// Algorithm names a limiting algorithm.
type Algorithm string

// Supported algorithms.
const (
	// AlgorithmSlidingLog is the exact Gate: never more than Capacity admissions in any Window.
	AlgorithmSlidingLog Algorithm = "slidingLog"

	// AlgorithmSlidingWindow is an approximate sliding window counter.
	AlgorithmSlidingWindow Algorithm = "slidingWindow"

	// AlgorithmLeakyBucket is GCRA with a burst equal to Capacity.
	AlgorithmLeakyBucket Algorithm = "leakyBucket"
)

var availableAlgorithms = []string{
	string(AlgorithmSlidingLog), string(AlgorithmSlidingWindow), string(AlgorithmLeakyBucket),
}

// Config represents a set of configuration parameters for an admission gate.
type Config struct {
	Capacity  int           `mapstructure:"capacity" yaml:"capacity" json:"capacity"`
	Window    time.Duration `mapstructure:"window" yaml:"window" json:"window"`
	Algorithm Algorithm     `mapstructure:"algorithm" yaml:"algorithm" json:"algorithm"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config with the default "admission" key prefix.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix(cfgDefaultKeyPrefix)
}

// NewConfigWithKeyPrefix creates a new instance of the Config with the given key prefix.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a Config with default values (1 admission per second, sliding log).
func NewDefaultConfig() *Config {
	return &Config{
		Capacity:  DefaultCapacity,
		Window:    DefaultWindow,
		Algorithm: DefaultAlgorithm,
		keyPrefix: cfgDefaultKeyPrefix,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyCapacity, DefaultCapacity)
	dp.SetDefault(cfgKeyWindow, DefaultWindow.String())
	dp.SetDefault(cfgKeyAlgorithm, string(DefaultAlgorithm))
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Capacity, err = dp.GetInt(cfgKeyCapacity); err != nil {
		return err
	}
	if c.Capacity < 1 {
		return dp.WrapKeyErr(cfgKeyCapacity, fmt.Errorf("must be positive, got %d", c.Capacity))
	}

	if c.Window, err = dp.GetDuration(cfgKeyWindow); err != nil {
		return err
	}
	if c.Window <= 0 {
		return dp.WrapKeyErr(cfgKeyWindow, fmt.Errorf("must be positive, got %s", c.Window))
	}

	var algorithm string
	if algorithm, err = dp.GetStringFromSet(cfgKeyAlgorithm, availableAlgorithms, true); err != nil {
		return err
	}
	c.Algorithm = normalizeAlgorithm(algorithm)

	return nil
}

func normalizeAlgorithm(s string) Algorithm {
	for _, a := range availableAlgorithms {
		if strings.EqualFold(a, s) {
			return Algorithm(a)
		}
	}
	return Algorithm(s)
}
