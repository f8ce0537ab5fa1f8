/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/acronis/go-crptapi/config"
	"github.com/acronis/go-crptapi/retry"
)

// Retry policy strategies.
const (
	RetryPolicyExponential = "exponential"
	RetryPolicyConstant    = "constant"
)

// Default values.
const (
	DefaultTimeout                           = 30 * time.Second
	DefaultRetriesMaxAttempts                = 3
	DefaultExponentialBackoffInitialInterval = time.Second
	DefaultExponentialBackoffMultiplier      = 2.0
	DefaultConstantBackoffInterval           = 2 * time.Second
	DefaultLoggerMode                        = LoggingModeAll
	DefaultLoggerSlowRequestThreshold        = time.Duration(0)
	DefaultAdmissionWaitTimeout              = time.Duration(0)
)

const minExponentialBackoffMultiplier = 1.0

const (
	cfgKeyTimeout                                 = "timeout"
	cfgKeyRetriesEnabled                          = "retries.enabled"
	cfgKeyRetriesMaxAttempts                      = "retries.maxAttempts"
	cfgKeyRetriesPolicyStrategy                   = "retries.policy.strategy"
	cfgKeyRetriesPolicyExponentialInitialInterval = "retries.policy.exponentialBackoffInitialInterval"
	cfgKeyRetriesPolicyExponentialMultiplier      = "retries.policy.exponentialBackoffMultiplier"
	cfgKeyRetriesPolicyConstantInterval           = "retries.policy.constantBackoffInterval"
	cfgKeyLoggerEnabled                           = "logger.enabled"
	cfgKeyLoggerMode                              = "logger.mode"
	cfgKeyLoggerSlowRequestThreshold              = "logger.slowRequestThreshold"
	cfgKeyMetricsEnabled                          = "metrics.enabled"
	cfgKeyAdmissionWaitTimeout                    = "admission.waitTimeout"
)

var (
	availableRetryStrategies = []string{RetryPolicyExponential, RetryPolicyConstant}
	availableLoggingModes    = []string{string(LoggingModeNone), string(LoggingModeAll), string(LoggingModeFailed)}
)

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// Config represents options for HTTP client configuration.
type Config struct {
	// Timeout limits the whole client call including retries and admission waits. Zero means no limit.
	// A saturated admission gate may use up all of it before the request is sent;
	// set Admission.WaitTimeout to bound the wait for admission separately.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`

	Retries   RetriesConfig   `mapstructure:"retries" yaml:"retries" json:"retries"`
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger" json:"logger"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Admission AdmissionConfig `mapstructure:"admission" yaml:"admission" json:"admission"`

	keyPrefix string
}

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix("")
}

// NewConfigWithKeyPrefix creates a new instance of the Config.
// Allows specifying key prefix which will be used for parsing configuration parameters.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewDefaultConfig creates a new instance of the Config filled with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	var opts configOptions
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{
		keyPrefix: opts.keyPrefix,
		Timeout: DefaultTimeout,
		Retries: RetriesConfig{
			Enabled:     true,
			MaxAttempts: DefaultRetriesMaxAttempts,
			Policy: PolicyConfig{
				Strategy:                          RetryPolicyExponential,
				ExponentialBackoffInitialInterval: DefaultExponentialBackoffInitialInterval,
				ExponentialBackoffMultiplier:      DefaultExponentialBackoffMultiplier,
				ConstantBackoffInterval:           DefaultConstantBackoffInterval,
			},
		},
		Logger: LoggerConfig{
			Enabled:              true,
			Mode:                 DefaultLoggerMode,
			SlowRequestThreshold: DefaultLoggerSlowRequestThreshold,
		},
		Admission: AdmissionConfig{WaitTimeout: DefaultAdmissionWaitTimeout},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyTimeout, DefaultTimeout.String())
	c.Retries.SetProviderDefaults(dp)
	c.Logger.SetProviderDefaults(dp)
	c.Metrics.SetProviderDefaults(dp)
	c.Admission.SetProviderDefaults(dp)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Timeout, err = dp.GetDuration(cfgKeyTimeout); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return dp.WrapKeyErr(cfgKeyTimeout, fmt.Errorf("cannot be negative"))
	}
	if err = c.Retries.Set(dp); err != nil {
		return err
	}
	if err = c.Logger.Set(dp); err != nil {
		return err
	}
	if err = c.Metrics.Set(dp); err != nil {
		return err
	}
	return c.Admission.Set(dp)
}

// PolicyConfig represents configuration options for the retry backoff policy.
type PolicyConfig struct {
	// Strategy is one of: exponential, constant.
	Strategy                          string        `mapstructure:"strategy" yaml:"strategy" json:"strategy"`
	ExponentialBackoffInitialInterval time.Duration `mapstructure:"exponentialBackoffInitialInterval" yaml:"exponentialBackoffInitialInterval" json:"exponentialBackoffInitialInterval"` // nolint: lll
	ExponentialBackoffMultiplier      float64       `mapstructure:"exponentialBackoffMultiplier" yaml:"exponentialBackoffMultiplier" json:"exponentialBackoffMultiplier"`                // nolint: lll
	ConstantBackoffInterval           time.Duration `mapstructure:"constantBackoffInterval" yaml:"constantBackoffInterval" json:"constantBackoffInterval"`                               // nolint: lll
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *PolicyConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyRetriesPolicyStrategy, RetryPolicyExponential)
	dp.SetDefault(cfgKeyRetriesPolicyExponentialInitialInterval, DefaultExponentialBackoffInitialInterval.String())
	dp.SetDefault(cfgKeyRetriesPolicyExponentialMultiplier, DefaultExponentialBackoffMultiplier)
	dp.SetDefault(cfgKeyRetriesPolicyConstantInterval, DefaultConstantBackoffInterval.String())
}

// Set sets configuration values from config.DataProvider.
// All intervals are read, but only the ones of the selected strategy are validated.
func (c *PolicyConfig) Set(dp config.DataProvider) error {
	var err error
	if c.Strategy, err = dp.GetStringFromSet(cfgKeyRetriesPolicyStrategy, availableRetryStrategies, true); err != nil {
		return err
	}
	c.Strategy = strings.ToLower(c.Strategy)

	if c.ExponentialBackoffInitialInterval, err = dp.GetDuration(cfgKeyRetriesPolicyExponentialInitialInterval); err != nil {
		return err
	}
	if c.ExponentialBackoffMultiplier, err = dp.GetFloat64(cfgKeyRetriesPolicyExponentialMultiplier); err != nil {
		return err
	}
	if c.ConstantBackoffInterval, err = dp.GetDuration(cfgKeyRetriesPolicyConstantInterval); err != nil {
		return err
	}

	switch c.Strategy {
	case RetryPolicyExponential:
		if c.ExponentialBackoffInitialInterval < 0 {
			return dp.WrapKeyErr(cfgKeyRetriesPolicyExponentialInitialInterval, fmt.Errorf("cannot be negative"))
		}
		if c.ExponentialBackoffMultiplier <= minExponentialBackoffMultiplier {
			return dp.WrapKeyErr(cfgKeyRetriesPolicyExponentialMultiplier,
				fmt.Errorf("should be greater than %v", minExponentialBackoffMultiplier))
		}
	case RetryPolicyConstant:
		if c.ConstantBackoffInterval < 0 {
			return dp.WrapKeyErr(cfgKeyRetriesPolicyConstantInterval, fmt.Errorf("cannot be negative"))
		}
	}
	return nil
}

// RetriesConfig represents configuration options for HTTP client retries.
type RetriesConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// MaxAttempts is the maximum number of retry attempts after the first one.
	MaxAttempts int `mapstructure:"maxAttempts" yaml:"maxAttempts" json:"maxAttempts"`

	Policy PolicyConfig `mapstructure:"policy" yaml:"policy" json:"policy"`
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *RetriesConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyRetriesEnabled, true)
	dp.SetDefault(cfgKeyRetriesMaxAttempts, DefaultRetriesMaxAttempts)
	c.Policy.SetProviderDefaults(dp)
}

// Set sets configuration values from config.DataProvider.
func (c *RetriesConfig) Set(dp config.DataProvider) error {
	var err error
	if c.Enabled, err = dp.GetBool(cfgKeyRetriesEnabled); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}
	if c.MaxAttempts, err = dp.GetInt(cfgKeyRetriesMaxAttempts); err != nil {
		return err
	}
	if c.MaxAttempts < 0 {
		return dp.WrapKeyErr(cfgKeyRetriesMaxAttempts, fmt.Errorf("cannot be negative"))
	}
	return c.Policy.Set(dp)
}

// GetPolicy returns a retry policy based on the configured strategy.
// The number of attempts is limited by RetryableRoundTripper, not by the policy.
func (c *RetriesConfig) GetPolicy() retry.Policy {
	if c.Policy.Strategy == RetryPolicyConstant {
		interval := c.Policy.ConstantBackoffInterval
		return retry.PolicyFunc(func() backoff.BackOff {
			return backoff.NewConstantBackOff(interval)
		})
	}
	initialInterval := c.Policy.ExponentialBackoffInitialInterval
	multiplier := c.Policy.ExponentialBackoffMultiplier
	return retry.PolicyFunc(func() backoff.BackOff {
		bf := backoff.NewExponentialBackOff()
		bf.InitialInterval = initialInterval
		if multiplier > minExponentialBackoffMultiplier {
			bf.Multiplier = multiplier
		}
		bf.MaxElapsedTime = 0
		bf.Reset()
		return bf
	})
}

// TransportOpts returns options for RetryableRoundTripper.
func (c *RetriesConfig) TransportOpts() RetryableRoundTripperOpts {
	return RetryableRoundTripperOpts{
		MaxRetryAttempts: c.MaxAttempts,
		BackoffPolicy:    c.GetPolicy(),
	}
}

// LoggerConfig represents configuration options for HTTP client logs.
type LoggerConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Mode is one of: none, all, failed.
	Mode LoggingMode `mapstructure:"mode" yaml:"mode" json:"mode"`

	// SlowRequestThreshold makes only requests lasting at least this long get logged.
	SlowRequestThreshold time.Duration `mapstructure:"slowRequestThreshold" yaml:"slowRequestThreshold" json:"slowRequestThreshold"` // nolint: lll
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *LoggerConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyLoggerEnabled, true)
	dp.SetDefault(cfgKeyLoggerMode, string(DefaultLoggerMode))
	dp.SetDefault(cfgKeyLoggerSlowRequestThreshold, DefaultLoggerSlowRequestThreshold.String())
}

// Set sets configuration values from config.DataProvider.
func (c *LoggerConfig) Set(dp config.DataProvider) error {
	var err error
	if c.Enabled, err = dp.GetBool(cfgKeyLoggerEnabled); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}

	var mode string
	if mode, err = dp.GetStringFromSet(cfgKeyLoggerMode, availableLoggingModes, true); err != nil {
		return err
	}
	c.Mode = LoggingMode(strings.ToLower(mode))

	if c.SlowRequestThreshold, err = dp.GetDuration(cfgKeyLoggerSlowRequestThreshold); err != nil {
		return err
	}
	if c.SlowRequestThreshold < 0 {
		return dp.WrapKeyErr(cfgKeyLoggerSlowRequestThreshold, fmt.Errorf("cannot be negative"))
	}
	return nil
}

// TransportOpts returns options for LoggingRoundTripper.
func (c *LoggerConfig) TransportOpts() LoggingRoundTripperOpts {
	return LoggingRoundTripperOpts{
		Mode:                 c.Mode,
		SlowRequestThreshold: c.SlowRequestThreshold,
	}
}

// MetricsConfig represents configuration options for HTTP client metrics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *MetricsConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMetricsEnabled, false)
}

// Set sets configuration values from config.DataProvider.
func (c *MetricsConfig) Set(dp config.DataProvider) (err error) {
	c.Enabled, err = dp.GetBool(cfgKeyMetricsEnabled)
	return err
}

// AdmissionConfig represents configuration options for waiting on the admission gate.
type AdmissionConfig struct {
	// WaitTimeout bounds a single wait for admission. Zero means the request context alone bounds it.
	WaitTimeout time.Duration `mapstructure:"waitTimeout" yaml:"waitTimeout" json:"waitTimeout"`
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *AdmissionConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyAdmissionWaitTimeout, DefaultAdmissionWaitTimeout.String())
}

// Set sets configuration values from config.DataProvider.
func (c *AdmissionConfig) Set(dp config.DataProvider) error {
	var err error
	if c.WaitTimeout, err = dp.GetDuration(cfgKeyAdmissionWaitTimeout); err != nil {
		return err
	}
	if c.WaitTimeout < 0 {
		return dp.WrapKeyErr(cfgKeyAdmissionWaitTimeout, fmt.Errorf("cannot be negative"))
	}
	return nil
}
