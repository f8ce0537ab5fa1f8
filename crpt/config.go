/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package crpt

import (
	"fmt"
	"net/url"

	"github.com/acronis/go-crptapi/config"
	"github.com/acronis/go-crptapi/httpclient"
)

// DefaultEndpoint is the URL of the "create document" method.
const DefaultEndpoint = "https://ismp.crpt.ru/api/v3/lk/documents/create"

// DefaultSignatureHeader is the header that carries the detached document signature.
const DefaultSignatureHeader = "Signature"

const cfgDefaultKeyPrefix = "crpt"

const (
	cfgKeyEndpoint        = "endpoint"
	cfgKeyToken           = "token"
	cfgKeySignatureHeader = "signatureHeader"
	cfgKeyUserAgent       = "userAgent"

	httpKeyPrefix = "http"
)

// Config represents a set of configuration parameters for the CRPT client.
type Config struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	Token           string `mapstructure:"token" yaml:"token" json:"token"`
	SignatureHeader string `mapstructure:"signatureHeader" yaml:"signatureHeader" json:"signatureHeader"`
	UserAgent       string `mapstructure:"userAgent" yaml:"userAgent" json:"userAgent"`

	HTTP *httpclient.Config `mapstructure:"http" yaml:"http" json:"http"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config with the default "crpt" key prefix.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix(cfgDefaultKeyPrefix)
}

// NewConfigWithKeyPrefix creates a new instance of the Config with the given key prefix.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{HTTP: httpclient.NewConfigWithKeyPrefix(httpKeyPrefix), keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:        DefaultEndpoint,
		SignatureHeader: DefaultSignatureHeader,
		HTTP:            httpclient.NewDefaultConfig(httpclient.WithKeyPrefix(httpKeyPrefix)),
		keyPrefix:       cfgDefaultKeyPrefix,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyEndpoint, DefaultEndpoint)
	dp.SetDefault(cfgKeyToken, "")
	dp.SetDefault(cfgKeySignatureHeader, DefaultSignatureHeader)
	dp.SetDefault(cfgKeyUserAgent, "")
	c.ensureHTTP()
	config.CallSetProviderDefaultsForFields(c, dp)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Endpoint, err = dp.GetString(cfgKeyEndpoint); err != nil {
		return err
	}
	endpoint, err := url.Parse(c.Endpoint)
	if err != nil {
		return dp.WrapKeyErr(cfgKeyEndpoint, err)
	}
	if (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
		return dp.WrapKeyErr(cfgKeyEndpoint, fmt.Errorf("absolute http(s) URL is expected, got %q", c.Endpoint))
	}

	if c.Token, err = dp.GetString(cfgKeyToken); err != nil {
		return err
	}
	if c.SignatureHeader, err = dp.GetString(cfgKeySignatureHeader); err != nil {
		return err
	}
	if c.SignatureHeader == "" {
		return dp.WrapKeyErr(cfgKeySignatureHeader, fmt.Errorf("cannot be empty"))
	}
	if c.UserAgent, err = dp.GetString(cfgKeyUserAgent); err != nil {
		return err
	}

	c.ensureHTTP()
	return config.CallSetForFields(c, dp)
}

func (c *Config) ensureHTTP() {
	if c.HTTP == nil {
		c.HTTP = httpclient.NewConfigWithKeyPrefix(httpKeyPrefix)
	}
}
