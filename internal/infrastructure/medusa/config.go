package medusa

import (
	"errors"
	"net/url"
	"time"
)

const defaultTimeout = 30 * time.Second

// Config errors
var (
	ErrConfigInvalidURL = errors.New("medusa: base url must be an absolute http(s) url")
	ErrConfigMissingKey = errors.New("medusa: secret api key is required")
)

// Config holds the Admin API settings
type Config struct {
	BaseURL string
	// APIKey is a secret API key, sent as the basic auth username
	APIKey  string
	Timeout time.Duration
}

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrConfigInvalidURL
	}
	if c.APIKey == "" {
		return ErrConfigMissingKey
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}
