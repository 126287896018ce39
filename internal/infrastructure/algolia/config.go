package algolia

import (
	"errors"
	"net/url"
	"time"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 50
	// Largest batch accepted in one call.
	defaultBatchSize = 1000
)

// Config errors
var (
	ErrConfigMissingApp   = errors.New("algolia: application id is required")
	ErrConfigMissingKey   = errors.New("algolia: api key is required")
	ErrConfigMissingIndex = errors.New("algolia: index name is required")
	ErrConfigInvalidURL   = errors.New("algolia: base url must be an absolute http(s) url")
)

// Config holds the search index settings
type Config struct {
	AppID     string
	APIKey    string
	IndexName string
	// BaseURL defaults to https://{AppID}.algolia.net.
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	BatchSize int
}

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	if c.AppID == "" {
		return ErrConfigMissingApp
	}
	if c.APIKey == "" {
		return ErrConfigMissingKey
	}
	if c.IndexName == "" {
		return ErrConfigMissingIndex
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://" + c.AppID + ".algolia.net"
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrConfigInvalidURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.BatchSize <= 0 || c.BatchSize > defaultBatchSize {
		c.BatchSize = defaultBatchSize
	}
	return nil
}
