package contentful

import (
	"errors"
	"net/url"
	"time"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultEnvironment   = "master"
	defaultLocale        = "en-US"
	defaultManagementURL = "https://api.contentful.com"
	defaultDeliveryURL   = "https://cdn.contentful.com"
	// Management API limit of a default space.
	defaultRateLimit = 7
)

// Config errors
var (
	ErrConfigMissingSpace = errors.New("contentful: space id is required")
	ErrConfigMissingToken = errors.New("contentful: management access token is required")
	ErrConfigInvalidURL   = errors.New("contentful: api urls must be absolute http(s) urls")
)

// Config holds the management and delivery API settings
type Config struct {
	SpaceID         string
	Environment     string
	ManagementToken string
	// DeliveryToken is optional; without it localized content reads are disabled.
	DeliveryToken string
	DefaultLocale string
	ManagementURL string
	DeliveryURL   string
	Timeout       time.Duration
	// RateLimit is the management API requests per second; 0 uses the default.
	RateLimit float64
}

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	if c.SpaceID == "" {
		return ErrConfigMissingSpace
	}
	if c.ManagementToken == "" {
		return ErrConfigMissingToken
	}
	if c.Environment == "" {
		c.Environment = defaultEnvironment
	}
	if c.DefaultLocale == "" {
		c.DefaultLocale = defaultLocale
	}
	if c.ManagementURL == "" {
		c.ManagementURL = defaultManagementURL
	}
	if c.DeliveryURL == "" {
		c.DeliveryURL = defaultDeliveryURL
	}
	for _, raw := range []string{c.ManagementURL, c.DeliveryURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrConfigInvalidURL
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = defaultRateLimit
	}
	return nil
}
