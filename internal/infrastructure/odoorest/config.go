package odoorest

import (
	"errors"
	"net/url"
	"time"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultMaxAuthRetries = 2
)

// Config errors
var (
	ErrConfigInvalidURL      = errors.New("odoorest: base url must be an absolute http(s) url")
	ErrConfigMissingUsername = errors.New("odoorest: username is required")
	ErrConfigMissingPassword = errors.New("odoorest: password is required")
	ErrConfigMissingDB       = errors.New("odoorest: database name is required")
)

// Config holds the settings of the ERP REST integration module
type Config struct {
	BaseURL  string
	Username string
	Password string
	DBName   string
	Timeout  time.Duration
	// MaxAuthRetries bounds re-authentications after 401 responses for one request
	MaxAuthRetries int
}

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrConfigInvalidURL
	}
	if c.Username == "" {
		return ErrConfigMissingUsername
	}
	if c.Password == "" {
		return ErrConfigMissingPassword
	}
	if c.DBName == "" {
		return ErrConfigMissingDB
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxAuthRetries <= 0 {
		c.MaxAuthRetries = defaultMaxAuthRetries
	}
	return nil
}
