package odoo

import (
	"errors"
	"net/url"
	"time"
)

// Read methods supported for template and variant records.
const (
	ReadMethodWebRead = "web_read"
	ReadMethodRead    = "read"
)

const (
	defaultTimeout = 30 * time.Second
	defaultBurst   = 5
)

// Config errors
var (
	ErrConfigMissingURL      = errors.New("odoo: url is required")
	ErrConfigInvalidURL      = errors.New("odoo: url must be an absolute http(s) url")
	ErrConfigMissingDB       = errors.New("odoo: database name is required")
	ErrConfigMissingUsername = errors.New("odoo: username is required")
	ErrConfigMissingAPIKey   = errors.New("odoo: api key is required")
	ErrConfigReadMethod      = errors.New("odoo: read method must be web_read or read")
)

// Config holds the ERP JSON-RPC connection settings
type Config struct {
	// URL is the ERP base URL; requests go to URL + "/jsonrpc"
	URL      string
	DBName   string
	Username string
	APIKey   string
	Timeout  time.Duration
	// RateLimit caps outbound calls per second; zero disables limiting
	RateLimit float64
	RateBurst int
	// ReadMethod selects web_read (nested specification) or plain read
	ReadMethod string
	// ActiveOnly adds active = true to the default search domain
	ActiveOnly bool
}

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrConfigMissingURL
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrConfigInvalidURL
	}
	if c.DBName == "" {
		return ErrConfigMissingDB
	}
	if c.Username == "" {
		return ErrConfigMissingUsername
	}
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	switch c.ReadMethod {
	case "":
		c.ReadMethod = ReadMethodWebRead
	case ReadMethodWebRead, ReadMethodRead:
	default:
		return ErrConfigReadMethod
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RateBurst <= 0 {
		c.RateBurst = defaultBurst
	}
	return nil
}
