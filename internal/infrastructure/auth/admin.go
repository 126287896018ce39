package auth

import (
	"crypto/subtle"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/erp/catalogsync/internal/infrastructure/config"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAdminNotConfigured is returned when no admin account is configured
	ErrAdminNotConfigured = errors.New("admin account is not configured")
)

// dummyHash is compared against when the username does not match so that
// both failure paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("catalogsync"), bcrypt.DefaultCost)
	return hash
})

// AdminAuthenticator checks the operator credentials of the admin API
type AdminAuthenticator struct {
	username string
	hash     []byte
}

// NewAdminAuthenticator creates an authenticator for the configured account
func NewAdminAuthenticator(cfg config.AdminConfig) *AdminAuthenticator {
	return &AdminAuthenticator{username: cfg.Username, hash: []byte(cfg.PasswordHash)}
}

// Authenticate returns nil when username and password match the account
func (a *AdminAuthenticator) Authenticate(username, password string) error {
	if a.username == "" || len(a.hash) == 0 {
		return ErrAdminNotConfigured
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	hash := a.hash
	if !userOK {
		hash = dummyHash()
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !userOK {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword returns the bcrypt hash stored in admin.password_hash
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
