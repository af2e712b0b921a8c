package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier checks username/password pairs against bcrypt hashes.
type CredentialVerifier struct {
	hashes map[string][]byte
	dummy  []byte
}

// NewCredentialVerifier takes a map of username to bcrypt hash.
func NewCredentialVerifier(hashes map[string]string) (*CredentialVerifier, error) {
	v := &CredentialVerifier{hashes: make(map[string][]byte, len(hashes))}
	for user, hash := range hashes {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid bcrypt hash for user %q: %w", user, err)
		}
		v.hashes[user] = []byte(hash)
	}

	// Compared against when the user is unknown so both paths cost the same.
	dummy, err := bcrypt.GenerateFromPassword([]byte("unknown-user"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash placeholder password: %w", err)
	}
	v.dummy = dummy
	return v, nil
}

// LoadUsersFile reads a JSON object of {"username": "bcrypt hash"}.
func LoadUsersFile(path string) (*CredentialVerifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var hashes map[string]string
	if err := json.Unmarshal(data, &hashes); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}
	if len(hashes) == 0 {
		return nil, fmt.Errorf("users file %s defines no users", path)
	}
	return NewCredentialVerifier(hashes)
}

// DevelopmentVerifier hashes plaintext passwords at startup. Only for local use.
func DevelopmentVerifier(plain map[string]string) (*CredentialVerifier, error) {
	hashes := make(map[string]string, len(plain))
	for user, password := range plain {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for %q: %w", user, err)
		}
		hashes[user] = string(hash)
	}
	return NewCredentialVerifier(hashes)
}

// Verify returns the identity for a correct username/password pair and
// domain.ErrInvalidCredentials otherwise.
func (v *CredentialVerifier) Verify(username, password string) (domain.Identity, error) {
	username = strings.TrimSpace(username)
	hash, ok := v.hashes[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(v.dummy, []byte(password))
		return "", domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return "", domain.ErrInvalidCredentials
	}
	return domain.Identity(username), nil
}
