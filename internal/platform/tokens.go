package platform

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// refreshWindow is how far ahead of expiry a token is considered due for
// refresh.
const refreshWindow = 5 * time.Minute

// StoredToken is the on-disk token format: the access/refresh token pair,
// expiry, and granted scopes.
type StoredToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// NeedsRefresh reports whether the token is within refreshWindow of
// expiring, or already expired. A token with no recorded expiry (the zero
// value) is always due for refresh.
func (t StoredToken) NeedsRefresh(now time.Time) bool {
	return t.ExpiresAt.IsZero() || now.Add(refreshWindow).After(t.ExpiresAt)
}

// TokenManager guards the current access token behind a sync.RWMutex:
// Current and NeedsRefresh take a read lock to snapshot the token, while
// Replace swaps in a new one under a write lock and persists it to disk
// atomically with owner-only permissions. Client does not read from a
// TokenManager; it signs requests with the credentials in its Config.
type TokenManager struct {
	mu     sync.RWMutex
	logger *logrus.Logger
	path   string
	token  StoredToken
}

// LoadTokenManager reads the token file at path, if present, into a new
// TokenManager. A missing file yields a zero-value token, which
// NeedsRefresh always reports as due for refresh.
func LoadTokenManager(logger *logrus.Logger, path string) (*TokenManager, error) {
	tm := &TokenManager{logger: logger, path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tm, nil
		}
		return nil, fmt.Errorf("failed to read token file %s: %w", path, err)
	}

	var token StoredToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	tm.token = token
	return tm, nil
}

// Current returns a snapshot of the currently stored token.
func (tm *TokenManager) Current() StoredToken {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.token
}

// NeedsRefresh reports whether the current token is due for refresh.
func (tm *TokenManager) NeedsRefresh(now time.Time) bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.token.NeedsRefresh(now)
}

// Replace swaps in a freshly refreshed token and persists it to disk. The
// write to disk happens via a temp file plus rename so a crash mid-write
// never leaves a half-written token file; the temp file is created with
// owner-only permissions from the start rather than chmod'd afterward.
func (tm *TokenManager) Replace(token StoredToken) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if err := writeTokenFile(tm.path, token); err != nil {
		return err
	}

	tm.token = token
	tm.logger.WithField("expires_at", token.ExpiresAt.Format(time.RFC3339)).Info("platform token refreshed")
	return nil
}

func writeTokenFile(path string, token StoredToken) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write token file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp token file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to install refreshed token file: %w", err)
	}

	return nil
}
