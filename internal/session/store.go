package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound reports that no artifact is stored for the account.
	ErrNotFound = errors.New("no saved session found")

	// ErrStoreUnavailable reports that the artifact cannot be read or
	// written.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Store persists one cookie artifact per account identifier. Artifacts
// are opaque blobs addressed by a deterministic name derived from the
// identifier; the session that created or restored an artifact owns it
// exclusively.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory is created
// lazily on first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the artifact location for accountID.
func (s *Store) Path(accountID string) string {
	return filepath.Join(s.dir, sanitize(accountID)+"_cookies.json")
}

// Load reads the artifact for accountID.
func (s *Store) Load(accountID string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(accountID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return data, nil
}

// Save writes the artifact for accountID, overwriting any prior one.
func (s *Store) Save(accountID string, artifact []byte) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.WriteFile(s.Path(accountID), artifact, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Clear removes the stored artifact for accountID. Removing a missing
// artifact is not an error.
func (s *Store) Clear(accountID string) error {
	if err := os.Remove(s.Path(accountID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// sanitize maps an account identifier to a filesystem-safe name.
func sanitize(accountID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, accountID)
}
