// Package secrets keeps the default shared secret and salt used when a binary
// does not carry its own.
package secrets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"strdecrypt/internal/vault"
)

// Defaults is the persisted form of the store.
type Defaults struct {
	SharedSecret string `json:"shared_secret"`
	Salt         string `json:"salt"`
}

// Store is a mutex-guarded pair of defaults. The zero value is empty and
// ready to use.
type Store struct {
	mu     sync.RWMutex
	secret string
	salt   string
	set    bool
}

func NewStore(secret, salt string) *Store {
	return &Store{secret: secret, salt: salt, set: true}
}

func (s *Store) Get() (secret, salt string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secret, s.salt
}

func (s *Store) Set(secret, salt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret, s.salt, s.set = secret, salt, true
}

// IsSet reports whether Set was ever called, so an explicitly empty pair can
// be told apart from no configuration.
func (s *Store) IsSet() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret, s.salt, s.set = "", "", false
}

// Save seals the current defaults into path.
func (s *Store) Save(path string, passphrase []byte, opts vault.Options) error {
	secret, salt := s.Get()
	body, err := json.Marshal(Defaults{SharedSecret: secret, Salt: salt})
	if err != nil {
		return fmt.Errorf("encoding defaults: %w", err)
	}
	defer vault.Zero(body)

	var buf bytes.Buffer
	if err := vault.Seal(&buf, body, passphrase, opts); err != nil {
		return fmt.Errorf("sealing defaults: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	log.Debugf("Saved defaults to %s", path)
	return nil
}

// Load replaces the store contents with the defaults sealed in path. A missing
// file leaves the store untouched and is not an error.
func (s *Store) Load(path string, passphrase []byte) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debugf("No saved defaults at %s", path)
			return nil
		}
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	body, err := vault.Open(f, passphrase)
	if err != nil {
		return fmt.Errorf("opening defaults %s: %w", path, err)
	}
	defer vault.Zero(body)

	var d Defaults
	if err := json.Unmarshal(body, &d); err != nil {
		return fmt.Errorf("parsing defaults %s: %w", path, err)
	}

	s.Set(d.SharedSecret, d.Salt)
	log.Debugf("Loaded defaults from %s", path)
	return nil
}

// Remove deletes a saved defaults file; a missing file is fine.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}
