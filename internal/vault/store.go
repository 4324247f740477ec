package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/termgate/termgate/internal/errdefs"
)

// Store persists per-profile secrets in a single file. The serialized record
// map is sealed as one fernet token, so the file on disk is an opaque blob:
// neither profile IDs nor secrets are readable without the master key.
// Plaintext secrets exist only inside this package and in the return value
// of Get.
type Store struct {
	mu      sync.Mutex
	path    string
	vault   *Vault
	secrets map[string]string
}

// OpenStore loads the credential store at path, creating an empty store when
// the file does not exist yet. A store written under a different master key,
// or modified on disk, fails to open rather than silently appearing empty.
func OpenStore(path string, v *Vault) (*Store, error) {
	s := &Store{path: path, vault: v, secrets: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, errdefs.Vault("read credential store", err)
	}

	plain, err := v.Decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	if err := json.Unmarshal(plain, &s.secrets); err != nil {
		return nil, errdefs.Vault("parse credential store", err)
	}
	return s, nil
}

// Put stores the secret for a profile and persists the store.
func (s *Store) Put(profileID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[profileID] = secret
	return s.save()
}

// ErrNoCredential marks a lookup for a profile that has no stored secret,
// as opposed to a store that failed to decrypt.
var ErrNoCredential = errors.New("no credential stored")

// Get returns the secret stored for a profile.
func (s *Store) Get(profileID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.secrets[profileID]
	if !ok {
		return "", errdefs.Vault("retrieve credential", fmt.Errorf("%w for profile %s", ErrNoCredential, profileID))
	}
	return secret, nil
}

// Delete removes the secret for a profile. Deleting an absent profile is
// not an error.
func (s *Store) Delete(profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.secrets[profileID]; !ok {
		return nil
	}
	delete(s.secrets, profileID)
	return s.save()
}

// save writes the encrypted store file. Caller must hold s.mu.
func (s *Store) save() error {
	plain, err := json.Marshal(s.secrets)
	if err != nil {
		return errdefs.Vault("serialize credential store", err)
	}
	blob, err := s.vault.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("save credential store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errdefs.Vault("create store directory", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0600); err != nil {
		return errdefs.Vault("write credential store", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errdefs.Vault("replace credential store", err)
	}
	return nil
}
