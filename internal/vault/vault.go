// Package vault protects device credentials at rest. A Vault seals and opens
// byte blobs with fernet authenticated encryption under a single master key;
// a Store persists per-profile secrets as one opaque encrypted file. The
// master key is loaded (or generated) exactly once and is read-only
// afterwards, so both types are safe for concurrent use.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/termgate/termgate/internal/errdefs"
)

// Vault encrypts and decrypts credential blobs with the master key.
type Vault struct {
	key *fernet.Key
}

// Open loads the master key from keyPath. When no key exists yet, a new one
// is generated and persisted with owner-only permissions. The key file is
// never logged.
func Open(keyPath string) (*Vault, error) {
	raw, err := os.ReadFile(keyPath)
	if errors.Is(err, os.ErrNotExist) {
		var k fernet.Key
		if err := k.Generate(); err != nil {
			return nil, errdefs.Vault("generate master key", err)
		}
		if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
			return nil, errdefs.Vault("create key directory", err)
		}
		if err := os.WriteFile(keyPath, []byte(k.Encode()), 0600); err != nil {
			return nil, errdefs.Vault("save master key", err)
		}
		return &Vault{key: &k}, nil
	}
	if err != nil {
		return nil, errdefs.Vault("read master key", err)
	}

	key, err := fernet.DecodeKey(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, errdefs.Vault("decode master key", err)
	}
	return &Vault{key: key}, nil
}

// Encrypt seals plaintext into an opaque token.
func (v *Vault) Encrypt(plaintext []byte) ([]byte, error) {
	tok, err := fernet.EncryptAndSign(plaintext, v.key)
	if err != nil {
		return nil, errdefs.Vault("encrypt", err)
	}
	return tok, nil
}

// Decrypt opens a token produced by Encrypt. It fails when the token is
// malformed, was produced under a different key, or has been tampered with.
// It never returns partial or corrupted plaintext.
func (v *Vault) Decrypt(blob []byte) ([]byte, error) {
	msg := fernet.VerifyAndDecrypt(blob, 0*time.Second, []*fernet.Key{v.key})
	if msg == nil {
		return nil, errdefs.Vault("decrypt", fmt.Errorf("invalid token"))
	}
	return msg, nil
}
