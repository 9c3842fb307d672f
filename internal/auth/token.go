// Package auth stores the HuggingFace access token the runtime needs to
// download gated checkpoints.
package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oulianov/audioghost-ai/internal/common/fsutil"
	"github.com/oulianov/audioghost-ai/internal/failure"
)

// TokenFileName is the file under the data dir that holds the token.
const TokenFileName = ".hf_token"

// EnvVar is consulted when no token file exists.
const EnvVar = "HF_TOKEN"

// TokenStore reads and writes the token file. The environment is only a
// fallback; a saved token always wins.
type TokenStore struct {
	mu     sync.Mutex
	path   string
	getenv func(string) string
}

// NewTokenStore keeps the token at <dataDir>/.hf_token.
func NewTokenStore(dataDir string) *TokenStore {
	return &TokenStore{path: filepath.Join(dataDir, TokenFileName), getenv: os.Getenv}
}

// Path returns the token file location.
func (s *TokenStore) Path() string { return s.path }

// Token returns the saved token, then $HF_TOKEN, then "".
func (s *TokenStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, err := os.ReadFile(s.path); err == nil {
		if t := strings.TrimSpace(string(b)); t != "" {
			return t
		}
	}
	return strings.TrimSpace(s.getenv(EnvVar))
}

// HasToken reports whether any token is available.
func (s *TokenStore) HasToken() bool { return s.Token() != "" }

// Save writes the token atomically with mode 0600.
func (s *TokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return failure.Configuration("token is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fsutil.EnsureDir(filepath.Dir(s.path)); err != nil {
		return err
	}
	return fsutil.AtomicWriteFile(s.path, []byte(token), 0o600)
}

// Clear removes the saved token. The environment fallback is unaffected.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
