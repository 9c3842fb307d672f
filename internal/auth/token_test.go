package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oulianov/audioghost-ai/internal/failure"
)

func newStore(t *testing.T, env map[string]string) *TokenStore {
	t.Helper()
	s := NewTokenStore(filepath.Join(t.TempDir(), "data"))
	s.getenv = func(k string) string { return env[k] }
	return s
}

func TestTokenFallsBackToEnv(t *testing.T) {
	s := newStore(t, map[string]string{EnvVar: " hf_env \n"})
	assert.Equal(t, "hf_env", s.Token())
	assert.True(t, s.HasToken())

	require.NoError(t, s.Save("hf_file"))
	assert.Equal(t, "hf_file", s.Token(), "saved token wins over env")

	require.NoError(t, s.Clear())
	assert.Equal(t, "hf_env", s.Token())
}

func TestSaveWritesPrivateFile(t *testing.T) {
	s := newStore(t, nil)
	assert.False(t, s.HasToken())

	require.NoError(t, s.Save("  hf_abc  "))
	b, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "hf_abc", string(b))

	fi, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestSaveRejectsEmpty(t *testing.T) {
	s := newStore(t, nil)
	err := s.Save("   ")
	assert.True(t, failure.IsConfiguration(err))
	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestClearMissingIsNoop(t *testing.T) {
	s := newStore(t, nil)
	assert.NoError(t, s.Clear())
	assert.Equal(t, "", s.Token())
}
