package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "profile.toml"))

	p, err := s.Load()
	require.NoError(t, err, "missing file must load as an empty profile")
	assert.Empty(t, p.Name)

	require.NoError(t, s.SetName("  Ada Lovelace  "))
	p, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.Name)

	require.NoError(t, s.Reset())
	p, err = s.Load()
	require.NoError(t, err)
	assert.Empty(t, p.Name)

	require.NoError(t, s.Reset(), "resetting an already-empty store is fine")
}

func TestStore_SetNameIgnoresBlank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	s := NewStore(path)

	require.NoError(t, s.SetName("   "))
	p, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, p.Name, "blank names must not be persisted")
}

func TestStore_CreatesMissingDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "profile.toml")
	s := NewStore(path)

	require.NoError(t, s.SetName("Grace"))
	p, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "Grace", p.Name)
}

func TestHandoff_TakeDrainsOnce(t *testing.T) {
	var h Handoff

	_, _, ok := h.Take()
	assert.False(t, ok, "empty handoff must report nothing to take")

	h.SeedJoin("ABCD23")
	code, role, ok := h.Take()
	require.True(t, ok)
	assert.Equal(t, "ABCD23", code)
	assert.Equal(t, RoleGuest, role)

	_, _, ok = h.Take()
	assert.False(t, ok, "a taken handoff must be drained")
}

func TestHandoff_HostKeyWins(t *testing.T) {
	var h Handoff
	h.SeedJoin("JJJJJJ")
	h.SeedHost("HHHHHH")

	code, role, ok := h.Take()
	require.True(t, ok)
	assert.Equal(t, "HHHHHH", code)
	assert.Equal(t, RoleHost, role)

	_, _, ok = h.Take()
	assert.False(t, ok, "both keys must be cleared together")
}
