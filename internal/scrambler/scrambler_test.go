package scrambler

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/config"
)

func newTestScrambler(t *testing.T, seed int64) *Scrambler {
	t.Helper()
	cfg := config.DefaultConfig()
	s, err := NewScrambler(cfg, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return s
}

func TestScrambleBasic(t *testing.T) {
	s := newTestScrambler(t, 1)

	first, err := s.Scramble("myVariable")
	require.NoError(t, err)
	second, err := s.Scramble("myVariable")
	require.NoError(t, err)

	assert.NotEqual(t, "myVariable", first)
	assert.Equal(t, first, second, "same original must map to the same name")
	assert.GreaterOrEqual(t, len(first), minScrambleLen)
}

func TestScrambleUniqueness(t *testing.T) {
	s := newTestScrambler(t, 2)
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		name, err := s.Scramble(fmt.Sprintf("sym%d", i))
		require.NoError(t, err)
		assert.False(t, seen[name], "duplicate scrambled name %q", name)
		assert.False(t, isReserved(name), "generated a reserved word %q", name)
		seen[name] = true
	}
}

func TestScrambleDeterministic(t *testing.T) {
	a := newTestScrambler(t, 42)
	b := newTestScrambler(t, 42)
	for _, name := range []string{"alpha", "beta", "gamma"} {
		na, err := a.Scramble(name)
		require.NoError(t, err)
		nb, err := b.Scramble(name)
		require.NoError(t, err)
		assert.Equal(t, na, nb, "same seed must give same mapping for %q", name)
	}
}

func TestReserveBlocksName(t *testing.T) {
	s := newTestScrambler(t, 3)
	// Reserve a large swath of short names, then confirm none are produced.
	reserved := make(map[string]bool)
	for _, c1 := range "abcdefghijklmnopqrstuvwxyz" {
		for _, c2 := range "abcdefghijklmnopqrstuvwxyz" {
			name := string(c1) + string(c2)
			s.Reserve(name)
			reserved[name] = true
		}
	}
	for i := 0; i < 100; i++ {
		name, err := s.Scramble(fmt.Sprintf("orig%d", i))
		require.NoError(t, err)
		assert.False(t, reserved[name], "produced reserved source name %q", name)
	}
}

func TestUnscrambleAndLookup(t *testing.T) {
	s := newTestScrambler(t, 4)
	scrambled, err := s.Scramble("original")
	require.NoError(t, err)

	back, ok := s.Unscramble(scrambled)
	require.True(t, ok)
	assert.Equal(t, "original", back)

	fwd, ok := s.LookupObfuscated("original")
	require.True(t, ok)
	assert.Equal(t, scrambled, fwd)

	_, ok = s.Unscramble("nonexistent")
	assert.False(t, ok)
}

func TestInvalidMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Obfuscation.Scrambling.Mode = "bogus"
	_, err := NewScrambler(cfg, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestHexaMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Obfuscation.Scrambling.Mode = "hexa"
	s, err := NewScrambler(cfg, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	name, err := s.Scramble("thing")
	require.NoError(t, err)
	for _, r := range name {
		assert.Contains(t, allCharsHex, string(r), "hexa mode produced %q", name)
	}
}

func TestAbsorb(t *testing.T) {
	perFile := newTestScrambler(t, 6)
	registry := newTestScrambler(t, 7)

	scrambled, err := perFile.Scramble("worker")
	require.NoError(t, err)

	registry.Absorb(perFile.Mappings())

	back, ok := registry.Unscramble(scrambled)
	require.True(t, ok)
	assert.Equal(t, "worker", back)
}

func TestSaveLoadState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.bin")

	s := newTestScrambler(t, 8)
	scrambled, err := s.Scramble("persisted")
	require.NoError(t, err)
	require.NoError(t, s.SaveState(path))

	restored := newTestScrambler(t, 9)
	require.NoError(t, restored.LoadState(path))

	back, ok := restored.Unscramble(scrambled)
	require.True(t, ok)
	assert.Equal(t, "persisted", back)

	// Restored state keeps producing the same mapping for known names.
	again, err := restored.Scramble("persisted")
	require.NoError(t, err)
	assert.Equal(t, scrambled, again)
}

func TestLoadStateMissingFile(t *testing.T) {
	s := newTestScrambler(t, 10)
	assert.NoError(t, s.LoadState(filepath.Join(t.TempDir(), "does-not-exist.bin")))
}
