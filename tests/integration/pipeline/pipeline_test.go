package integration_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/config"
	internal "github.com/whit3rabbit/pymixer/tests/internal"
)

// TestPipelineLevels obfuscates the same program at every level and checks
// that the observable behavior never changes.
func TestPipelineLevels(t *testing.T) {
	runner := internal.NewPyRunner(t)
	runner.SkipIfPythonNotAvailable()

	inputFile := filepath.Join("..", "..", "testdata", "integration", "pipeline", "input.py")

	for _, level := range []string{config.LevelBasic, config.LevelIntermediate, config.LevelAdvanced} {
		level := level
		t.Run(level, func(t *testing.T) {
			runner := internal.NewPyRunner(t)
			cfg := config.DefaultConfig()
			cfg.Seed = 1234
			cfg.Silent = true
			require.NoError(t, cfg.ApplyLevel(level))

			originalOutput, obfuscatedOutput, obfuscatedCode, err := runner.IntegrationTest(inputFile, cfg)
			require.NoError(t, err, "Error running integration test")

			assert.Equal(t,
				strings.TrimSpace(originalOutput),
				strings.TrimSpace(obfuscatedOutput),
				"Original and obfuscated outputs should match")

			// Renaming happens at every level.
			assert.NotContains(t, obfuscatedCode, "def classify", "function names should be renamed")
			assert.NotContains(t, obfuscatedCode, "def total", "function names should be renamed")
			// String encoding happens at every level.
			assert.NotContains(t, obfuscatedCode, "'negative'", "string literals should be encoded")
		})
	}
}

// TestPipelineDeterminism runs the same file twice with the same seed and
// expects byte-identical output.
func TestPipelineDeterminism(t *testing.T) {
	runner := internal.NewPyRunner(t)
	runner.SkipIfPythonNotAvailable()

	inputFile := filepath.Join("..", "..", "testdata", "integration", "pipeline", "input.py")
	absPath, err := filepath.Abs(inputFile)
	require.NoError(t, err)

	obfuscate := func() string {
		cfg := config.DefaultConfig()
		cfg.Seed = 99
		cfg.Silent = true
		require.NoError(t, cfg.ApplyLevel(config.LevelAdvanced))
		_, code, err := runner.ObfuscateFile(absPath, cfg)
		require.NoError(t, err)
		return code
	}

	first := obfuscate()
	second := obfuscate()
	assert.Equal(t, first, second, "Same seed and input should give identical output")
}
