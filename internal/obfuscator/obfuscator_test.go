package obfuscator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/pysrc"
)

func TestMain(m *testing.M) {
	config.Testing = true
	os.Exit(m.Run())
}

func testConfig(t *testing.T, level string, seed int64) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.ApplyLevel(level))
	cfg.Seed = seed
	cfg.Silent = true
	return cfg
}

func transformSource(t *testing.T, source string, cfg *config.Config) (string, *Report, *ObfuscationContext) {
	t.Helper()
	octx, err := NewObfuscationContext(cfg)
	require.NoError(t, err)
	mod, err := pysrc.Parse(source)
	require.NoError(t, err)
	report, err := Transform(mod, "sample.py", octx)
	require.NoError(t, err)

	out := pysrc.Print(mod)
	_, err = pysrc.Parse(out)
	require.NoError(t, err, "transformed output must reparse")
	return out, report, octx
}

const sampleSource = `def add(left, right):
    total = left + right
    return total

def greet(name):
    message = 'hello, ' + name
    return message

result = add(2, 3)
`

func TestTransformBasicLevel(t *testing.T) {
	cfg := testConfig(t, config.LevelBasic, 101)
	out, report, octx := transformSource(t, sampleSource, cfg)

	assert.Greater(t, report.SymbolsRenamed, 0)
	assert.Greater(t, report.StringsEncoded, 0)
	assert.Zero(t, report.FuncsFlattened)
	assert.Zero(t, report.PredicatesAdded)
	assert.Zero(t, report.DeadBranches)
	assert.Zero(t, report.NumbersRewrit)

	assert.NotContains(t, out, "def add")
	assert.NotContains(t, out, "'hello, '")

	renamed, ok := octx.Registry.LookupObfuscated("add")
	require.True(t, ok, "registry absorbs the file's rename map")
	original, ok := octx.Registry.Unscramble(renamed)
	require.True(t, ok)
	assert.Equal(t, "add", original)
}

func TestTransformAdvancedLevel(t *testing.T) {
	cfg := testConfig(t, config.LevelAdvanced, 102)
	cfg.Obfuscation.OpaquePredicates.InjectionRate = 100
	cfg.Obfuscation.DeadCode.InjectionRate = 100

	out, report, _ := transformSource(t, sampleSource, cfg)

	assert.Greater(t, report.SymbolsRenamed, 0)
	assert.Greater(t, report.StringsEncoded, 0)
	assert.Greater(t, report.FuncsFlattened, 0)
	assert.Greater(t, report.PredicatesAdded, 0)
	assert.Greater(t, report.DeadBranches, 0)
	assert.Greater(t, report.NumbersRewrit, 0)
	assert.Contains(t, out, "while ")
}

func TestTransformTryExceptExemptsFlattening(t *testing.T) {
	source := "def safe_div(a, b):\n    result = 0\n    try:\n        result = a / b\n    except ZeroDivisionError:\n        result = 0\n    return result\n"
	cfg := testConfig(t, config.LevelAdvanced, 103)
	out, report, _ := transformSource(t, source, cfg)

	assert.Zero(t, report.FuncsFlattened)
	assert.Greater(t, report.SymbolsRenamed, 0)
	assert.Contains(t, out, "except ZeroDivisionError:")

	found := false
	for _, d := range report.Warnings {
		if strings.Contains(d.Err.Error(), "left untransformed") {
			found = true
		}
	}
	assert.True(t, found, "exemption surfaces as a warning")
}

func TestTransformUnresolvedReferenceWarning(t *testing.T) {
	cfg := testConfig(t, config.LevelBasic, 104)
	out, report, _ := transformSource(t, "value = mystery_dependency + 1\n", cfg)

	require.NotEmpty(t, report.Warnings)
	assert.Equal(t, SeverityWarning, report.Warnings[0].Severity)
	assert.Contains(t, report.Warnings[0].Err.Error(), "name left unchanged")
	assert.Contains(t, out, "mystery_dependency", "unresolved names stay untouched")
	assert.NotContains(t, out, "value =")
}

func TestTransformDeterministicPerPath(t *testing.T) {
	run := func(path string) string {
		cfg := testConfig(t, config.LevelAdvanced, 105)
		octx, err := NewObfuscationContext(cfg)
		require.NoError(t, err)
		mod, err := pysrc.Parse(sampleSource)
		require.NoError(t, err)
		_, err = Transform(mod, path, octx)
		require.NoError(t, err)
		return pysrc.Print(mod)
	}

	assert.Equal(t, run("pkg/mod.py"), run("pkg/mod.py"))
	assert.NotEqual(t, run("pkg/mod.py"), run("pkg/other.py"),
		"each file draws from its own seed")
}

func TestFileSeed(t *testing.T) {
	assert.Equal(t, fileSeed(1, "a.py"), fileSeed(1, "a.py"))
	assert.NotEqual(t, fileSeed(1, "a.py"), fileSeed(1, "b.py"))
	assert.NotEqual(t, fileSeed(1, "a.py"), fileSeed(2, "a.py"))
}

func TestProcessFile(t *testing.T) {
	cfg := testConfig(t, config.LevelBasic, 106)
	octx, err := NewObfuscationContext(cfg)
	require.NoError(t, err)

	inputFile := filepath.Join(t.TempDir(), "input.py")
	require.NoError(t, os.WriteFile(inputFile, []byte(sampleSource), 0644))

	content, report, err := ProcessFile(inputFile, octx)
	require.NoError(t, err)
	assert.Greater(t, report.SymbolsRenamed, 0)

	_, err = pysrc.Parse(content)
	assert.NoError(t, err)
}

func TestProcessFileErrors(t *testing.T) {
	cfg := testConfig(t, config.LevelBasic, 107)
	octx, err := NewObfuscationContext(cfg)
	require.NoError(t, err)

	_, _, err = ProcessFile(filepath.Join(t.TempDir(), "absent.py"), octx)
	assert.Error(t, err)

	badFile := filepath.Join(t.TempDir(), "bad.py")
	require.NoError(t, os.WriteFile(badFile, []byte("def broken(:\n"), 0644))
	_, _, err = ProcessFile(badFile, octx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing failed")
}

func TestContextSaveLoad(t *testing.T) {
	cfg := testConfig(t, config.LevelBasic, 108)
	_, _, octx := transformSource(t, sampleSource, cfg)

	dir := t.TempDir()
	require.NoError(t, octx.Save(dir))
	assert.FileExists(t, filepath.Join(dir, ContextFileName))

	restored, err := NewObfuscationContext(testConfig(t, config.LevelBasic, 108))
	require.NoError(t, err)
	require.NoError(t, restored.Load(dir))

	renamed, ok := octx.Registry.LookupObfuscated("greet")
	require.True(t, ok)
	original, ok := restored.Registry.Unscramble(renamed)
	require.True(t, ok)
	assert.Equal(t, "greet", original)
}

func TestContextLoadMissingIsNoop(t *testing.T) {
	octx, err := NewObfuscationContext(testConfig(t, config.LevelBasic, 109))
	require.NoError(t, err)
	assert.NoError(t, octx.Load(t.TempDir()))
}
