package internal

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/obfuscator"
)

// PyRunner provides utilities for running Python in integration tests
type PyRunner struct {
	T *testing.T
}

// NewPyRunner creates a new Python runner for integration tests
func NewPyRunner(t *testing.T) *PyRunner {
	return &PyRunner{T: t}
}

// SkipIfPythonNotAvailable skips the test if Python is not installed
func (r *PyRunner) SkipIfPythonNotAvailable() {
	if _, err := exec.LookPath("python3"); err != nil {
		r.T.Skip("python3 not available, skipping integration test")
	}
}

// RunPython executes a Python file and returns its combined output
func (r *PyRunner) RunPython(file string) (string, error) {
	r.T.Helper()
	cmd := exec.Command("python3", file)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// ObfuscateFile obfuscates a Python file with the given configuration and
// writes the output to a temporary file
func (r *PyRunner) ObfuscateFile(inputFile string, cfg *config.Config) (string, string, error) {
	r.T.Helper()

	octx, err := obfuscator.NewObfuscationContext(cfg)
	if err != nil {
		return "", "", err
	}

	r.T.Logf("Processing file: %s", inputFile)
	obfuscated, report, err := obfuscator.ProcessFile(inputFile, octx)
	if err != nil {
		return "", "", err
	}
	for _, warn := range report.Warnings {
		r.T.Logf("%s", warn)
	}

	tmpDir := r.T.TempDir()
	outputFile := filepath.Join(tmpDir, "obfuscated_"+filepath.Base(inputFile))
	if err := os.WriteFile(outputFile, []byte(obfuscated), 0644); err != nil {
		return "", "", err
	}

	r.T.Logf("Successfully wrote obfuscated file to: %s", outputFile)
	return outputFile, obfuscated, nil
}

// TestPythonFile runs both the original and obfuscated file and returns their outputs
func (r *PyRunner) TestPythonFile(originalFile, obfuscatedFile string) (string, string, error) {
	r.T.Helper()

	r.T.Log("=== Original Python Output ===")
	originalOutput, err := r.RunPython(originalFile)
	if err != nil {
		return "", "", err
	}
	r.T.Log(originalOutput)

	r.T.Log("=== Obfuscated Python Output ===")
	obfuscatedOutput, err := r.RunPython(obfuscatedFile)
	if err != nil {
		return "", "", err
	}
	r.T.Log(obfuscatedOutput)

	return originalOutput, obfuscatedOutput, nil
}

// IntegrationTest runs a complete integration test with the given config and input file
func (r *PyRunner) IntegrationTest(inputFile string, cfg *config.Config) (string, string, string, error) {
	r.T.Helper()

	r.SkipIfPythonNotAvailable()

	absPath, err := filepath.Abs(inputFile)
	require.NoError(r.T, err, "Error getting absolute path")

	obfuscatedFile, obfuscatedCode, err := r.ObfuscateFile(absPath, cfg)
	if err != nil {
		return "", "", "", err
	}

	originalOutput, obfuscatedOutput, err := r.TestPythonFile(absPath, obfuscatedFile)
	if err != nil {
		return "", "", "", err
	}

	return originalOutput, obfuscatedOutput, obfuscatedCode, nil
}
