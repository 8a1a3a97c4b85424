// Package api provides the public API for using the obfuscator as a library.
//
// This package allows users to obfuscate Python code programmatically using
// the same passes available from the command-line interface. The API provides
// methods for obfuscating code strings, files, and directories.
//
// Basic usage example:
//
//	obf, err := api.NewObfuscator(api.Options{ConfigPath: "pymixer.yaml"})
//	if err != nil {
//	    log.Fatalf("Failed to create obfuscator: %v", err)
//	}
//
//	result, err := obf.ObfuscateCode("def greet(name):\n    return 'hello ' + name\n")
//	if err != nil {
//	    log.Fatalf("Failed to obfuscate code: %v", err)
//	}
//
//	fmt.Println(result)
package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/obfuscator"
	"github.com/whit3rabbit/pymixer/internal/pysrc"
)

// PrintInfo prints formatted information to stdout, respecting the Testing
// flag. It forwards to the internal config.PrintInfo function.
func PrintInfo(format string, args ...interface{}) {
	config.PrintInfo(format, args...)
}

// Obfuscator is the obfuscation engine. It carries the configuration and the
// rename registry shared by every operation performed through it.
type Obfuscator struct {
	Context *obfuscator.ObfuscationContext
	Config  *config.Config
}

// Options configures a new Obfuscator instance.
type Options struct {
	// ConfigPath is the path to a YAML configuration file. If empty, the
	// default configuration is used.
	ConfigPath string

	// Level overrides the obfuscation level from the config file. One of
	// "basic", "intermediate", "advanced".
	Level string

	// Seed overrides the random seed. The same seed with the same inputs
	// always produces the same output.
	Seed int64

	// Silent suppresses informational messages during obfuscation.
	Silent bool
}

// NewObfuscator creates an Obfuscator from the provided options.
func NewObfuscator(options Options) (*Obfuscator, error) {
	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if options.Level != "" {
		if err := cfg.ApplyLevel(options.Level); err != nil {
			return nil, err
		}
	}
	if options.Seed != 0 {
		cfg.Seed = options.Seed
	}
	if options.Silent {
		cfg.Silent = true
	}

	octx, err := obfuscator.NewObfuscationContext(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create obfuscation context: %w", err)
	}

	return &Obfuscator{
		Context: octx,
		Config:  cfg,
	}, nil
}

// ObfuscateCode obfuscates a string of Python source and returns the result.
// The code is treated as a standalone module named "<input>".
func (o *Obfuscator) ObfuscateCode(code string) (string, error) {
	mod, err := pysrc.Parse(code)
	if err != nil {
		return "", fmt.Errorf("failed to parse code: %w", err)
	}
	if _, err := obfuscator.Transform(mod, "<input>", o.Context); err != nil {
		return "", fmt.Errorf("failed to obfuscate code: %w", err)
	}
	return pysrc.Print(mod), nil
}

// ObfuscateFile obfuscates a Python file and returns the obfuscated source.
func (o *Obfuscator) ObfuscateFile(filePath string) (string, error) {
	result, _, err := obfuscator.ProcessFile(filePath, o.Context)
	if err != nil {
		return "", fmt.Errorf("failed to obfuscate file %s: %w", filePath, err)
	}
	return result, nil
}

// ObfuscateFileToFile obfuscates a Python file and writes the result to
// another file, creating the output directory if needed.
func (o *Obfuscator) ObfuscateFileToFile(inputPath, outputPath string) error {
	result, err := o.ObfuscateFile(inputPath)
	if err != nil {
		return err
	}

	outputDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	if err := os.WriteFile(outputPath, []byte(result), 0644); err != nil {
		return fmt.Errorf("failed to write to output file %s: %w", outputPath, err)
	}
	return nil
}

// ObfuscateDirectory obfuscates all Python files under inputDir into
// outputDir, preserving layout. Any rename registry saved by a previous run
// into outputDir is loaded first, so repeated runs keep their mappings.
func (o *Obfuscator) ObfuscateDirectory(inputDir, outputDir string) error {
	if err := o.Context.Load(outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load existing context: %v\n", err)
		fmt.Fprintf(os.Stderr, "Starting with fresh context.\n")
	}

	_, err := obfuscator.ProcessDirectory(context.Background(), inputDir, outputDir, o.Context)
	return err
}

// LoadContext loads a previously saved rename registry from a directory.
func (o *Obfuscator) LoadContext(baseDir string) error {
	return o.Context.Load(baseDir)
}

// SaveContext saves the current rename registry to a directory.
func (o *Obfuscator) SaveContext(baseDir string) error {
	return o.Context.Save(baseDir)
}

// LookupObfuscatedName returns the obfuscated form of an original identifier
// recorded in the registry.
func (o *Obfuscator) LookupObfuscatedName(name string) (string, error) {
	obfName, found := o.Context.Registry.LookupObfuscated(name)
	if !found {
		return "", fmt.Errorf("name not found in context: %s", name)
	}
	return obfName, nil
}

// LookupOriginalName returns the original identifier behind an obfuscated
// name recorded in the registry.
func (o *Obfuscator) LookupOriginalName(obfName string) (string, error) {
	name, found := o.Context.Registry.Unscramble(obfName)
	if !found {
		return "", fmt.Errorf("obfuscated name not found in context: %s", obfName)
	}
	return name, nil
}
