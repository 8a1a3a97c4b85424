// Package obfuscator orchestrates the transformation pipeline and holds the
// shared context that spans files.
package obfuscator

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/policy"
	"github.com/whit3rabbit/pymixer/internal/pyast"
	"github.com/whit3rabbit/pymixer/internal/pysrc"
	"github.com/whit3rabbit/pymixer/internal/resolver"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
	"github.com/whit3rabbit/pymixer/internal/transformer"
)

// ContextFileName is the rename registry file written next to obfuscated
// output, consumed by reverse lookups on later runs.
const ContextFileName = "pymixer.context"

// ObfuscationContext holds the state shared across all files of a run: the
// configuration and the accumulated rename registry.
type ObfuscationContext struct {
	Config *config.Config
	// Registry accumulates every file's rename map. Reverse lookups and
	// state persistence go through it.
	Registry *scrambler.Scrambler
	Silent   bool
}

// NewObfuscationContext creates a context and its registry scrambler.
func NewObfuscationContext(cfg *config.Config) (*ObfuscationContext, error) {
	reg, err := scrambler.NewScrambler(cfg, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return nil, err
	}
	return &ObfuscationContext{
		Config:   cfg,
		Registry: reg,
		Silent:   cfg.Silent,
	}, nil
}

// ContextFilePath returns the registry file path under baseDir.
func (octx *ObfuscationContext) ContextFilePath(baseDir string) string {
	return filepath.Join(baseDir, ContextFileName)
}

// Load restores the rename registry saved by a previous run, if present.
func (octx *ObfuscationContext) Load(baseDir string) error {
	return octx.Registry.LoadState(octx.ContextFilePath(baseDir))
}

// Save persists the rename registry under baseDir.
func (octx *ObfuscationContext) Save(baseDir string) error {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return fmt.Errorf("error creating context directory %s: %w", baseDir, err)
	}
	return octx.Registry.SaveState(octx.ContextFilePath(baseDir))
}

// fileSeed derives the per-file seed: the run seed folded with a hash of the
// file's path. Output is reproducible per file regardless of processing order.
func fileSeed(seed int64, path string) int64 {
	h := fnv.New64a()
	h.Write([]byte(path))
	return seed ^ int64(h.Sum64())
}

// Transform runs the configured passes over a parsed module, in place. The
// path is only used to derive the file seed and label diagnostics.
func Transform(mod *pyast.Module, path string, octx *ObfuscationContext) (*Report, error) {
	cfg := octx.Config
	rng := rand.New(rand.NewSource(fileSeed(cfg.Seed, path)))
	report := &Report{File: path}

	scr, err := scrambler.NewScrambler(cfg, rng)
	if err != nil {
		return nil, err
	}

	// 1. Resolution. Unresolved references degrade to warnings; the names
	// stay untouched because the renamer only rewrites resolved uses.
	table := resolver.Resolve(mod)
	for _, unres := range table.Unresolved {
		report.Warnings = append(report.Warnings, Diagnostic{
			File:     path,
			Severity: SeverityWarning,
			Err:      &UnresolvedReferenceError{Ref: unres},
		})
	}

	// 2. Renaming.
	pol := policy.Build(mod, table, cfg)
	renamer := transformer.NewRenamer(table, pol, scr)
	if err := renamer.Apply(mod); err != nil {
		return report, fmt.Errorf("renaming failed for %s: %w", path, err)
	}
	report.SymbolsRenamed = len(renamer.Renamed())

	// 3. Numeric literals, before the injection passes so their constants
	// stay in clear form.
	if cfg.Obfuscation.Numbers.Enabled {
		numbers := transformer.NewNumberObfuscator(&cfg.Obfuscation.Numbers, rng)
		numbers.Apply(mod)
		report.NumbersRewrit = numbers.Count()
	}

	// 4. String encoding.
	if cfg.Obfuscation.Strings.Enabled {
		encoder := transformer.NewStringEncoder(&cfg.Obfuscation.Strings, rng)
		encoder.Apply(mod)
		report.StringsEncoded = encoder.Count()
		for _, warn := range encoder.Warnings() {
			report.Warnings = append(report.Warnings, Diagnostic{File: path, Severity: SeverityWarning, Err: warn})
		}
	}

	// 5. Control flow flattening.
	if cfg.Obfuscation.ControlFlow.Enabled {
		flattener := transformer.NewFlattener(&cfg.Obfuscation.ControlFlow, rng, scr)
		if err := flattener.Apply(mod); err != nil {
			return report, fmt.Errorf("control flow flattening failed for %s: %w", path, err)
		}
		report.FuncsFlattened = flattener.Count()
		for _, warn := range flattener.Warnings() {
			report.Warnings = append(report.Warnings, Diagnostic{File: path, Severity: SeverityWarning, Err: warn})
		}
	}

	// 6. Opaque predicates.
	if cfg.Obfuscation.OpaquePredicates.Enabled {
		opaque := transformer.NewOpaquePredicates(&cfg.Obfuscation.OpaquePredicates, rng)
		opaque.Apply(mod)
		report.PredicatesAdded = opaque.Count()
	}

	// 7. Dead code.
	if cfg.Obfuscation.DeadCode.Enabled {
		dead := transformer.NewDeadCode(&cfg.Obfuscation.DeadCode, rng, scr)
		if err := dead.Apply(mod); err != nil {
			return report, fmt.Errorf("dead code injection failed for %s: %w", path, err)
		}
		report.DeadBranches = dead.Count()
	}

	octx.Registry.Absorb(scr.Mappings())
	return report, nil
}

// ProcessFile reads, parses, transforms, and returns the content of a single
// source file. Informational messages are suppressed; warnings travel in the
// report and only fatal conditions surface as errors.
func ProcessFile(filePath string, octx *ObfuscationContext) (string, *Report, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return "", nil, fmt.Errorf("error reading file %s: %w", filePath, err)
	}

	mod, err := pysrc.Parse(string(src))
	if err != nil {
		return "", nil, fmt.Errorf("parsing failed for %s: %w", filePath, err)
	}

	report, err := Transform(mod, filePath, octx)
	if err != nil {
		return "", report, err
	}

	if octx.Config.DebugMode {
		config.PrintInfo("Debug: %s: renamed=%d strings=%d flattened=%d opaque=%d dead=%d warnings=%d\n",
			filePath, report.SymbolsRenamed, report.StringsEncoded, report.FuncsFlattened,
			report.PredicatesAdded, report.DeadBranches, len(report.Warnings))
	}

	return pysrc.Print(mod), report, nil
}
