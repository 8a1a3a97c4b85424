package obfuscator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/whit3rabbit/pymixer/internal/config"
)

// fileTask is one unit of work for the directory pool.
type fileTask struct {
	inputPath  string
	outputPath string
	relPath    string
	obfuscate  bool
}

// ProcessDirectory obfuscates every source file under inputDir into outputDir,
// preserving the directory layout. Non-source files and files matching keep
// patterns are copied verbatim. Files run through a bounded worker pool; each
// file's output depends only on the run seed and its own path, so the level of
// parallelism never changes the result.
func ProcessDirectory(ctx context.Context, inputDir, outputDir string, octx *ObfuscationContext) (*Report, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, fmt.Errorf("error accessing source directory %s: %w", inputDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", inputDir)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating target directory %s: %w", outputDir, err)
	}

	tasks, err := collectTasks(inputDir, outputDir, octx.Config)
	if err != nil {
		return nil, err
	}

	workers := octx.Config.Parallelism
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	total := &Report{File: inputDir}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !task.obfuscate {
				return copyFile(task.inputPath, task.outputPath)
			}
			content, report, err := ProcessFile(task.inputPath, octx)
			if err != nil {
				if octx.Config.AbortOnError {
					return err
				}
				fmt.Fprintf(os.Stderr, "Warning: %v; copying %s unchanged\n", err, task.relPath)
				return copyFile(task.inputPath, task.outputPath)
			}
			if err := os.WriteFile(task.outputPath, []byte(content), 0644); err != nil {
				return fmt.Errorf("error writing %s: %w", task.outputPath, err)
			}
			mu.Lock()
			total.Merge(report)
			mu.Unlock()
			if !octx.Silent {
				config.PrintInfo("Processed: %s\n", task.relPath)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}

	if err := octx.Save(outputDir); err != nil {
		return total, err
	}
	return total, nil
}

// collectTasks walks the source tree up front, applying skip and keep
// patterns and creating output directories, so the worker pool only ever
// touches files.
func collectTasks(inputDir, outputDir string, cfg *config.Config) ([]fileTask, error) {
	var tasks []fileTask
	err := filepath.WalkDir(inputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		if matchesAny(relPath, cfg.SkipPaths) {
			config.PrintInfo("Skipping: %s\n", relPath)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		outputPath := filepath.Join(outputDir, relPath)
		if d.IsDir() {
			return os.MkdirAll(outputPath, 0755)
		}
		tasks = append(tasks, fileTask{
			inputPath:  path,
			outputPath: outputPath,
			relPath:    relPath,
			obfuscate:  isSourceFile(d.Name(), cfg.SourceExtensions) && !matchesAny(relPath, cfg.KeepPaths),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking source directory %s: %w", inputDir, err)
	}
	return tasks, nil
}

// matchesAny reports whether relPath matches one of the filepath.Match
// patterns, tested against both the full relative path and the base name.
func matchesAny(relPath string, patterns []string) bool {
	base := filepath.Base(relPath)
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, relPath); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

func isSourceFile(name string, extensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, want := range extensions {
		if ext == strings.TrimPrefix(strings.ToLower(want), ".") {
			return true
		}
	}
	return false
}

func copyFile(src, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", src, err)
	}
	if err := os.WriteFile(dst, content, 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", dst, err)
	}
	return nil
}
