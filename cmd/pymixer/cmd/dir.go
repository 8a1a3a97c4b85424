package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/pymixer/internal/obfuscator"
)

var (
	outputDir string // Flag variable for output directory
	cleanMode bool   // Flag variable for cleaning target directory
)

// dirCmd represents the obfuscate dir command
var dirCmd = &cobra.Command{
	Use:   "dir <source_directory>",
	Short: "Obfuscate Python code in a directory recursively",
	Long: `Recursively scans the source directory for Python files (based on
configured extensions), applies obfuscation, and writes the results to the
target directory, preserving the original structure. The rename registry is
saved in the target directory so later runs and whatis lookups can reuse it.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if outputDir == "" {
			return fmt.Errorf("output directory (-o, --output) is required for directory obfuscation")
		}
		sourceDir := args[0]
		info, err := os.Stat(sourceDir)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("source directory '%s' not found", sourceDir)
			}
			return fmt.Errorf("error checking source directory '%s': %w", sourceDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("source path '%s' is not a directory", sourceDir)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true

		sourceDir := args[0]
		cfg.SourceDirectory = sourceDir
		cfg.TargetDirectory = outputDir

		if !cfg.Silent {
			fmt.Println("--- Directory Obfuscation ---")
			fmt.Printf("Source Directory: %s\n", sourceDir)
			fmt.Printf("Target Directory: %s\n", outputDir)
			fmt.Println("-----------------------------")
		}

		if cleanMode {
			if outputDir == "/" || outputDir == "." || outputDir == ".." {
				return fmt.Errorf("refusing to clean potentially dangerous path: %s", outputDir)
			}
			if abs, err := filepath.Abs(outputDir); err == nil && abs == "/" {
				return fmt.Errorf("refusing to clean potentially dangerous path: %s", outputDir)
			}
			if _, err := os.Stat(outputDir); !os.IsNotExist(err) {
				if !cfg.Silent {
					fmt.Printf("Info: Cleaning target directory: %s\n", outputDir)
				}
				if err := os.RemoveAll(outputDir); err != nil {
					return fmt.Errorf("failed to clean target directory %s: %w", outputDir, err)
				}
			}
		}

		octx, err := obfuscator.NewObfuscationContext(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize obfuscation context: %w", err)
		}

		// Reuse registry state from a previous run into the same target.
		if err := octx.Load(outputDir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to load existing context: %v\n", err)
			fmt.Fprintf(os.Stderr, "Starting with fresh context.\n")
		}

		report, err := obfuscator.ProcessDirectory(context.Background(), sourceDir, outputDir, octx)
		if err != nil {
			return fmt.Errorf("directory obfuscation failed: %w", err)
		}

		for _, warn := range report.Warnings {
			fmt.Fprintf(os.Stderr, "%s\n", warn)
		}
		if !cfg.Silent {
			fmt.Printf("Done: %d symbols renamed, %d strings encoded, %d functions flattened, %d warnings\n",
				report.SymbolsRenamed, report.StringsEncoded, report.FuncsFlattened, len(report.Warnings))
		}
		return nil
	},
}

func init() {
	obfuscateCmd.AddCommand(dirCmd)
	dirCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory path (required)")
	dirCmd.Flags().BoolVar(&cleanMode, "clean", false, "Remove the target directory before writing")
}
