package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/pymixer/internal/obfuscator"
)

var outputFile string // Flag variable for output file path

// fileCmd represents the obfuscate file command
var fileCmd = &cobra.Command{
	Use:   "file <python_file_path>",
	Short: "Obfuscate a single Python file",
	Long: `Reads a single Python file, applies the configured obfuscation
passes, and outputs the result to stdout or a specified file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true
		filePath := args[0]

		// Single file runs don't load or save a registry.
		octx, err := obfuscator.NewObfuscationContext(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize obfuscation context: %w", err)
		}

		if !cfg.Silent {
			fmt.Fprintf(os.Stderr, "Processing file: %s\n", filePath)
		}
		outputContent, report, err := obfuscator.ProcessFile(filePath, octx)
		if err != nil {
			return fmt.Errorf("error processing file %s: %w", filePath, err)
		}
		for _, warn := range report.Warnings {
			fmt.Fprintf(os.Stderr, "%s\n", warn)
		}

		if outputFile != "" {
			if !cfg.Silent {
				fmt.Fprintf(os.Stderr, "Info: Writing output to file: %s\n", outputFile)
			}
			if err := os.WriteFile(outputFile, []byte(outputContent), 0644); err != nil {
				return fmt.Errorf("error writing to output file %s: %w", outputFile, err)
			}
		} else {
			fmt.Print(outputContent)
		}
		return nil
	},
}

func init() {
	obfuscateCmd.AddCommand(fileCmd)
	fileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default: stdout)")
}
