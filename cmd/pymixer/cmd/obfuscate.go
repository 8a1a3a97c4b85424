package cmd

import (
	"github.com/spf13/cobra"
)

// obfuscateCmd represents the base command for obfuscation actions
var obfuscateCmd = &cobra.Command{
	Use:   "obfuscate",
	Short: "Obfuscates Python code using the configured passes",
	Long: `Provides subcommands to obfuscate individual files or entire directories.

Example:
  pymixer obfuscate file input.py -o output.py
  pymixer obfuscate dir ./src -o ./dist --clean`,
}

func init() {
	rootCmd.AddCommand(obfuscateCmd)
}
