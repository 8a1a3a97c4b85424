// Package cmd implements the command line interface for the application.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/pymixer/internal/config"
)

var (
	cfgFile string         // Variable to hold the config file path from the flag
	cfg     *config.Config // Global variable to hold the loaded configuration

	// Flag variables mapped to config fields for override
	silentMode       bool   // -> cfg.Silent
	abortOnError     bool   // -> cfg.AbortOnError
	debugMode        bool   // -> cfg.DebugMode
	level            string // -> cfg.ApplyLevel
	seed             int64  // -> cfg.Seed
	parallelism      int    // -> cfg.Parallelism
	obfuscateStrings bool   // -> cfg.Obfuscation.Strings.Enabled
	controlFlow      bool   // -> cfg.Obfuscation.ControlFlow.Enabled
	opaquePredicates bool   // -> cfg.Obfuscation.OpaquePredicates.Enabled
	deadCode         bool   // -> cfg.Obfuscation.DeadCode.Enabled
	numbers          bool   // -> cfg.Obfuscation.Numbers.Enabled
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pymixer",
	Short: "A CLI tool to obfuscate Python code.",
	Long: `pymixer applies layered obfuscation to Python source: identifier
renaming, string encoding, numeric literal rewriting, control flow
flattening, opaque predicates, and dead code injection.`,
	// PersistentPreRunE runs before any subcommand's RunE.
	// Use this to load configuration early.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil { // Only load config once
			loadedCfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			cfg = loadedCfg

			// Apply command-line flag overrides *after* loading config file
			if err := applyFlagOverrides(cfg, cmd); err != nil {
				return err
			}
		}
		return nil
	},
	// Run: Executes if no subcommand is given. Print help.
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// applyFlagOverrides applies command-line flag values to the config struct.
// Only overrides if the flag was explicitly set by the user via
// cmd.Flags().Changed(). The level flag is applied first so that individual
// pass toggles can still override what the level enables.
func applyFlagOverrides(cfg *config.Config, cmd *cobra.Command) error {
	if cmd.Flags().Changed("level") {
		if err := cfg.ApplyLevel(level); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("silent") {
		cfg.Silent = silentMode
	}
	if cmd.Flags().Changed("abort-on-error") {
		cfg.AbortOnError = abortOnError
	}
	if cmd.Flags().Changed("debug") {
		cfg.DebugMode = debugMode
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("parallelism") {
		cfg.Parallelism = parallelism
	}
	if cmd.Flags().Changed("obfuscate-strings") {
		cfg.Obfuscation.Strings.Enabled = obfuscateStrings
	}
	if cmd.Flags().Changed("control-flow") {
		cfg.Obfuscation.ControlFlow.Enabled = controlFlow
	}
	if cmd.Flags().Changed("opaque-predicates") {
		cfg.Obfuscation.OpaquePredicates.Enabled = opaquePredicates
	}
	if cmd.Flags().Changed("dead-code") {
		cfg.Obfuscation.DeadCode.Enabled = deadCode
	}
	if cmd.Flags().Changed("numbers") {
		cfg.Obfuscation.Numbers.Enabled = numbers
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		// Cobra usually prints the error. We just need to exit non-zero.
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./pymixer.yaml)")

	// Add flags for common config options
	rootCmd.PersistentFlags().BoolVarP(&silentMode, "silent", "s", false, "Suppress informational output (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&abortOnError, "abort-on-error", false, "Stop processing on the first error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Print per-file pass statistics (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&level, "level", "l", "", "Obfuscation level: basic, intermediate, advanced (overrides config)")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "Random seed; identical seeds give identical output (overrides config)")
	rootCmd.PersistentFlags().IntVar(&parallelism, "parallelism", 0, "Number of files processed concurrently, 0 = all CPUs (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&obfuscateStrings, "obfuscate-strings", true, "Enable/disable string encoding (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&controlFlow, "control-flow", false, "Enable/disable control flow flattening (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&opaquePredicates, "opaque-predicates", true, "Enable/disable opaque predicates (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&deadCode, "dead-code", false, "Enable/disable dead code injection (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&numbers, "numbers", false, "Enable/disable numeric literal rewriting (overrides config)")
}
