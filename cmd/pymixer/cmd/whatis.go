package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/obfuscator"
)

var (
	whatisTargetDir string
	whatisAll       bool
)

// whatisCmd represents the whatis command
var whatisCmd = &cobra.Command{
	Use:   "whatis <scrambled_name>",
	Short: "Looks up the original name for a given scrambled name",
	Long: `Loads the saved rename registry from a previous run's target directory
and finds the original identifier corresponding to the provided scrambled name.

You must specify the target directory where the registry was saved using
--target-dir (-t). Use --all to dump the whole mapping table instead of
looking up a single name.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if whatisAll {
			return cobra.MaximumNArgs(0)(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if whatisTargetDir == "" {
			return fmt.Errorf("--target-dir (-t) flag is required")
		}
		info, err := os.Stat(whatisTargetDir)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("target directory '%s' not found", whatisTargetDir)
			}
			return fmt.Errorf("error checking target directory '%s': %w", whatisTargetDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("target path '%s' is not a directory", whatisTargetDir)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		// Defaults are enough here; the registry replaces any seeded state.
		defCfg, err := config.LoadConfig("")
		if err != nil {
			return fmt.Errorf("failed to load default config for context init: %w", err)
		}

		octx, err := obfuscator.NewObfuscationContext(defCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize obfuscation context: %w", err)
		}
		if err := octx.Load(whatisTargetDir); err != nil {
			return fmt.Errorf("error loading obfuscation context from %s: %w", whatisTargetDir, err)
		}

		if whatisAll {
			return printMappings(octx)
		}

		scrambledName := args[0]
		originalName, ok := octx.Registry.Unscramble(scrambledName)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: Scrambled name '%s' not found in the loaded context.\n", scrambledName)
			return fmt.Errorf("name not found")
		}
		fmt.Printf("Found: '%s'\n", originalName)
		return nil
	},
}

// printMappings renders the whole registry as a two column table.
func printMappings(octx *obfuscator.ObfuscationContext) error {
	mappings := octx.Registry.Mappings()
	if len(mappings) == 0 {
		fmt.Println("Context contains no name mappings.")
		return nil
	}

	originals := make([]string, 0, len(mappings))
	for original := range mappings {
		originals = append(originals, original)
	}
	sort.Strings(originals)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Original", "Obfuscated"})
	for _, original := range originals {
		table.Append([]string{original, mappings[original]})
	}
	table.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(whatisCmd)
	whatisCmd.Flags().StringVarP(&whatisTargetDir, "target-dir", "t", "", "Target directory of a previous obfuscate run (required)")
	whatisCmd.Flags().BoolVar(&whatisAll, "all", false, "Print every recorded name mapping")
}
