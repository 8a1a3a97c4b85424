package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/pymixer/internal/config"
)

var configOutputPath string

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write a default configuration file",
	Long: `Writes the default configuration as YAML so it can be edited and
passed back with --config. Refuses to overwrite an existing file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if _, err := os.Stat(configOutputPath); err == nil {
			return fmt.Errorf("config file %s already exists, refusing to overwrite", configOutputPath)
		}
		if err := config.SaveConfig(configOutputPath); err != nil {
			return err
		}
		fmt.Printf("Wrote default configuration to %s\n", configOutputPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVarP(&configOutputPath, "output", "o", "pymixer.yaml", "Path of the config file to write")
}
