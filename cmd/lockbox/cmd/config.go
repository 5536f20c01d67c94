package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/lockbox/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to a lockbox.yaml file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		system, _ := cmd.Flags().GetBool("system")
		written, err := config.WriteConfigFile(&cfg, path, system)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", written)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("path", "", "Write to this file instead of the user config location")
	configInitCmd.Flags().Bool("system", false, "Write to the system config location")
}
