// Package commands implements the strata CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "strata - content-addressed object persistence",
	Long: `strata stores arbitrary Go objects as content-addressed manifests:
each object is decomposed into named pieces by an unpacker, each piece is
serialized and written to a pluggable storage backend, and the resulting
digests are committed to a manifest row for later reconstruction.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/strata/config.yaml)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string {
	return cfgFile
}
