package main

import "github.com/spf13/cobra"

var (
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "workflow-tracker",
	Short: "Tracks imaging studies through the Orthanc, Mercure and routing pipeline.",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(syncCmd)

	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "e", ".env", "Path to a dotenv file loaded before reading the environment")
}
