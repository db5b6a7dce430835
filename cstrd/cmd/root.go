// Package cmd provides the command-line interface for the CSTR simulator.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "cstrd",
	Short: "cstrd simulates a continuously stirred tank reactor and " +
		"exposes it over Modbus TCP.",
	Long: `cstrd simulates an exothermic continuously stirred tank reactor. ` +
		`The serve command runs the plant in real time behind a Modbus TCP ` +
		`register map, and the batch command replays a scenario offline and ` +
		`writes a report.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	// A .env file can pre-populate settings through the environment.
	// Settings resolve at run time, so values loaded here are seen by
	// every subcommand. Missing files are fine.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// stringSetting resolves a string setting: an explicit command-line flag
// wins, then the environment (including values loaded from .env), then the
// flag's default.
func stringSetting(cmd *cobra.Command, name, envKey string) string {
	v, _ := cmd.Flags().GetString(name)
	if cmd.Flags().Changed(name) {
		return v
	}

	if env := os.Getenv(envKey); env != "" {
		return env
	}

	return v
}
