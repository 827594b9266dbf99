// The shiba command inspects the allocation trace databases recorded by
// hosts that embed a native runtime.
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "shiba",
	Short: "Shiba CLI tool can inspect the allocation traces recorded by " +
		"hosts that embed a native runtime.",
	Long: `Shiba CLI tool can inspect the allocation traces recorded by ` +
		`hosts that embed a native runtime. Currently, it supports ` +
		`summarizing and dumping trace databases.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// A .env file may carry SHIBA_DB. A missing file is fine.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String(
		"db", "", "Trace database to read. Defaults to $SHIBA_DB.")
}

// traceDB resolves the trace database path from the --db flag, falling
// back to the SHIBA_DB environment variable.
func traceDB(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = os.Getenv("SHIBA_DB")
	}

	if path == "" {
		log.Fatal("Error: no trace database. Use --db or set SHIBA_DB.")
	}

	if _, err := os.Stat(path); err != nil {
		log.Fatalf("Error: cannot open trace database: %v", err)
	}

	return path
}
