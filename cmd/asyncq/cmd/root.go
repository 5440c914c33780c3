// Package cmd provides the command-line interface of asyncq.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "asyncq",
	Short: "asyncq exercises bounded asynchronous queues.",
	Long: `asyncq exercises bounded asynchronous queues. The pipeline command ` +
		`moves items from producers to consumers through a single queue and ` +
		`can record its events to SQLite or serve its state over HTTP.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")

		return loadEnvFile(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env",
		"file with ASYNCQ_* defaults; ignored if it does not exist")
}

// loadEnvFile loads the variables of a .env file into the process
// environment. Variables that are already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
