package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Move items from producers to consumers through one queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true

		cfg, err := parsePipelineConfig(cmd)
		if err != nil {
			return err
		}

		logger := log.New(os.Stderr, "", log.Lmicroseconds)

		report, err := runPipeline(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), report)

		return nil
	},
}

func init() {
	definePipelineFlags(pipelineCmd.Flags())
	rootCmd.AddCommand(pipelineCmd)
}

func definePipelineFlags(f *pflag.FlagSet) {
	f.Int("capacity", 16, "queue capacity, 0 for unbounded")
	f.String("order", "fifo", "queue order, fifo or lifo")
	f.Int("producers", 2, "number of producer goroutines")
	f.Int("consumers", 2, "number of consumer goroutines")
	f.Int("items", 1000, "total number of items to move")
	f.Int("batch", 1, "items per push and get")
	f.Float64("rate", 0, "items per second per producer, 0 for no limit")
	f.Duration("timeout", 0, "per-call wait bound; timed out calls are retried")
	f.String("record", "", "record queue events into this SQLite database")
	f.Bool("monitor", false, "serve the queue state over HTTP")
	f.Int("monitor-port", 0, "port of the monitoring server, 0 for random")
	f.Bool("open-browser", false, "open the monitoring server in a browser")
	f.Bool("log-events", false, "log every queue event to stderr")
}
