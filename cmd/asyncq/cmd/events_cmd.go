package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/asyncqueue/datarecording"
)

var eventsCmd = &cobra.Command{
	Use:   "events <recording.sqlite3>",
	Short: "Print the queue events of a recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		queue, _ := cmd.Flags().GetString("queue")
		limit, _ := cmd.Flags().GetInt("limit")

		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		events, err := datarecording.ReadEvents(
			cmd.Context(), reader, queue, limit)
		if err != nil {
			return err
		}

		return printEvents(cmd.OutOrStdout(), events)
	},
}

func init() {
	eventsCmd.Flags().String("queue", "", "only print events of this queue")
	eventsCmd.Flags().Int("limit", 0, "print at most this many events")

	rootCmd.AddCommand(eventsCmd)
}

func printEvents(w io.Writer, events []datarecording.EventEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "TIME\tQUEUE\tEVENT\tITEM\tSIZE")
	for _, e := range events {
		fmt.Fprintf(tw, "%.6f\t%s\t%s\t%s\t%d\n",
			e.Time, e.Queue, e.Event, e.Item, e.Size)
	}

	return tw.Flush()
}
