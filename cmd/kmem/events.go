package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/sarchlab/kmem/datarecording"
	"github.com/spf13/cobra"
)

var (
	eventsFilter  datarecording.Filter
	eventsSummary bool
)

var eventsCmd = &cobra.Command{
	Use:   "events [database]",
	Short: "List the address-space events recorded in a database.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := datarecording.NewReader(args[0])
		defer reader.Close()

		if eventsSummary {
			return printEventCounts(cmd.Context(), cmd.OutOrStdout(),
				reader, eventsFilter)
		}

		return printEvents(cmd.Context(), cmd.OutOrStdout(),
			reader, eventsFilter)
	},
}

func registerEventsCmd() {
	rootCmd.AddCommand(eventsCmd)

	f := eventsCmd.Flags()
	f.IntVar(&eventsFilter.Limit, "limit", 0,
		"Maximum number of events to list, 0 lists all")
	f.IntVar(&eventsFilter.Offset, "offset", 0,
		"Number of events to skip")
	f.StringVar(&eventsFilter.Domain, "domain", "",
		"Only list events of this address space")
	f.StringVar(&eventsFilter.Event, "event", "",
		"Only list events of this kind, e.g. EstablishFailed")
	f.BoolVar(&eventsSummary, "summary", false,
		"Print the number of events of each kind instead")
}

func printEvents(
	ctx context.Context,
	w io.Writer,
	reader datarecording.Reader,
	f datarecording.Filter,
) error {
	events, total, err := reader.Events(ctx, f)
	if err != nil {
		return err
	}

	for _, e := range events {
		fmt.Fprintf(w, "%s %-16s %-16s text=0x%x+%d data=0x%x+%d "+
			"stack=%d pages=%d %s\n",
			e.ID, e.Domain, e.Event, e.TextStart, e.TextSize,
			e.DataStart, e.DataSize, e.StackSize, e.MappedPages, e.Error)
	}

	fmt.Fprintf(w, "%d of %d events\n", len(events), total)

	return nil
}

func printEventCounts(
	ctx context.Context,
	w io.Writer,
	reader datarecording.Reader,
	f datarecording.Filter,
) error {
	counts, err := reader.Counts(ctx, f)
	if err != nil {
		return err
	}

	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}

	sort.Strings(kinds)

	for _, k := range kinds {
		fmt.Fprintf(w, "%-16s %d\n", k, counts[k])
	}

	return nil
}
