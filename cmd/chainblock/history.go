package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chainblock/pkg/history"
	"chainblock/pkg/logger"
	"chainblock/pkg/ui"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List finished session runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the session history",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyClearCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show, 0 for all")
}

func openJournal() (*history.Journal, error) {
	path, err := history.DefaultPath()
	if err != nil {
		return nil, err
	}
	return history.NewJournal(path, history.DefaultLimit, logger.GetLogger()), nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	journal, err := openJournal()
	if err != nil {
		return err
	}
	records, err := journal.Load()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		ui.PrintInfo("No sessions recorded", journal.Path())
		return nil
	}
	if historyLimit > 0 && len(records) > historyLimit {
		records = records[len(records)-historyLimit:]
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tSESSION\tPURPOSE\tTARGET\tSTATUS\tRESULT")
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		status := string(r.Status)
		switch {
		case r.Error != "":
			status += ": " + r.Error
		case r.Reason != "":
			status += " (" + string(r.Reason) + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.FinishedAt.Local().Format("2006-01-02 15:04"),
			shortSessionID(r.SessionID),
			r.Purpose,
			r.Target,
			status,
			ui.FormatCounts(r.Progress),
		)
	}
	return w.Flush()
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	journal, err := openJournal()
	if err != nil {
		return err
	}
	if err := journal.Clear(); err != nil {
		return err
	}
	ui.PrintSuccess("Session history cleared")
	return nil
}

func shortSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
