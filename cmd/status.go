package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/halcyon-research/tracklist-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-stage record counts and failure totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.StatusCounts(ctx)
		if err != nil {
			return eris.Wrap(err, "status counts")
		}

		failures := make(map[model.Stage]int, len(model.Stages))
		for _, stage := range model.Stages {
			fs, err := st.ListFailures(ctx, stage)
			if err != nil {
				return eris.Wrapf(err, "list failures for %s", stage)
			}
			failures[stage] = len(fs)
		}

		formatStatus(os.Stdout, counts, failures)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusColumns = []model.Status{
	model.StatusPending,
	model.StatusMatched,
	model.StatusDone,
	model.StatusNotFound,
	model.StatusAmbiguous,
	model.StatusFailed,
}

// formatStatus writes a per-stage table of status counts and open failure
// log entries to w.
func formatStatus(out io.Writer, counts map[model.Stage]model.StatusCounts, failures map[model.Stage]int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STAGE\tPENDING\tMATCHED\tDONE\tNOT_FOUND\tAMBIGUOUS\tFAILED\tFAILURE_LOG")
	_, _ = fmt.Fprintln(w, "-----\t-------\t-------\t----\t---------\t---------\t------\t-----------")

	for _, stage := range model.Stages {
		sc := counts[stage]
		_, _ = fmt.Fprintf(w, "%s", stage)
		for _, status := range statusColumns {
			_, _ = fmt.Fprintf(w, "\t%d", sc[status])
		}
		_, _ = fmt.Fprintf(w, "\t%d\n", failures[stage])
	}
	_ = w.Flush()
}
