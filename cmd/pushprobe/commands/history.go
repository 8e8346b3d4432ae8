package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/loykin/pushprobe/internal/report"
	"github.com/loykin/pushprobe/internal/store"
	"github.com/spf13/cobra"
)

var (
	historySuite string
	historyLimit int
	historyRunID int64
)

var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs, or the outcomes of one run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadConfig()
		if err != nil {
			return err
		}
		settings, err := doc.Settings()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if settings.Store == nil {
			_, _ = fmt.Fprintln(out, "History is disabled - no runs recorded")
			return nil
		}

		ctx := cmd.Context()
		st, err := store.Open(ctx, *settings.Store)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if historyRunID > 0 {
			run, err := st.GetRun(ctx, historyRunID)
			if errors.Is(err, store.ErrRunNotFound) {
				return fmt.Errorf("run %d not found", historyRunID)
			}
			if err != nil {
				return err
			}
			recs, err := st.Outcomes(ctx, run.ID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Run %d: %s at %s (%d/%d passed, %s)\n",
				run.ID, run.Suite, run.StartedAt.Local().Format(time.RFC3339), run.Passed, run.Total, run.Elapsed().Round(time.Millisecond))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "#\tSTEP\tRESULT\tDURATION\tDETAIL")
			for _, r := range recs {
				res := "FAIL"
				if r.Passed {
					res = "PASS"
				}
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.Position+1, r.Name, res, r.Duration.Round(time.Millisecond), report.FormatDetail(r.Detail))
			}
			return tw.Flush()
		}

		runs, err := st.ListRuns(ctx, store.ListOptions{Suite: historySuite, Limit: historyLimit})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			_, _ = fmt.Fprintln(out, "No runs recorded")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tSUITE\tSTARTED\tPASSED\tHEALTHY\tELAPSED")
		for _, r := range runs {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\t%t\t%s\n",
				r.ID, r.Suite, r.StartedAt.Local().Format(time.RFC3339), r.Passed, r.Total, r.Healthy, r.Elapsed().Round(time.Millisecond))
		}
		return tw.Flush()
	},
}

func init() {
	HistoryCmd.Flags().StringVar(&historySuite, "suite", "", "only show runs of this suite")
	HistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to show")
	HistoryCmd.Flags().Int64Var(&historyRunID, "run", 0, "show the outcomes of one run")
}
