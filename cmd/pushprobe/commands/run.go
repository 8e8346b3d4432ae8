package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/pushprobe/cmd/pushprobe/config"
	"github.com/loykin/pushprobe/internal/common"
	"github.com/loykin/pushprobe/internal/metrics"
	"github.com/loykin/pushprobe/internal/report"
	"github.com/loykin/pushprobe/internal/runner"
	"github.com/loykin/pushprobe/internal/store"
	"github.com/loykin/pushprobe/internal/supervisor"
	"github.com/spf13/cobra"
)

var (
	runJSON     bool
	runNoColor  bool
	runDetails  bool
	runProgress bool
)

const historyTimeout = 30 * time.Second

var RunCmd = &cobra.Command{
	Use:   "run <suite>",
	Short: "Run a verification suite and print the pass/fail report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadConfig()
		if err != nil {
			return err
		}
		settings, err := doc.Settings()
		if err != nil {
			return err
		}
		s, err := settings.Registry.Build(args[0], settings.Env)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sup := supervisor.New()
		defer sup.StopAll()

		log := common.GetLogger().WithSuite(s.Name)
		rec := metrics.New(s.Name)
		opts := append(s.RunnerOptions(sup),
			runner.WithLogger(log),
			runner.WithObserver(rec.Observe),
		)
		var bar *report.Progress
		if runProgress && !runJSON {
			total := len(s.Steps)
			if s.Service != nil {
				total++
			}
			bar = report.NewProgress(cmd.ErrOrStderr(), total, runNoColor)
			opts = append(opts, runner.WithObserver(bar.Observe))
		}
		rs, runErr := runner.New(opts...).Run(ctx, s.Steps)
		if bar != nil {
			_ = bar.Finish()
		}
		if rs == nil {
			return runErr
		}

		summary := report.Aggregate(rs.Outcomes())
		summary.Suite = s.Name
		summary.Elapsed = rs.Elapsed()
		rec.Finish(summary.Passed, summary.Total, rs.FinishedAt)

		out := cmd.OutOrStdout()
		if runJSON {
			err = report.RenderJSON(out, summary)
		} else {
			err = report.Render(out, summary, report.Options{NoColor: runNoColor, Details: runDetails})
		}
		if err != nil {
			return err
		}

		if path := settings.MetricsTextfile; path != "" {
			if err := rec.WriteTextfile(path); err != nil {
				log.Warn("failed to write metrics textfile", "path", path, "error", err)
			}
		}
		saveHistory(ctx, settings, s.Name, rs)

		if runErr != nil {
			if errors.Is(runErr, runner.ErrStartupFault) {
				log.Error("managed service did not start", "error", runErr)
			}
			return &ExitError{Code: 1, Err: runErr}
		}
		if settings.Strict && !summary.Healthy {
			return &ExitError{Code: 1}
		}
		return nil
	},
}

// saveHistory records the run. History is best effort: failures are logged
// and never change the exit status.
func saveHistory(ctx context.Context, settings *config.Settings, suiteName string, rs *runner.ResultSet) {
	if settings.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	log := common.GetLogger().WithStore(settings.Store.Driver)
	st, err := store.Open(ctx, *settings.Store)
	if err != nil {
		log.Warn("history store unavailable", "error", err)
		return
	}
	defer func() { _ = st.Close() }()

	id, err := st.SaveRun(ctx, suiteName, rs)
	if err != nil {
		log.Warn("failed to save run history", "error", err)
		return
	}
	log.Debug("run saved", "run_id", id)

	if settings.HistoryKeep > 0 {
		n, err := st.Prune(ctx, settings.HistoryKeep)
		if err != nil {
			log.Warn("failed to prune run history", "error", err)
			return
		}
		if n > 0 {
			log.Debug("pruned run history", "removed", n, "keep", settings.HistoryKeep)
		}
	}
}

func init() {
	RunCmd.Flags().BoolVar(&runJSON, "json", false, "print the summary as JSON")
	RunCmd.Flags().BoolVar(&runNoColor, "no-color", false, "disable colored output")
	RunCmd.Flags().BoolVar(&runDetails, "details", false, "print each step's detail")
	RunCmd.Flags().BoolVar(&runProgress, "progress", false, "draw a progress bar on stderr while steps run")
}
