package cron

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/twobot/pkg/config"
	"github.com/sipeed/twobot/pkg/cron"
)

func newListCommand(cfgFn func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cronListCmd(cmd.OutOrStdout(), cfgFn())
		},
	}
}

func cronListCmd(w io.Writer, cfg *config.Config) error {
	cs := cron.NewCronService(nil)
	if err := cs.LoadConfig(cfg.Schedules); err != nil {
		return err
	}

	jobs := cs.ListJobs()
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No scheduled jobs.")
		return nil
	}

	fmt.Fprintln(w, "\nScheduled Jobs:")
	fmt.Fprintln(w, "----------------")
	for _, job := range jobs {
		var schedule string
		if job.Schedule.Kind == cron.KindEvery && job.Schedule.EveryMS != nil {
			schedule = fmt.Sprintf("every %s", time.Duration(*job.Schedule.EveryMS)*time.Millisecond)
		} else {
			schedule = job.Schedule.Expr
		}

		target := "http"
		if job.SelfID != 0 {
			target = fmt.Sprintf("bot %d", job.SelfID)
		}

		fmt.Fprintf(w, "  %s\n", job.Name)
		fmt.Fprintf(w, "    Schedule: %s\n", schedule)
		fmt.Fprintf(w, "    Action: %s (%s)\n", job.Action, target)
		fmt.Fprintf(w, "    Next run: %s\n", job.State.NextRunAt.Format("2006-01-02 15:04"))
	}
	return nil
}
