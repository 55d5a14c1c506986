package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantgrid/oppscan/internal/scheduler"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run scheduled scans",
	Long: `Starts the cron scheduler with the full scan and event scan jobs
from the rules file. A job firing while a scan is still running is
skipped, not queued.

Example:
  go run ./cmd/oppscan scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := buildApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	location, err := time.LoadLocation(a.rules.Schedules.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	sched := scheduler.New(location, a.log)

	if a.rules.Schedules.FullScanCron != "" {
		if err := sched.AddJob(scheduler.NewFullScanJob(a.rules.Schedules.FullScanCron, a.runner)); err != nil {
			return err
		}
	}
	if a.rules.Schedules.EventScanCron != "" {
		if err := sched.AddJob(scheduler.NewEventScanJob(a.rules.Schedules.EventScanCron, a.runner)); err != nil {
			return err
		}
	}

	sched.Start()
	fmt.Println("Scheduler running, press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}
