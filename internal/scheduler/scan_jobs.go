package scheduler

import (
	"context"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/internal/pipeline"
)

// ScanJob runs the pipeline on a cron schedule with a fixed run type.
type ScanJob struct {
	name     string
	schedule string
	runType  contracts.RunType
	runner   *pipeline.Runner
}

// NewFullScanJob builds the end-of-day full scan job.
func NewFullScanJob(schedule string, runner *pipeline.Runner) *ScanJob {
	return &ScanJob{
		name:     "full_scan",
		schedule: schedule,
		runType:  contracts.RunTypeFullScan,
		runner:   runner,
	}
}

// NewEventScanJob builds the intraday event scan job.
func NewEventScanJob(schedule string, runner *pipeline.Runner) *ScanJob {
	return &ScanJob{
		name:     "event_scan",
		schedule: schedule,
		runType:  contracts.RunTypeEventScan,
		runner:   runner,
	}
}

func (j *ScanJob) Name() string     { return j.name }
func (j *ScanJob) Schedule() string { return j.schedule }

func (j *ScanJob) Run(ctx context.Context) error {
	_, err := j.runner.Run(ctx, j.runType)
	return err
}
