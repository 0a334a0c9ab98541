package riverjobs

import (
	"fmt"

	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"
)

// RegisterExpireTemporaryPasswordsWorker registers the expiry worker into a River workers registry.
func RegisterExpireTemporaryPasswordsWorker(ws *river.Workers, w *ExpireTemporaryPasswordsWorker) {
	river.AddWorker(ws, w)
}

// AddExpireTemporaryPasswordsPeriodicJob enqueues the expiry job on a cron schedule.
// An empty cronSpec uses DefaultExpirySchedule.
func AddExpireTemporaryPasswordsPeriodicJob[T any](client *river.Client[T], cronSpec string, args ExpireTemporaryPasswordsArgs, runOnStart bool) error {
	if cronSpec == "" {
		cronSpec = DefaultExpirySchedule
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronSpec)
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", cronSpec, err)
	}
	if client == nil {
		return fmt.Errorf("river client not configured")
	}
	opts := args.InsertOpts()
	client.PeriodicJobs().Add(
		river.NewPeriodicJob(
			schedule,
			func() (river.JobArgs, *river.InsertOpts) { return args, &opts },
			&river.PeriodicJobOpts{RunOnStart: runOnStart},
		),
	)
	return nil
}
