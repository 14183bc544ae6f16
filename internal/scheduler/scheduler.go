package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/service"
)

// Parser accepts a leading seconds field.
var Parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.DowOptional | cron.Descriptor)

// NewScheduler registers the periodic measure push. Runs that would start
// while the previous one is still going are skipped.
func NewScheduler(lc fx.Lifecycle, cfg *config.Config, svc service.SonarKomeaService) (*cron.Cron, error) {
	c := cron.New(cron.WithParser(Parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	schedule := cfg.Schedule.Cron
	if _, err := c.AddFunc(schedule, PushJob(svc, time.Now)); err != nil {
		log.Error().Err(err).Str("schedule", schedule).Msg("Failed to add cron job")
		return nil, err
	}
	log.Info().Str("schedule", schedule).Msg("Scheduled measure push job")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msg("Starting cron scheduler")
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Stopping cron scheduler...")
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
				log.Info().Msg("Cron scheduler stopped gracefully.")
				return nil
			case <-ctx.Done():
				log.Error().Msg("Context cancelled while waiting for cron scheduler to stop.")
				return ctx.Err()
			}
		},
	})

	return c, nil
}

// PushJob returns the cron job pushing the measures stamped with now().
func PushJob(svc service.SonarKomeaService, now func() time.Time) func() {
	return func() {
		report := svc.PushMeasurements(context.Background(), now().UTC())
		if report.HasFailures() {
			log.Error().Err(report.Err()).Str("run_id", report.RunID).Msg("Error during scheduled measure push")
		}
	}
}
