package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/scheduler"
	"github.com/sleroy/komea-salesforce-connector/internal/service"
)

type fakeService struct {
	service.SonarKomeaService
	pushedAt []time.Time
}

func (f *fakeService) PushMeasurements(_ context.Context, at time.Time) *service.BatchReport {
	f.pushedAt = append(f.pushedAt, at)
	return &service.BatchReport{}
}

func TestParser(t *testing.T) {
	sched, err := scheduler.Parser.Parse("0 0 2 * * *")
	require.NoError(t, err)
	from := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 20, 2, 0, 0, 0, time.UTC), sched.Next(from))

	_, err = scheduler.Parser.Parse("@every 1h")
	assert.NoError(t, err)
}

func TestPushJob_UsesCurrentTime(t *testing.T) {
	svc := &fakeService{}
	now := time.Date(2026, 10, 19, 4, 0, 0, 0, time.FixedZone("CEST", 7200))

	scheduler.PushJob(svc, func() time.Time { return now })()

	require.Len(t, svc.pushedAt, 1)
	assert.True(t, now.Equal(svc.pushedAt[0]))
	assert.Equal(t, time.UTC, svc.pushedAt[0].Location())
}

func TestNewScheduler(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	c, err := scheduler.NewScheduler(lc, &config.Config{Schedule: config.ScheduleConfig{Cron: "0 */5 * * * *"}}, &fakeService{})
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)
	lc.RequireStart()
	lc.RequireStop()

	_, err = scheduler.NewScheduler(fxtest.NewLifecycle(t), &config.Config{Schedule: config.ScheduleConfig{Cron: "not a cron"}}, &fakeService{})
	assert.Error(t, err)
}
