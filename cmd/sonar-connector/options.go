package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/logging"
	"github.com/sleroy/komea-salesforce-connector/internal/scheduler"
	"github.com/sleroy/komea-salesforce-connector/internal/service"
	"github.com/sleroy/komea-salesforce-connector/internal/util"
)

type action string

const (
	actionTest               action = "test"
	actionProjectList        action = "project-list"
	actionMetricList         action = "metric-list"
	actionDeleteMetrics      action = "delete-metrics"
	actionPush               action = "push"
	actionUpdateMetrics      action = "update-metrics"
	actionUpdateOrganization action = "update-organization"
	actionCSV                action = "csv"
	actionSchedule           action = "schedule"
)

type options struct {
	configPath string
	date       string

	test               bool
	projectList        bool
	metricList         bool
	deleteMetrics      bool
	push               bool
	updateMetrics      bool
	updateOrganization bool
	csvFile            string
	schedule           bool

	action action
	at     time.Time
}

func (o *options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "Configuration file, ./config/default.yaml when empty")
	fs.BoolVarP(&o.test, "test", "t", false, "Test the connection with Sonar and Komea")
	fs.BoolVarP(&o.projectList, "project-list", "l", false, "Prints the list of projects")
	fs.BoolVarP(&o.metricList, "metric-list", "m", false, "Prints the list of metrics")
	fs.BoolVarP(&o.deleteMetrics, "delete-metrics", "d", false, "Delete the Sonar metrics from Komea")
	fs.BoolVarP(&o.push, "push", "p", false, "Push the measures to Komea")
	fs.BoolVarP(&o.updateMetrics, "update-metrics", "u", false, "Create or update the Sonar metrics in Komea")
	fs.BoolVarP(&o.updateOrganization, "update-organization", "o", false, "Register the Sonar projects as Komea entities")
	fs.StringVarP(&o.csvFile, "csv", "c", "", "Write the measures of every project into a CSV file")
	fs.StringVar(&o.date, "date", "", "Date of the pushed measures (RFC3339, YYYY-MM-DD or epoch ms), now when empty")
	fs.BoolVar(&o.schedule, "schedule", false, "Push the measures periodically using schedule.cron")
}

// Complete checks that exactly one action was selected.
func (o *options) Complete() error {
	selected := map[action]bool{
		actionTest:               o.test,
		actionProjectList:        o.projectList,
		actionMetricList:         o.metricList,
		actionDeleteMetrics:      o.deleteMetrics,
		actionPush:               o.push,
		actionUpdateMetrics:      o.updateMetrics,
		actionUpdateOrganization: o.updateOrganization,
		actionCSV:                o.csvFile != "",
		actionSchedule:           o.schedule,
	}
	var chosen []string
	for a, on := range selected {
		if on {
			o.action = a
			chosen = append(chosen, string(a))
		}
	}
	switch len(chosen) {
	case 0:
		return errors.New("no action selected, use --help to list them")
	case 1:
	default:
		return fmt.Errorf("only one action can be run at a time, got %s", strings.Join(chosen, ", "))
	}

	at, err := util.MeasureTime(o.date, time.Now)
	if err != nil {
		return err
	}
	o.at = at
	return nil
}

func (o *options) Run(ctx context.Context, out io.Writer) error {
	cfg, err := config.NewConfig(o.configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Str("action", string(o.action)).Msg("You have chosen the action")

	if o.action == actionSchedule {
		return runSchedule(cfg)
	}

	var svc service.SonarKomeaService
	app := fx.New(appOptions(cfg), fx.Populate(&svc), fx.NopLogger)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			log.Error().Err(err).Msg("Forced shutdown due to error or timeout")
		}
	}()

	return o.runOnce(ctx, out, svc)
}

func (o *options) runOnce(ctx context.Context, out io.Writer, svc service.SonarKomeaService) error {
	switch o.action {
	case actionTest:
		return svc.TestConnection(ctx)
	case actionProjectList:
		projects, err := svc.ListProjects(ctx)
		if err != nil {
			return err
		}
		for _, p := range projects {
			fmt.Fprintf(out, "%s : %s\n", p.Key, p.Name)
		}
		return nil
	case actionMetricList:
		metrics, err := svc.ListMetrics(ctx)
		if err != nil {
			return err
		}
		for _, m := range metrics {
			fmt.Fprintf(out, "%s : %s (%s)\n", m.Key, m.Name, m.Type)
		}
		return nil
	case actionDeleteMetrics:
		return reportError(svc.DeleteMetrics(ctx))
	case actionPush:
		return reportError(svc.PushMeasurements(ctx, o.at))
	case actionUpdateMetrics:
		return reportError(svc.UpdateMetrics(ctx))
	case actionUpdateOrganization:
		return reportError(svc.UpdateOrganization(ctx))
	case actionCSV:
		return reportError(svc.GenerateCSVFile(ctx, o.csvFile))
	}
	return fmt.Errorf("unknown action %q", o.action)
}

// reportError fails the run when an item could not be processed. Rejected
// values alone only produce warnings.
func reportError(report *service.BatchReport) error {
	if report.HasFailures() {
		return fmt.Errorf("%s: %d of %d items failed: %w", report.Operation, report.Failed, report.Total, report.Err())
	}
	return nil
}

func runSchedule(cfg *config.Config) error {
	app := fx.New(
		appOptions(cfg),
		fx.Invoke(registerScheduler),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	<-app.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	log.Info().Msg("Shutting down scheduler...")
	return app.Stop(stopCtx)
}

func registerScheduler(lc fx.Lifecycle, cfg *config.Config, svc service.SonarKomeaService) error {
	_, err := scheduler.NewScheduler(lc, cfg, svc)
	return err
}
