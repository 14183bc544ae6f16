package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/connerr"
	"github.com/sleroy/komea-salesforce-connector/internal/mapper"
	"github.com/sleroy/komea-salesforce-connector/internal/model"
	"github.com/sleroy/komea-salesforce-connector/internal/pool"
)

// PageSize is the number of records requested per Sonar page.
const PageSize = 100

// maxPages stops a listing whose paging never ends.
const maxPages = 1000

var ErrRunInProgress = errors.New("a push is already running")

type SonarKomeaService interface {
	TestConnection(ctx context.Context) error
	ListProjects(ctx context.Context) ([]model.Project, error)
	ListMetrics(ctx context.Context) ([]model.Metric, error)
	UpdateMetrics(ctx context.Context) *BatchReport
	DeleteMetrics(ctx context.Context) *BatchReport
	UpdateOrganization(ctx context.Context) *BatchReport
	PushMeasurements(ctx context.Context, at time.Time) *BatchReport
	GenerateCSV(ctx context.Context, w CSVWriter) *BatchReport
	GenerateCSVFile(ctx context.Context, path string) *BatchReport
}

type sonarKomeaService struct {
	sonar     SonarAPI
	komea     KomeaAPI
	recorders []MeasureRecorder
	workers   int
	excluded  map[string]struct{}
	pushLock  sync.Mutex
}

func NewSonarKomeaService(cfg *config.Config, sonarAPI SonarAPI, komeaAPI KomeaAPI, recorders []MeasureRecorder) SonarKomeaService {
	excluded := cfg.Mapper.ExcludedTypes
	if len(excluded) == 0 {
		excluded = mapper.DefaultExcludedTypes
	}
	return &sonarKomeaService{
		sonar:     sonarAPI,
		komea:     komeaAPI,
		recorders: recorders,
		workers:   cfg.Pool.Workers,
		excluded:  mapper.ExcludedSet(excluded...),
	}
}

func (s *sonarKomeaService) TestConnection(ctx context.Context) error {
	if _, err := s.sonar.Authenticate(ctx).Unwrap(); err != nil {
		return connerr.New(connerr.KindAuthentication, "testConnection.sonar", err)
	}
	valid, err := s.sonar.ValidateAuthentication(ctx).Unwrap()
	if err != nil {
		return connerr.New(connerr.KindAuthentication, "testConnection.sonar", err)
	}
	if !valid.Valid {
		return connerr.New(connerr.KindAuthentication, "testConnection.sonar", errors.New("credentials rejected"))
	}
	log.Info().Msg("Connection to Sonar succeed")

	if _, err := s.komea.Authenticate(ctx).Unwrap(); err != nil {
		return connerr.New(connerr.KindAuthentication, "testConnection.komea", err)
	}
	log.Info().Msg("Connection to Komea succeed")
	return nil
}

func (s *sonarKomeaService) ListProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	for page := 1; page <= maxPages; page++ {
		result, err := s.sonar.SearchProjects(ctx, page, PageSize).Unwrap()
		if err != nil {
			return nil, fmt.Errorf("list projects page %d: %w", page, err)
		}
		for _, c := range result.Components {
			projects = append(projects, c.Project())
		}
		if !result.HasMore() || len(result.Components) == 0 {
			break
		}
	}
	log.Debug().Int("count", len(projects)).Msg("Listed Sonar projects")
	return projects, nil
}

func (s *sonarKomeaService) ListMetrics(ctx context.Context) ([]model.Metric, error) {
	var metrics []model.Metric
	for page := 1; page <= maxPages; page++ {
		result, err := s.sonar.ListMetrics(ctx, page, PageSize).Unwrap()
		if err != nil {
			return nil, fmt.Errorf("list metrics page %d: %w", page, err)
		}
		metrics = append(metrics, result.Metrics...)
		if !result.HasMore() || len(result.Metrics) == 0 {
			break
		}
	}
	log.Debug().Int("count", len(metrics)).Msg("Listed Sonar metrics")
	return metrics, nil
}

func (s *sonarKomeaService) eligibleMetrics(ctx context.Context) ([]model.Metric, error) {
	metrics, err := s.ListMetrics(ctx)
	if err != nil {
		return nil, err
	}
	return mapper.FilterEligible(metrics, s.excluded), nil
}

// UpdateMetrics declares every eligible Sonar metric in Komea, one request
// per metric.
func (s *sonarKomeaService) UpdateMetrics(ctx context.Context) *BatchReport {
	report := newReport("update-metrics")
	logger := report.logger()

	metrics, err := s.eligibleMetrics(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Cannot obtain the list of metrics")
		report.fail(1, err)
		return report
	}

	descriptors := make([]model.MetricDescriptor, 0, len(metrics))
	for _, m := range metrics {
		d, err := mapper.BuildMetricDescriptor(m)
		if err != nil {
			logger.Warn().Err(err).Str("metric", m.Key).Msg("Malformed metric skipped")
			report.record(err)
			continue
		}
		descriptors = append(descriptors, d)
	}

	errs := pool.Map(ctx, s.workers, descriptors, func(ctx context.Context, d model.MetricDescriptor) error {
		return s.komea.SaveMetric(ctx, d).Err()
	})
	for i, err := range errs {
		if err != nil {
			logger.Error().Err(err).Str("metric", descriptors[i].Key).Msg("Metric not saved")
		}
		report.record(err)
	}
	report.Log()
	return report
}

// DeleteMetrics removes from Komea every metric this connector owns.
func (s *sonarKomeaService) DeleteMetrics(ctx context.Context) *BatchReport {
	report := newReport("delete-metrics")
	logger := report.logger()

	existing, err := s.komea.GetAllMetrics(ctx).Unwrap()
	if err != nil {
		logger.Error().Err(err).Msg("Cannot obtain the list of Komea metrics")
		report.fail(1, err)
		return report
	}

	var keys []string
	for _, m := range existing {
		if mapper.IsSourceMetric(m.Key) {
			keys = append(keys, m.Key)
		}
	}
	if len(keys) == 0 {
		logger.Info().Msg("No Sonar metric to delete")
		return report
	}

	if err := s.komea.DeleteMetrics(ctx, keys).Err(); err != nil {
		logger.Error().Err(err).Int("count", len(keys)).Msg("Metrics not deleted")
		report.fail(len(keys), err)
	} else {
		for range keys {
			report.succeed()
		}
	}
	report.Log()
	return report
}

// UpdateOrganization registers every Sonar project as a Komea entity.
func (s *sonarKomeaService) UpdateOrganization(ctx context.Context) *BatchReport {
	report := newReport("update-organization")
	logger := report.logger()

	projects, err := s.ListProjects(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Cannot obtain the list of projects")
		report.fail(1, err)
		return report
	}

	entities := make([]model.EntityDescriptor, 0, len(projects))
	for _, p := range projects {
		e, err := mapper.BuildEntityDescriptor(p)
		if err != nil {
			logger.Warn().Err(err).Str("project", p.Key).Msg("Malformed project skipped")
			report.record(err)
			continue
		}
		entities = append(entities, e)
	}
	if len(entities) == 0 {
		report.Log()
		return report
	}

	if err := s.komea.SaveEntities(ctx, entities).Err(); err != nil {
		logger.Error().Err(err).Int("count", len(entities)).Msg("Entities not saved")
		report.fail(len(entities), err)
	} else {
		for range entities {
			report.succeed()
		}
	}
	report.Log()
	return report
}

type pushItem struct {
	metricKey string
	raw       string
}

// PushMeasurements sends the current value of every eligible metric of
// every project, stamped with at. Projects are handled one after the
// other; the measures of a project are pushed concurrently and all of them
// complete before the next project starts. A failed item never stops the
// others. Overlapping calls are refused.
func (s *sonarKomeaService) PushMeasurements(ctx context.Context, at time.Time) *BatchReport {
	report := newReport("push-measurements")
	logger := report.logger()

	if !s.pushLock.TryLock() {
		logger.Warn().Msg("Measure push already in progress, skipping run")
		report.note(ErrRunInProgress)
		return report
	}
	defer s.pushLock.Unlock()

	start := time.Now()
	projects, err := s.ListProjects(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Cannot obtain the list of projects")
		report.fail(1, err)
		return report
	}
	metrics, err := s.eligibleMetrics(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Cannot obtain the list of metrics")
		report.fail(1, err)
		return report
	}
	metricKeys := make([]string, 0, len(metrics))
	for _, m := range metrics {
		metricKeys = append(metricKeys, m.Key)
	}
	if len(metricKeys) == 0 {
		logger.Warn().Msg("No eligible metric, nothing to push")
		return report
	}

	for _, project := range projects {
		if ctx.Err() != nil {
			report.fail(1, connerr.WithKey(ctx.Err(), project.Key))
			continue
		}
		report.Merge(s.pushProject(ctx, at, project, metricKeys))
	}

	logger.Info().Int("projects", len(projects)).Dur("duration", time.Since(start)).Msg("Measures pushed")
	report.Log()
	return report
}

func (s *sonarKomeaService) pushProject(ctx context.Context, at time.Time, project model.Project, metricKeys []string) *BatchReport {
	report := &BatchReport{}
	logger := log.With().Str("project", project.Key).Logger()

	measures, err := s.sonar.GetMeasures(ctx, project.Key, metricKeys).Unwrap()
	if err != nil {
		logger.Error().Err(err).Msg("Cannot obtain the measures of the project")
		report.fail(1, err)
		return report
	}

	items := make([]pushItem, 0, len(measures.Component.Measures))
	for _, m := range measures.Component.Measures {
		items = append(items, pushItem{metricKey: mapper.MetricKey(m.Metric), raw: m.Value})
	}
	tags := mapper.EntityTags(project.Key)

	errs := pool.Map(ctx, s.workers, items, func(ctx context.Context, item pushItem) error {
		return s.komea.PushMeasurement(ctx, at, item.metricKey, tags, item.raw).Err()
	})

	accepted := make([]model.TimeSeriesPoint, 0, len(items))
	for i, err := range errs {
		report.record(err)
		if err != nil {
			// Rejected values were already reported by the Komea client.
			if !connerr.IsKind(err, connerr.KindValidation) {
				logger.Error().Err(err).Str("metric", items[i].metricKey).Msg("Measure not pushed")
			}
			continue
		}
		point, buildErr := mapper.BuildTimeSeriesPoint(at, items[i].metricKey, tags, items[i].raw)
		if buildErr == nil {
			accepted = append(accepted, point)
		}
	}
	logger.Debug().Int("pushed", len(accepted)).Int("measures", len(items)).Msg("Project measures pushed")

	s.mirror(ctx, report, accepted)
	return report
}

func (s *sonarKomeaService) mirror(ctx context.Context, report *BatchReport, points []model.TimeSeriesPoint) {
	if len(points) == 0 {
		return
	}
	for _, r := range s.recorders {
		if err := r.Record(ctx, points); err != nil {
			log.Error().Err(err).Str("recorder", r.Name()).Int("points", len(points)).Msg("Measures not mirrored")
			report.note(fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
}
