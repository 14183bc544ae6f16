package service

import (
	"context"
	"fmt"

	"github.com/sleroy/komea-salesforce-connector/internal/csvexport"
	"github.com/sleroy/komea-salesforce-connector/internal/model"
	"github.com/sleroy/komea-salesforce-connector/internal/pool"
)

// CSVHeader names the columns of the measure export.
var CSVHeader = []string{"component_id", "component_key", "component_name", "qualifier", "metric", "value"}

// CSVWriter buffers rows; nothing is known to be written before Flush
// succeeds.
type CSVWriter interface {
	Write(record ...string) error
	Flush() error
}

type projectMeasures struct {
	project  model.Project
	measures model.ComponentMeasures
	err      error
}

// GenerateCSV writes one row per (component, metric) pair of every project.
// A project whose measures cannot be fetched is counted as failed and
// skipped. Rows only count as succeeded once the writer is flushed.
func (s *sonarKomeaService) GenerateCSV(ctx context.Context, w CSVWriter) *BatchReport {
	report := newReport("generate-csv")
	s.exportCSV(ctx, w, report)
	report.Log()
	return report
}

// exportCSV reports whether the rows were flushed to w.
func (s *sonarKomeaService) exportCSV(ctx context.Context, w CSVWriter, report *BatchReport) bool {
	logger := report.logger()

	projects, err := s.ListProjects(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Cannot obtain the list of projects")
		report.fail(1, err)
		return false
	}
	metrics, err := s.eligibleMetrics(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Cannot obtain the list of metrics")
		report.fail(1, err)
		return false
	}
	names := make(map[string]string, len(metrics))
	metricKeys := make([]string, 0, len(metrics))
	for _, m := range metrics {
		names[m.Key] = m.Name
		metricKeys = append(metricKeys, m.Key)
	}

	if err := w.Write(CSVHeader...); err != nil {
		logger.Error().Err(err).Msg("Cannot write the CSV header")
		report.fail(1, fmt.Errorf("write csv header: %w", err))
		return false
	}

	var fetched []projectMeasures
	if len(metricKeys) > 0 {
		fetched = pool.Map(ctx, s.workers, projects, func(ctx context.Context, p model.Project) projectMeasures {
			measures, err := s.sonar.GetMeasures(ctx, p.Key, metricKeys).Unwrap()
			return projectMeasures{project: p, measures: measures, err: err}
		})
	}

	written := 0
	for _, f := range fetched {
		if f.err != nil {
			logger.Error().Err(f.err).Str("project", f.project.Key).Msg("Cannot obtain the measures of the project")
			report.record(f.err)
			continue
		}
		c := f.measures.Component
		if c.ID == "" {
			c.ID = f.project.ID
		}
		for _, m := range c.Measures {
			name := names[m.Metric]
			if name == "" {
				name = m.Metric
			}
			if err := w.Write(c.ID, c.Key, c.Name, c.Qualifier, name, m.Value); err != nil {
				logger.Error().Err(err).Str("project", c.Key).Str("metric", m.Metric).Msg("Cannot write the CSV row")
				report.record(err)
				continue
			}
			written++
		}
	}

	if err := w.Flush(); err != nil {
		logger.Error().Err(err).Int("rows", written).Msg("Cannot flush the CSV rows")
		report.fail(max(written, 1), fmt.Errorf("flush csv: %w", err))
		return false
	}
	for i := 0; i < written; i++ {
		report.succeed()
	}
	return true
}

// GenerateCSVFile exports to path. The file is closed whatever happens and
// a failed close fails the rows written to it.
func (s *sonarKomeaService) GenerateCSVFile(ctx context.Context, path string) *BatchReport {
	report := newReport("generate-csv")
	logger := report.logger().With().Str("path", path).Logger()

	w, err := csvexport.Create(path)
	if err != nil {
		logger.Error().Err(err).Msg("Cannot create the CSV file")
		report.fail(1, err)
		report.Log()
		return report
	}
	flushed := s.exportCSV(ctx, w, report)
	if err := w.Close(); err != nil {
		logger.Error().Err(err).Msg("Cannot close the CSV file")
		err = fmt.Errorf("close %s: %w", path, err)
		if flushed {
			report.failSucceeded(err)
		} else {
			report.note(err)
		}
	}
	report.Log()
	return report
}
