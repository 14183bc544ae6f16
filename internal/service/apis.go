package service

import (
	"context"
	"time"

	"github.com/sleroy/komea-salesforce-connector/internal/model"
	"github.com/sleroy/komea-salesforce-connector/internal/rest"
)

// SonarAPI is the subset of the Sonar client the orchestration uses.
type SonarAPI interface {
	Authenticate(ctx context.Context) rest.Result[model.SessionProof]
	ValidateAuthentication(ctx context.Context) rest.Result[model.AuthValidation]
	SearchProjects(ctx context.Context, page, size int) rest.Result[model.ComponentPage]
	ListMetrics(ctx context.Context, page, size int) rest.Result[model.MetricPage]
	GetMeasures(ctx context.Context, componentKey string, metricKeys []string) rest.Result[model.ComponentMeasures]
}

type KomeaAPI interface {
	Authenticate(ctx context.Context) rest.Result[model.SessionProof]
	GetAllMetrics(ctx context.Context) rest.Result[[]model.MetricDescriptor]
	SaveMetric(ctx context.Context, metric model.MetricDescriptor) rest.Result[rest.Ack]
	DeleteMetrics(ctx context.Context, keys []string) rest.Result[rest.Ack]
	SaveEntities(ctx context.Context, entities []model.EntityDescriptor) rest.Result[rest.Ack]
	PushMeasurement(ctx context.Context, at time.Time, metricKey string, tags map[string]string, raw any) rest.Result[rest.Ack]
}

type SalesforceAPI interface {
	FastAuthenticate(ctx context.Context) (model.SessionProof, error)
	ListReports(ctx context.Context, session model.SessionProof) rest.Result[model.QueryResult[model.ReportRef]]
	MoreReports(ctx context.Context, session model.SessionProof, nextRecordsURL string) rest.Result[model.QueryResult[model.ReportRef]]
	ExecuteReport(ctx context.Context, session model.SessionProof, reportID string) rest.Result[model.ReportResult]
}

// MeasureRecorder receives every point Komea accepted, as a secondary copy.
type MeasureRecorder interface {
	Name() string
	Record(ctx context.Context, points []model.TimeSeriesPoint) error
}
