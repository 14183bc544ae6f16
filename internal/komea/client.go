package komea

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/connerr"
	"github.com/sleroy/komea-salesforce-connector/internal/mapper"
	"github.com/sleroy/komea-salesforce-connector/internal/model"
	"github.com/sleroy/komea-salesforce-connector/internal/rest"
)

const ServiceName = "komea"

const (
	pathGetAllMetrics = "/metrics-request/getAllMetrics"
	pathSaveMetric    = "/metrics-storage/saveMetric"
	pathSaveMetrics   = "/metrics-storage/saveMetrics"
	pathDeleteMetrics = "/metrics-storage/deleteMetrics"
	pathSaveEntities  = "/entities-storage/saveEntities"
	pathPush          = "/timeserie/push"
)

// Client wraps the Komea metric and storage APIs. Whether an endpoint takes
// a single object or an array is fixed per operation.
type Client struct {
	cfg       config.KomeaConfig
	transport rest.Transport
}

func NewClient(cfg config.KomeaConfig, t rest.Transport) *Client {
	return &Client{cfg: cfg, transport: t}
}

func (c *Client) auth() rest.Auth {
	return rest.BasicAuth{Username: c.cfg.Login, Password: c.cfg.Password}
}

func (c *Client) get(ctx context.Context, base, path string) *rest.Response {
	return c.transport.Execute(ctx, &rest.Request{
		Method: http.MethodGet,
		URL:    rest.JoinURL(base, path),
		Auth:   c.auth(),
	})
}

func (c *Client) post(ctx context.Context, base, path string, body any) *rest.Response {
	return c.transport.Execute(ctx, &rest.Request{
		Method: http.MethodPost,
		URL:    rest.JoinURL(base, path),
		Auth:   c.auth(),
		Body:   body,
	})
}

// Authenticate proves the credentials with a listing call, Komea having no
// dedicated login endpoint.
func (c *Client) Authenticate(ctx context.Context) rest.Result[model.SessionProof] {
	ack := rest.Normalize[rest.Ack]("komea.authenticate", c.get(ctx, c.cfg.MetricURL, pathGetAllMetrics))
	if err := ack.Err(); err != nil {
		return rest.Fail[model.SessionProof](err)
	}
	log.Info().Str("url", c.cfg.MetricURL).Str("login", c.cfg.Login).Msg("Authenticated against Komea")
	return rest.Ok(model.SessionProof{Service: ServiceName, Principal: c.cfg.Login})
}

func (c *Client) FastAuthenticate(ctx context.Context) (model.SessionProof, error) {
	proof, err := c.Authenticate(ctx).Unwrap()
	if err != nil {
		return model.SessionProof{}, connerr.New(connerr.KindAuthentication, "komea.fastAuthenticate", err)
	}
	return proof, nil
}

func (c *Client) GetAllMetrics(ctx context.Context) rest.Result[[]model.MetricDescriptor] {
	return rest.Normalize[[]model.MetricDescriptor]("komea.getAllMetrics", c.get(ctx, c.cfg.MetricURL, pathGetAllMetrics))
}

// SaveMetric creates or updates one metric definition.
func (c *Client) SaveMetric(ctx context.Context, metric model.MetricDescriptor) rest.Result[rest.Ack] {
	result := rest.Normalize[rest.Ack]("komea.saveMetric", c.post(ctx, c.cfg.MetricURL, pathSaveMetric, metric))
	return keyed(result, metric.Key)
}

func (c *Client) SaveMetrics(ctx context.Context, metrics []model.MetricDescriptor) rest.Result[rest.Ack] {
	return rest.Normalize[rest.Ack]("komea.saveMetrics", c.post(ctx, c.cfg.MetricURL, pathSaveMetrics, nonNil(metrics)))
}

// DeleteMetrics removes the metric definitions with the given keys.
func (c *Client) DeleteMetrics(ctx context.Context, keys []string) rest.Result[rest.Ack] {
	return rest.Normalize[rest.Ack]("komea.deleteMetrics", c.post(ctx, c.cfg.MetricURL, pathDeleteMetrics, nonNil(keys)))
}

func (c *Client) SaveEntities(ctx context.Context, entities []model.EntityDescriptor) rest.Result[rest.Ack] {
	return rest.Normalize[rest.Ack]("komea.saveEntities", c.post(ctx, c.cfg.MetricURL, pathSaveEntities, nonNil(entities)))
}

// PushMeasurement sends one value of metricKey for the entity described by
// tags. A value that is not a finite number is rejected here and never
// reaches the server.
func (c *Client) PushMeasurement(ctx context.Context, at time.Time, metricKey string, tags map[string]string, raw any) rest.Result[rest.Ack] {
	point, err := mapper.BuildTimeSeriesPoint(at, metricKey, tags, raw)
	if err != nil {
		log.Warn().Err(err).Str("metric", metricKey).Interface("value", raw).Str("entity", tags["entity"]).Msg("Measure rejected, not pushed")
		return rest.Fail[rest.Ack](err)
	}
	result := rest.Normalize[rest.Ack]("komea.pushMeasurement", c.post(ctx, c.cfg.StorageURL, pathPush, []model.TimeSeriesPoint{point}))
	return keyed(result, metricKey)
}

// PushPoints sends already validated points in one request.
func (c *Client) PushPoints(ctx context.Context, points []model.TimeSeriesPoint) rest.Result[rest.Ack] {
	return rest.Normalize[rest.Ack]("komea.pushPoints", c.post(ctx, c.cfg.StorageURL, pathPush, nonNil(points)))
}

func keyed(result rest.Result[rest.Ack], key string) rest.Result[rest.Ack] {
	if err := result.Err(); err != nil {
		return rest.Fail[rest.Ack](connerr.WithKey(err, key))
	}
	return result
}

// nonNil keeps array endpoints receiving [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
