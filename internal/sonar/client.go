package sonar

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/connerr"
	"github.com/sleroy/komea-salesforce-connector/internal/model"
	"github.com/sleroy/komea-salesforce-connector/internal/rest"
)

const ServiceName = "sonar"

// Client wraps the Sonar web API. It issues one request per call and never
// loops over pages; callers drive pagination with the HasMore helpers.
type Client struct {
	cfg       config.SonarConfig
	transport rest.Transport
	baseURL   string
}

func NewClient(cfg config.SonarConfig, t rest.Transport) *Client {
	return &Client{cfg: cfg, transport: t, baseURL: BaseURL(cfg)}
}

// BaseURL builds the server root from the configured protocol, host and port.
func BaseURL(cfg config.SonarConfig) string {
	scheme := "http"
	if cfg.HTTPS {
		scheme = "https"
	}
	host := strings.TrimSuffix(cfg.Host, "/")
	if strings.Contains(host, "://") {
		return host
	}
	if cfg.Port > 0 {
		host = host + ":" + strconv.Itoa(cfg.Port)
	}
	return scheme + "://" + host
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) request(method, path string, query url.Values) *rest.Request {
	return &rest.Request{
		Method: method,
		URL:    rest.JoinURL(c.baseURL, path),
		Auth:   rest.BasicAuth{Username: c.cfg.Login, Password: c.cfg.Password},
		Query:  query,
	}
}

// Authenticate opens a session with the configured credentials and keeps
// the session cookies as proof.
func (c *Client) Authenticate(ctx context.Context) rest.Result[model.SessionProof] {
	query := url.Values{}
	query.Set("login", c.cfg.Login)
	query.Set("password", c.cfg.Password)

	resp := c.transport.Execute(ctx, c.request(http.MethodPost, "/api/authentication/login", query))
	ack := rest.Normalize[rest.Ack]("sonar.authenticate", resp)
	if err := ack.Err(); err != nil {
		return rest.Fail[model.SessionProof](err)
	}
	log.Info().Str("url", c.baseURL).Str("login", c.cfg.Login).Msg("Authenticated against Sonar")
	return rest.Ok(model.SessionProof{
		Service:   ServiceName,
		Principal: c.cfg.Login,
		Cookies:   resp.Cookies,
	})
}

func (c *Client) ValidateAuthentication(ctx context.Context) rest.Result[model.AuthValidation] {
	resp := c.transport.Execute(ctx, c.request(http.MethodGet, "/api/authentication/validate", nil))
	return rest.Normalize[model.AuthValidation]("sonar.validateAuthentication", resp)
}

// FastAuthenticate logs in and checks that the credentials are accepted.
// Any failure is returned as an authentication error meant to stop the run.
func (c *Client) FastAuthenticate(ctx context.Context) (model.SessionProof, error) {
	proof, err := c.Authenticate(ctx).Unwrap()
	if err != nil {
		return model.SessionProof{}, connerr.New(connerr.KindAuthentication, "sonar.fastAuthenticate", err)
	}
	valid, err := c.ValidateAuthentication(ctx).Unwrap()
	if err != nil {
		return model.SessionProof{}, connerr.New(connerr.KindAuthentication, "sonar.fastAuthenticate", err)
	}
	if !valid.Valid {
		return model.SessionProof{}, connerr.New(connerr.KindAuthentication, "sonar.fastAuthenticate",
			fmt.Errorf("credentials of %q rejected by %s", c.cfg.Login, c.baseURL))
	}
	return proof, nil
}

func (c *Client) ListProjects(ctx context.Context) rest.Result[[]model.Project] {
	resp := c.transport.Execute(ctx, c.request(http.MethodGet, "/api/projects/index", nil))
	return rest.Normalize[[]model.Project]("sonar.listProjects", resp)
}

// SearchProjects returns one page of project components.
func (c *Client) SearchProjects(ctx context.Context, page, size int) rest.Result[model.ComponentPage] {
	query := pageQuery(page, size)
	query.Set("qualifiers", "TRK")
	resp := c.transport.Execute(ctx, c.request(http.MethodGet, "/api/components/search", query))
	return rest.Normalize[model.ComponentPage]("sonar.searchProjects", resp)
}

func (c *Client) ListMetrics(ctx context.Context, page, size int) rest.Result[model.MetricPage] {
	resp := c.transport.Execute(ctx, c.request(http.MethodGet, "/api/metrics/search", pageQuery(page, size)))
	return rest.Normalize[model.MetricPage]("sonar.listMetrics", resp)
}

// GetMeasures returns the current values of metricKeys for one component.
func (c *Client) GetMeasures(ctx context.Context, componentKey string, metricKeys []string) rest.Result[model.ComponentMeasures] {
	query := url.Values{}
	query.Set("component", componentKey)
	query.Set("metricKeys", strings.Join(metricKeys, ","))
	resp := c.transport.Execute(ctx, c.request(http.MethodGet, "/api/measures/component", query))
	result := rest.Normalize[model.ComponentMeasures]("sonar.getMeasures", resp)
	if err := result.Err(); err != nil {
		return rest.Fail[model.ComponentMeasures](connerr.WithKey(err, componentKey))
	}
	return result
}

func pageQuery(page, size int) url.Values {
	query := url.Values{}
	if page > 0 {
		query.Set("p", strconv.Itoa(page))
	}
	if size > 0 {
		query.Set("ps", strconv.Itoa(size))
	}
	return query
}
