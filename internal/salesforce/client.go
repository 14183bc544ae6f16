package salesforce

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/connerr"
	"github.com/sleroy/komea-salesforce-connector/internal/model"
	"github.com/sleroy/komea-salesforce-connector/internal/rest"
)

const ServiceName = "salesforce"

const reportListQuery = "SELECT Id, Name FROM Report"

// Client talks to the Salesforce REST API. Every call after Authenticate
// uses the session token against the session instance URL.
type Client struct {
	cfg       config.SalesforceConfig
	transport rest.Transport
}

func NewClient(cfg config.SalesforceConfig, t rest.Transport) *Client {
	return &Client{cfg: cfg, transport: t}
}

// Authenticate runs the OAuth2 username-password flow. Salesforce expects
// the security token appended to the password.
func (c *Client) Authenticate(ctx context.Context) rest.Result[model.SessionProof] {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password+c.cfg.Token)

	resp := c.transport.Execute(ctx, &rest.Request{
		Method: http.MethodPost,
		URL:    rest.JoinURL(c.cfg.LoginURL, "/services/oauth2/token"),
		Form:   form,
	})
	token, err := rest.Normalize[model.Token]("salesforce.authenticate", resp).Unwrap()
	if err != nil {
		return rest.Fail[model.SessionProof](err)
	}
	if token.AccessToken == "" {
		return rest.Fail[model.SessionProof](connerr.New(connerr.KindDecode, "salesforce.authenticate", errors.New("no access token in answer")))
	}
	instance := token.InstanceURL
	if instance == "" {
		instance = c.cfg.LoginURL
	}
	log.Info().Str("instance", instance).Str("username", c.cfg.Username).Msg("Authenticated against Salesforce")
	return rest.Ok(model.SessionProof{
		Service:     ServiceName,
		Principal:   c.cfg.Username,
		Token:       token.AccessToken,
		InstanceURL: instance,
	})
}

func (c *Client) FastAuthenticate(ctx context.Context) (model.SessionProof, error) {
	proof, err := c.Authenticate(ctx).Unwrap()
	if err != nil {
		return model.SessionProof{}, connerr.New(connerr.KindAuthentication, "salesforce.fastAuthenticate", err)
	}
	return proof, nil
}

func (c *Client) dataPath(parts ...string) string {
	return "/services/data/v" + c.cfg.APIVersion + "/" + strings.Join(parts, "/")
}

func (c *Client) execute(ctx context.Context, session model.SessionProof, method, path string, query url.Values, body any) *rest.Response {
	return c.transport.Execute(ctx, &rest.Request{
		Method: method,
		URL:    rest.JoinURL(session.InstanceURL, path),
		Auth:   rest.BearerAuth{Token: session.Token},
		Query:  query,
		Body:   body,
	})
}

// Query runs a SOQL statement and returns the first batch of records.
func Query[T any](ctx context.Context, c *Client, session model.SessionProof, soql string) rest.Result[model.QueryResult[T]] {
	resp := c.execute(ctx, session, http.MethodGet, c.dataPath("query"), url.Values{"q": {soql}}, nil)
	return rest.Normalize[model.QueryResult[T]]("salesforce.query", resp)
}

// QueryMore follows the nextRecordsUrl of a previous batch.
func QueryMore[T any](ctx context.Context, c *Client, session model.SessionProof, nextRecordsURL string) rest.Result[model.QueryResult[T]] {
	resp := c.execute(ctx, session, http.MethodGet, nextRecordsURL, nil, nil)
	return rest.Normalize[model.QueryResult[T]]("salesforce.queryMore", resp)
}

func (c *Client) ListReports(ctx context.Context, session model.SessionProof) rest.Result[model.QueryResult[model.ReportRef]] {
	return Query[model.ReportRef](ctx, c, session, reportListQuery)
}

// ExecuteReport runs a report synchronously and returns its detail rows.
func (c *Client) ExecuteReport(ctx context.Context, session model.SessionProof, reportID string) rest.Result[model.ReportResult] {
	resp := c.execute(ctx, session, http.MethodGet, c.dataPath("analytics", "reports", url.PathEscape(reportID)),
		url.Values{"includeDetails": {"true"}}, nil)
	result := rest.Normalize[model.ReportResult]("salesforce.executeReport", resp)
	if err := result.Err(); err != nil {
		return rest.Fail[model.ReportResult](connerr.WithKey(err, reportID))
	}
	return result
}

// UpsertRecord creates a record of the given sobject type.
func (c *Client) UpsertRecord(ctx context.Context, session model.SessionProof, sobject string, fields map[string]any) rest.Result[model.SaveResult] {
	resp := c.execute(ctx, session, http.MethodPost, c.dataPath("sobjects", url.PathEscape(sobject)), nil, fields)
	return rest.Normalize[model.SaveResult]("salesforce.upsertRecord", resp)
}

func (c *Client) DeleteRecord(ctx context.Context, session model.SessionProof, sobject, id string) rest.Result[rest.Ack] {
	resp := c.execute(ctx, session, http.MethodDelete, c.dataPath("sobjects", url.PathEscape(sobject), url.PathEscape(id)), nil, nil)
	result := rest.Normalize[rest.Ack]("salesforce.deleteRecord", resp)
	if err := result.Err(); err != nil {
		return rest.Fail[rest.Ack](connerr.WithKey(err, id))
	}
	return result
}

// MoreReports fetches the report batch following a ListReports answer.
func (c *Client) MoreReports(ctx context.Context, session model.SessionProof, nextRecordsURL string) rest.Result[model.QueryResult[model.ReportRef]] {
	return QueryMore[model.ReportRef](ctx, c, session, nextRecordsURL)
}
