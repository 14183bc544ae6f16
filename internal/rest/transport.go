package rest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/parnurzeal/gorequest"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const DefaultTimeout = 30 * time.Second

// Auth decorates an outgoing request with credentials.
type Auth interface {
	apply(agent *gorequest.SuperAgent) *gorequest.SuperAgent
}

type BasicAuth struct {
	Username string
	Password string
}

func (a BasicAuth) apply(agent *gorequest.SuperAgent) *gorequest.SuperAgent {
	if a.Username == "" && a.Password == "" {
		return agent
	}
	return agent.SetBasicAuth(a.Username, a.Password)
}

type BearerAuth struct {
	Token string
}

func (a BearerAuth) apply(agent *gorequest.SuperAgent) *gorequest.SuperAgent {
	if a.Token == "" {
		return agent
	}
	return agent.Set("Authorization", "Bearer "+a.Token)
}

// Request is built fresh for every call and discarded afterwards. Body is
// sent as JSON, Form as application/x-www-form-urlencoded; at most one of
// them is set.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Auth    Auth
	Query   url.Values
	Form    url.Values
	Body    any
}

// Response is the raw outcome of one request. ErrorDetail is set when the
// request never produced an HTTP answer.
type Response struct {
	StatusOK    bool
	StatusCode  int
	Body        []byte
	Cookies     []*http.Cookie
	ErrorDetail string
}

// Transport issues exactly one request per Execute call. It never retries.
type Transport interface {
	Execute(ctx context.Context, req *Request) *Response
}

type Options struct {
	// Timeout bounds a single request. Zero means DefaultTimeout.
	Timeout time.Duration
	// InsecureTLS disables certificate verification for this transport only.
	InsecureTLS bool
	// RateLimit in requests per second, zero disables limiting.
	RateLimit float64
	RateBurst int
	Debug     bool
}

type restTransport struct {
	opts    Options
	limiter *rate.Limiter
}

func NewTransport(opts Options) Transport {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	t := &restTransport{opts: opts}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	if opts.InsecureTLS {
		log.Warn().Msg("TLS certificate verification disabled for this client")
	}
	return t
}

func (t *restTransport) Execute(ctx context.Context, req *Request) *Response {
	if err := ctx.Err(); err != nil {
		return transportFailure(err)
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return transportFailure(fmt.Errorf("rate limiter: %w", err))
		}
	}

	timeout := t.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return transportFailure(context.DeadlineExceeded)
	}

	// The method must be set first: gorequest resets the agent state on it.
	agent := gorequest.New().CustomMethod(req.Method, req.URL).
		Timeout(timeout).
		SetDebug(t.opts.Debug)
	if t.opts.InsecureTLS {
		agent = agent.TLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	agent = agent.Set("Accept", "application/json")
	for k, v := range req.Headers {
		agent = agent.Set(k, v)
	}
	if req.Auth != nil {
		agent = req.Auth.apply(agent)
	}
	if len(req.Query) > 0 {
		agent = agent.Query(req.Query.Encode())
	}

	switch {
	case req.Form != nil:
		agent = agent.Type(gorequest.TypeForm).Send(req.Form.Encode())
	case req.Body != nil:
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return transportFailure(fmt.Errorf("marshal body: %w", err))
		}
		agent = agent.Type(gorequest.TypeJSON).Send(string(payload))
	}

	start := time.Now()
	resp, body, errs := agent.EndBytes()
	if len(errs) > 0 {
		detail := joinErrors(errs)
		log.Debug().Str("method", req.Method).Str("url", req.URL).Str("error", detail).Msg("Request failed before an HTTP answer")
		return &Response{ErrorDetail: detail}
	}

	// gorequest.Response is a defined pointer type, methods need the conversion.
	httpResp := (*http.Response)(resp)
	out := &Response{
		StatusCode: httpResp.StatusCode,
		StatusOK:   httpResp.StatusCode >= 200 && httpResp.StatusCode < 300,
		Body:       body,
		Cookies:    httpResp.Cookies(),
	}
	log.Debug().
		Str("method", req.Method).
		Str("url", req.URL).
		Int("status", out.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Request completed")
	return out
}

func transportFailure(err error) *Response {
	return &Response{ErrorDetail: err.Error()}
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	return strings.Join(parts, "; ")
}

// JoinURL appends path to base with exactly one separating slash.
func JoinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
