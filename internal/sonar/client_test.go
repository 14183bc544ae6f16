package sonar_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/connerr"
	"github.com/sleroy/komea-salesforce-connector/internal/rest"
	"github.com/sleroy/komea-salesforce-connector/internal/sonar"
)

func newClient(t *testing.T, handler http.HandlerFunc) *sonar.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	cfg := config.SonarConfig{Host: srv.URL, Login: "admin", Password: "secret"}
	return sonar.NewClient(cfg, rest.NewTransport(rest.Options{}))
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SonarConfig
		want string
	}{
		{"http with port", config.SonarConfig{Host: "sonar.local", Port: 9000}, "http://sonar.local:9000"},
		{"https without port", config.SonarConfig{Host: "sonar.local", HTTPS: true}, "https://sonar.local"},
		{"full url kept", config.SonarConfig{Host: "http://127.0.0.1:1234/", Port: 80}, "http://127.0.0.1:1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sonar.BaseURL(tt.cfg))
		})
	}
}

func TestAuthenticate_CapturesSession(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/authentication/login", r.URL.Path)
		assert.Equal(t, "admin", r.URL.Query().Get("login"))
		assert.Equal(t, "secret", r.URL.Query().Get("password"))
		http.SetCookie(w, &http.Cookie{Name: "JWT-SESSION", Value: "abc"})
		w.WriteHeader(http.StatusOK)
	})

	proof, err := c.Authenticate(context.Background()).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, "sonar", proof.Service)
	assert.Equal(t, "admin", proof.Principal)
	require.Len(t, proof.Cookies, 1)
	assert.Equal(t, "JWT-SESSION", proof.Cookies[0].Name)
}

func TestFastAuthenticate(t *testing.T) {
	valid := true
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/authentication/login":
			w.WriteHeader(http.StatusOK)
		case "/api/authentication/validate":
			if valid {
				_, _ = w.Write([]byte(`{"valid":true}`))
			} else {
				_, _ = w.Write([]byte(`{"valid":false}`))
			}
		}
	})

	_, err := c.FastAuthenticate(context.Background())
	require.NoError(t, err)

	valid = false
	_, err = c.FastAuthenticate(context.Background())
	require.Error(t, err)
	assert.True(t, connerr.IsKind(err, connerr.KindAuthentication))
}

func TestFastAuthenticate_RejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := sonar.NewClient(config.SonarConfig{Host: srv.URL, Login: "x"}, rest.NewTransport(rest.Options{}))
	_, err := c.FastAuthenticate(context.Background())
	require.Error(t, err)
	assert.True(t, connerr.IsKind(err, connerr.KindAuthentication))
	assert.True(t, connerr.IsKind(err, connerr.KindHTTPStatus))
}

func TestListProjects(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects/index", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"1","k":"ignored","key":"org:a","name":"A"},{"id":"2","key":"org:b","name":"B"}]`))
	})

	projects, err := c.ListProjects(context.Background()).Unwrap()
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "org:a", projects[0].Key)
	assert.Equal(t, "B", projects[1].Name)
}

func TestSearchProjects_Paging(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/components/search", r.URL.Path)
		assert.Equal(t, "TRK", r.URL.Query().Get("qualifiers"))
		assert.Equal(t, "2", r.URL.Query().Get("p"))
		assert.Equal(t, "50", r.URL.Query().Get("ps"))
		_, _ = w.Write([]byte(`{"paging":{"pageIndex":2,"pageSize":50,"total":120},"components":[{"id":"c1","key":"org:a","name":"A","qualifier":"TRK"}]}`))
	})

	page, err := c.SearchProjects(context.Background(), 2, 50).Unwrap()
	require.NoError(t, err)
	assert.True(t, page.HasMore())
	require.Len(t, page.Components, 1)
	assert.Equal(t, "TRK", page.Components[0].Qualifier)
}

func TestListMetrics(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/metrics/search", r.URL.Path)
		_, _ = w.Write([]byte(`{"metrics":[{"id":"1","key":"ncloc","name":"Lines of code","type":"INT","direction":-1}],"total":1,"p":1,"ps":100}`))
	})

	page, err := c.ListMetrics(context.Background(), 1, 100).Unwrap()
	require.NoError(t, err)
	assert.False(t, page.HasMore())
	require.Len(t, page.Metrics, 1)
	assert.Equal(t, -1, page.Metrics[0].Direction)
}

func TestGetMeasures(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/measures/component", r.URL.Path)
		assert.Equal(t, "org:a", r.URL.Query().Get("component"))
		assert.Equal(t, []string{"ncloc", "coverage"}, strings.Split(r.URL.Query().Get("metricKeys"), ","))
		_, _ = w.Write([]byte(`{"component":{"id":"c1","key":"org:a","name":"A","qualifier":"TRK","measures":[{"metric":"ncloc","value":"1200"},{"metric":"coverage","value":"81.5"}]}}`))
	})

	measures, err := c.GetMeasures(context.Background(), "org:a", []string{"ncloc", "coverage"}).Unwrap()
	require.NoError(t, err)
	require.Len(t, measures.Component.Measures, 2)
	assert.Equal(t, "81.5", measures.Component.Measures[1].Value)
}

func TestGetMeasures_ErrorCarriesComponent(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	result := c.GetMeasures(context.Background(), "org:missing", []string{"ncloc"})
	require.False(t, result.OK())
	var ce *connerr.Error
	require.ErrorAs(t, result.Err(), &ce)
	assert.Equal(t, "org:missing", ce.Key)
	assert.Equal(t, http.StatusNotFound, ce.Status)
}
