package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cheshire/internal/config"
	"cheshire/internal/core"
	"cheshire/internal/health"
	"cheshire/internal/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDispatcher returns a canned response and records the last envelope.
type stubDispatcher struct {
	resp    core.ResponseEntity
	lastEnv *core.RequestEnvelope
}

func (d *stubDispatcher) Dispatch(ctx context.Context, env *core.RequestEnvelope) core.ResponseEntity {
	d.lastEnv = env
	return d.resp
}

func newHTTPFixture(t *testing.T, dispatcher plugin.Dispatcher) (*HTTPJSONServer, *health.Monitor) {
	t.Helper()

	monitor := health.NewMonitor()
	metrics := health.NewMetrics()
	srv := NewHTTPJSONServer(plugin.ServerBinding{
		Capability: "blog",
		Actions:    []string{"ping", "list"},
		Exposure:   config.ExposureSpec{Binding: "HTTP_JSON", Version: "v1", Path: "/api"},
		Transport:  config.TransportSpec{Binding: "HTTP_JSON", Host: "127.0.0.1", Port: 8080},
		Dispatcher: dispatcher,
	}, monitor, metrics, nil)
	require.NoError(t, srv.Init(context.Background()))
	return srv, monitor
}

func postAction(t *testing.T, srv *HTTPJSONServer, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHTTPJSONActionSuccess(t *testing.T) {
	dispatcher := &stubDispatcher{resp: core.NewResponseOK(
		map[string]interface{}{"x": 1},
		map[string]interface{}{"capability": "blog"},
	)}
	srv, _ := newHTTPFixture(t, dispatcher)

	rec := postAction(t, srv, "/api/v1/blog/ping", `{"data":{"x":1},"parameters":{"limit":10}}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t,
		`{"status":"SUCCESS","data":{"x":1},"metadata":{"capability":"blog"}}`,
		rec.Body.String())

	require.NotNil(t, dispatcher.lastEnv)
	assert.Equal(t, "blog", dispatcher.lastEnv.Capability)
	assert.Equal(t, "ping", dispatcher.lastEnv.Action)
	assert.Equal(t, map[string]interface{}{"x": float64(1)}, dispatcher.lastEnv.Payload.Data)
	assert.Equal(t, map[string]interface{}{"limit": float64(10)}, dispatcher.lastEnv.Payload.Parameters)
}

func TestHTTPJSONIdentityHeaders(t *testing.T) {
	dispatcher := &stubDispatcher{resp: core.NewResponseOK(nil, nil)}
	srv, _ := newHTTPFixture(t, dispatcher)

	postAction(t, srv, "/api/v1/blog/ping", `{}`, map[string]string{
		"X-Request-ID": "r-42",
		"X-Session-ID": "s-1",
		"X-User-ID":    "u-1",
		"X-Trace-ID":   "t-1",
	})

	require.NotNil(t, dispatcher.lastEnv)
	assert.Equal(t, "r-42", dispatcher.lastEnv.RequestID)
	assert.Equal(t, "s-1", dispatcher.lastEnv.Context.SessionID)
	assert.Equal(t, "u-1", dispatcher.lastEnv.Context.UserID)
	assert.Equal(t, "t-1", dispatcher.lastEnv.Context.TraceID)
}

func TestHTTPJSONGeneratesRequestID(t *testing.T) {
	dispatcher := &stubDispatcher{resp: core.NewResponseOK(nil, nil)}
	srv, _ := newHTTPFixture(t, dispatcher)

	postAction(t, srv, "/api/v1/blog/ping", `{}`, nil)

	require.NotNil(t, dispatcher.lastEnv)
	assert.NotEmpty(t, dispatcher.lastEnv.RequestID)
}

func TestHTTPJSONErrorMapping(t *testing.T) {
	cases := []struct {
		category core.StatusCategory
		code     int
	}{
		{core.StatusBadRequest, http.StatusBadRequest},
		{core.StatusUnauthorized, http.StatusUnauthorized},
		{core.StatusForbidden, http.StatusForbidden},
		{core.StatusNotFound, http.StatusNotFound},
		{core.StatusServiceUnavailable, http.StatusServiceUnavailable},
		{core.StatusExecutionFailed, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.category), func(t *testing.T) {
			dispatcher := &stubDispatcher{resp: core.NewResponseError(tc.category, nil, "nope")}
			srv, _ := newHTTPFixture(t, dispatcher)

			rec := postAction(t, srv, "/api/v1/blog/ping", `{}`, nil)

			assert.Equal(t, tc.code, rec.Code)
			assert.JSONEq(t,
				`{"status":"`+string(tc.category)+`","error":"nope"}`,
				rec.Body.String())
		})
	}
}

func TestHTTPJSONMalformedBody(t *testing.T) {
	dispatcher := &stubDispatcher{resp: core.NewResponseOK(nil, nil)}
	srv, _ := newHTTPFixture(t, dispatcher)

	rec := postAction(t, srv, "/api/v1/blog/ping", `{"data":`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, dispatcher.lastEnv)
}

func TestHTTPJSONUnknownRoute(t *testing.T) {
	dispatcher := &stubDispatcher{resp: core.NewResponseOK(nil, nil)}
	srv, _ := newHTTPFixture(t, dispatcher)

	rec := postAction(t, srv, "/api/v1/other/ping", `{}`, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Nil(t, dispatcher.lastEnv)
}

func TestHTTPJSONHealthEndpoint(t *testing.T) {
	srv, monitor := newHTTPFixture(t, &stubDispatcher{resp: core.NewResponseOK(nil, nil)})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, monitor.Transition(health.StatusStarting, "booting"))
	require.NoError(t, monitor.Transition(health.StatusRunning, "up"))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"RUNNING"`)
}

func TestHTTPJSONCountsCapability(t *testing.T) {
	dispatcher := &stubDispatcher{resp: core.NewResponseError(core.StatusNotFound, nil, "gone")}
	metrics := health.NewMetrics()
	srv := NewHTTPJSONServer(plugin.ServerBinding{
		Capability: "blog",
		Exposure:   config.ExposureSpec{Binding: "HTTP_JSON", Version: "v1", Path: "/api"},
		Dispatcher: dispatcher,
	}, health.NewMonitor(), metrics, nil)
	require.NoError(t, srv.Init(context.Background()))

	postAction(t, srv, "/api/v1/blog/ping", `{}`, nil)
	postAction(t, srv, "/api/v1/blog/ping", `{}`, nil)

	assert.Equal(t, int64(2), metrics.CountForComponent("blog"))
	assert.Equal(t, int64(2), metrics.Total())
	assert.Equal(t, int64(2), metrics.Failed())
	assert.Equal(t, int64(2), metrics.CountForCategory(core.StatusNotFound))
	assert.Zero(t, metrics.InProgress())
}

func TestHTTPJSONDefaultBasePath(t *testing.T) {
	dispatcher := &stubDispatcher{resp: core.NewResponseOK(nil, nil)}
	monitor := health.NewMonitor()
	srv := NewHTTPJSONServer(plugin.ServerBinding{
		Capability: "blog",
		Exposure:   config.ExposureSpec{Binding: "HTTP_JSON"},
		Dispatcher: dispatcher,
	}, monitor, health.NewMetrics(), nil)
	require.NoError(t, srv.Init(context.Background()))

	rec := postAction(t, srv, "/api/blog/ping", `{}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
