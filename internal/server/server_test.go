package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/handyrules/internal/engine"
	"github.com/roach88/handyrules/internal/history"
	"github.com/roach88/handyrules/internal/metrics"
	"github.com/roach88/handyrules/internal/rule"
	"github.com/roach88/handyrules/internal/rulestore"
	rt "github.com/roach88/handyrules/internal/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	server  *Server
	store   *rulestore.Store
	history *history.Log
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	set := rt.RuleSet(t,
		rt.Regex("comma", `\s*\bcomma\b\s*`, ", ", 100),
		rt.Regex("period", `\s*\bperiod\b`, ".", 90),
		rt.Function("trim", "trim", 0),
	)
	store := rulestore.New(set, rulestore.WithLogger(discard))

	log, err := history.Open(history.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	m := metrics.New()
	eng := engine.New(engine.WithLogger(discard), engine.WithRecorder(m))

	base := []Option{
		WithHistory(log),
		WithMetrics(m),
		WithVersion("test"),
		WithIDGenerator(rt.NewFixedIDGenerator("")),
		WithLogger(discard),
		WithClock(func() time.Time { return fixedNow }),
	}
	return &fixture{
		server:  New(store, eng, append(base, opts...)...),
		store:   store,
		history: log,
		metrics: m,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestChatCompletions_Messages(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/chat/completions",
		`{"model":"local-rules","messages":[{"role":"system","content":"ignored"},{"role":"user","content":"hello comma world period "}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[ChatResponse](t, rec)
	assert.Equal(t, ResponseID("hello comma world period "), resp.ID)
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, fixedNow.Unix(), resp.Created)
	assert.Equal(t, ModelID, resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "hello, world.", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Zero(t, resp.Usage.TotalTokens)
}

func TestChatCompletions_PlainFields(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{
		`{"prompt":"a comma b"}`,
		`{"input":"a comma b"}`,
		`{"text":"a comma b"}`,
	} {
		rec := f.do(t, http.MethodPost, "/v1/chat/completions", body)
		require.Equal(t, http.StatusOK, rec.Code, body)
		resp := decode[ChatResponse](t, rec)
		assert.Equal(t, "a, b", resp.Choices[0].Message.Content, body)
	}
}

func TestChatCompletions_SameInputSameID(t *testing.T) {
	f := newFixture(t)

	first := decode[ChatResponse](t, f.do(t, http.MethodPost, "/v1/chat/completions", `{"text":"x"}`))
	second := decode[ChatResponse](t, f.do(t, http.MethodPost, "/v1/chat/completions", `{"prompt":"x"}`))
	assert.Equal(t, first.ID, second.ID)
}

func TestChatCompletions_BadRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"messages":`},
		{"no content", `{"messages":[{"role":"system","content":"x"}]}`},
		{"empty body", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/chat/completions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, "invalid_request_error", resp.Error.Type)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestChatCompletions_RecordsHistory(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/v1/chat/completions", `{"text":"one comma two"}`)

	entries, err := f.history.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "req-1", e.RequestID)
	}
	assert.Equal(t, "comma", entries[0].RuleID)
	assert.True(t, entries[0].Matched)
	assert.Equal(t, "one, two", entries[0].Output)
	assert.False(t, entries[1].Matched)
}

func TestChatCompletions_DisabledRuleSkipped(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Toggle("comma", false)
	require.NoError(t, err)

	resp := decode[ChatResponse](t, f.do(t, http.MethodPost, "/v1/chat/completions", `{"text":"a comma b"}`))
	assert.Equal(t, "a comma b", resp.Choices[0].Message.Content)

	n, err := f.history.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "skipped rules are not logged")
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Toggle("trim", false)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 3, resp.RulesLoaded)
	assert.Equal(t, 2, resp.RulesEnabled)
	assert.Equal(t, uint64(2), resp.RuleSetVersion)
}

func TestModels(t *testing.T) {
	f := newFixture(t)

	resp := decode[ModelsResponse](t, f.do(t, http.MethodGet, "/v1/models", ""))
	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, ModelID, resp.Data[0].ID)
}

func TestRules_ListedInEvaluationOrder(t *testing.T) {
	f := newFixture(t)

	resp := decode[RulesResponse](t, f.do(t, http.MethodGet, "/v1/rules", ""))
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, uint64(1), resp.Version)

	ids := make([]string, 0, len(resp.Rules))
	for _, r := range resp.Rules {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"comma", "period", "trim"}, ids)
	assert.Equal(t, string(rule.KindFunction), resp.Rules[2].Kind)
}

func TestToggle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/rules/comma/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ToggleResponse](t, rec)
	assert.Equal(t, "comma", resp.ID)
	assert.False(t, resp.Enabled)
	assert.Equal(t, "Rule 'comma' is now disabled", resp.Message)

	// Flip back
	resp = decode[ToggleResponse](t, f.do(t, http.MethodPost, "/v1/rules/comma/toggle", ""))
	assert.True(t, resp.Enabled)

	// Explicit value is idempotent
	for range 2 {
		resp = decode[ToggleResponse](t, f.do(t, http.MethodPost, "/v1/rules/period/toggle", `{"enabled":false}`))
		assert.False(t, resp.Enabled)
	}
	c, ok := f.store.Snapshot().Lookup("period")
	require.True(t, ok)
	assert.False(t, c.Enabled())
}

func TestToggle_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/rules/missing/toggle", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Error.Type)

	rec = f.do(t, http.MethodPost, "/v1/rules/comma/toggle", `{"enabled":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/rules/comma/toggle", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLogs(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/v1/chat/completions", `{"text":"a comma b"}`)
	f.do(t, http.MethodPost, "/v1/chat/completions", `{"text":"c period"}`)

	resp := decode[LogsResponse](t, f.do(t, http.MethodGet, "/v1/logs", ""))
	assert.Equal(t, 6, resp.Count)

	resp = decode[LogsResponse](t, f.do(t, http.MethodGet, "/v1/logs?limit=2", ""))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "req-2", resp.Logs[1].RequestID)
	assert.Equal(t, "trim", resp.Logs[1].RuleID)

	rec := f.do(t, http.MethodGet, "/v1/logs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/v1/logs", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	resp = decode[LogsResponse](t, f.do(t, http.MethodGet, "/v1/logs", ""))
	assert.Zero(t, resp.Count)
	assert.NotNil(t, resp.Logs)
}

func TestLogs_WithoutHistory(t *testing.T) {
	store := rulestore.New(nil, rulestore.WithLogger(discard))
	s := New(store, engine.New(engine.WithLogger(discard)), WithLogger(discard))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/logs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"logs":[],"count":0}`, rec.Body.String())

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics only served when configured")
}

func TestAPIKey(t *testing.T) {
	f := newFixture(t, WithAPIKey("s3cret"))

	tests := []struct {
		name   string
		path   string
		header []string
		want   int
	}{
		{"missing", "/v1/models", nil, http.StatusUnauthorized},
		{"wrong", "/v1/models", []string{"Authorization", "Bearer nope"}, http.StatusUnauthorized},
		{"not bearer", "/v1/models", []string{"Authorization", "s3cret"}, http.StatusUnauthorized},
		{"valid", "/v1/models", []string{"Authorization", "Bearer s3cret"}, http.StatusOK},
		{"health stays open", "/health", nil, http.StatusOK},
		{"metrics stay open", "/metrics", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, "", tt.header...)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "invalid_api_key", decode[ErrorResponse](t, rec).Error.Type)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	f := newFixture(t, WithCORS(true), WithAPIKey("k"))

	// Preflight is answered before auth
	rec := f.do(t, http.MethodOptions, "/v1/chat/completions", "",
		"Origin", "http://localhost:3000",
		"Access-Control-Request-Method", "POST",
	)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	rec = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	plain := newFixture(t)
	rec = plain.do(t, http.MethodGet, "/health", "")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/v1/chat/completions", `{"text":"a comma b"}`)
	f.do(t, http.MethodPost, "/v1/chat/completions", `{}`)
	f.do(t, http.MethodGet, "/nope", "")

	requests := f.metrics.Requests
	assert.Equal(t, 1.0, testutil.ToFloat64(requests.WithLabelValues("POST /v1/chat/completions", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(requests.WithLabelValues("POST /v1/chat/completions", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(requests.WithLabelValues("unmatched", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RulesApplied.WithLabelValues("comma", "matched")))

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "handyrules_http_requests_total")
	assert.Contains(t, rec.Body.String(), "handyrules_rules_applied_total")
}

func TestServe_GracefulShutdown(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+"/v1/chat/completions",
		"application/json", strings.NewReader(`{"text":"x comma y"}`))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"content":"x, y"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
