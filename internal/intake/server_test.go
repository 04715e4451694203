package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

type fakeStats struct {
	succeeded, failed int
	err               error
	asked             string
}

func (s *fakeStats) WorkflowCounts(_ context.Context, workflow string) (int, int, error) {
	s.asked = workflow
	return s.succeeded, s.failed, s.err
}

func serve(t *testing.T, srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

// ==========================
// Server Tests
// ==========================

func TestServer_Health(t *testing.T) {
	srv := NewServer(New(&fakeDispatcher{}, nil, nil, nil), nil, nil)

	rec := serve(t, srv, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestServer_ReadyReportsFailingChecks(t *testing.T) {
	checks := map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	}
	srv := NewServer(New(&fakeDispatcher{}, nil, nil, nil), checks, nil)

	rec := serve(t, srv, http.MethodGet, "/ready", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "dial tcp: refused")
	assert.NotContains(t, rec.Body.String(), "postgres")
}

func TestServer_PostEvent(t *testing.T) {
	d := &fakeDispatcher{}
	srv := NewServer(New(d, nil, nil, nil), nil, nil)

	rec := serve(t, srv, http.MethodPost, "/api/v1/events",
		`{"type":"member.registered","payload":{"memberId":"m-1"}}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var res models.WorkflowResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, 1, d.count())
	assert.JSONEq(t, `{"memberId":"m-1"}`, string(d.events[0].Payload))
}

func TestServer_PostEventWorkflowFailure(t *testing.T) {
	d := &fakeDispatcher{result: &models.WorkflowResult{Workflow: "ab_test", Errors: []string{"no variants"}}}
	srv := NewServer(New(d, nil, nil, nil), nil, nil)

	rec := serve(t, srv, http.MethodPost, "/api/v1/events", `{"type":"ab_test.launch","payload":{}}`, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "no variants")
}

func TestServer_PostEventRejectsBadInput(t *testing.T) {
	srv := NewServer(New(&fakeDispatcher{}, nil, nil, nil), nil, nil)

	rec := serve(t, srv, http.MethodPost, "/api/v1/events", `{"type":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, srv, http.MethodPost, "/api/v1/events", `{"type":"member.teleported"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_PostEventIdempotencyKey(t *testing.T) {
	dedupe, _ := newDeduper(t)
	d := &fakeDispatcher{}
	srv := NewServer(New(d, dedupe, nil, nil), nil, nil)
	headers := map[string]string{MessageIDHeader: "req-1"}
	body := `{"type":"member.registered","payload":{"memberId":"m-1"}}`

	first := serve(t, srv, http.MethodPost, "/api/v1/events", body, headers)
	second := serve(t, srv, http.MethodPost, "/api/v1/events", body, headers)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `{"status":"duplicate"}`, second.Body.String())
	assert.Equal(t, 1, d.count())
}

func TestServer_WorkflowStats(t *testing.T) {
	stats := &fakeStats{succeeded: 12, failed: 3}
	srv := NewServer(New(&fakeDispatcher{}, nil, nil, nil), nil, stats)

	rec := serve(t, srv, http.MethodGet, "/api/v1/workflows/newsletter/stats", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "newsletter", stats.asked)
	assert.JSONEq(t, `{"workflow":"newsletter","succeeded":12,"failed":3}`, rec.Body.String())
}

func TestServer_WorkflowStatsDisabled(t *testing.T) {
	srv := NewServer(New(&fakeDispatcher{}, nil, nil, nil), nil, nil)

	rec := serve(t, srv, http.MethodGet, "/api/v1/workflows/newsletter/stats", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
