package hooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	commonhttp "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/http"
)

// ==========================
// Mock Implementations
// ==========================

type published struct {
	Name           string
	CorrelationKey string
	TTL            time.Duration
	Vars           map[string]interface{}
}

type mockPublisher struct {
	messages []published
	err      error
}

func (m *mockPublisher) PublishMessage(_ context.Context, name, key string, ttl time.Duration, vars map[string]interface{}) error {
	m.messages = append(m.messages, published{name, key, ttl, vars})
	return m.err
}

type failingHook struct{ err error }

func (h failingHook) Trigger(context.Context, string, map[string]interface{}) error { return h.err }

// ==========================
// Zeebe Hook Tests
// ==========================

func TestZeebeHook_PublishesCorrelatedMessage(t *testing.T) {
	pub := &mockPublisher{}
	hook := NewZeebeHook(pub, 0)

	err := hook.Trigger(context.Background(), "donation.acknowledged", map[string]interface{}{
		"memberId": "m-1",
		"amount":   250.0,
	})

	require.NoError(t, err)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "donation.acknowledged", pub.messages[0].Name)
	assert.Equal(t, "m-1", pub.messages[0].CorrelationKey)
	assert.Equal(t, DefaultMessageTTL, pub.messages[0].TTL)
}

func TestZeebeHook_FailureIsHookError(t *testing.T) {
	hook := NewZeebeHook(&mockPublisher{err: errors.New("broker unavailable")}, time.Minute)

	err := hook.Trigger(context.Background(), "behavior.donation_made", nil)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeHookFailed))
}

func TestCorrelationKey(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
		want    string
	}{
		{"member id wins", map[string]interface{}{"memberId": "m-1", "testId": "t-1"}, "m-1"},
		{"test id", map[string]interface{}{"testId": "t-1"}, "t-1"},
		{"empty member id skipped", map[string]interface{}{"memberId": "", "eventId": "gala"}, "gala"},
		{"falls back to event", map[string]interface{}{}, "ab_test.analysis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CorrelationKey("ab_test.analysis", tt.payload))
		})
	}
}

// ==========================
// Webhook Hook Tests
// ==========================

func TestWebhookHook_SignsBody(t *testing.T) {
	var gotBody []byte
	var gotSig, gotEvent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		gotEvent = r.Header.Get("X-Guild-Event")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	hook := NewWebhookHook(commonhttp.NewClient(time.Second), srv.URL, "s3cret")
	hook.now = func() time.Time { return time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC) }

	err := hook.Trigger(context.Background(), "behavior.volunteer_signup", map[string]interface{}{"memberId": "m-1"})

	require.NoError(t, err)
	assert.Equal(t, "behavior.volunteer_signup", gotEvent)
	assert.JSONEq(t, `{"event":"behavior.volunteer_signup","payload":{"memberId":"m-1"},"sentAt":"2026-05-20T15:00:00Z"}`, string(gotBody))
	assert.Equal(t, Sign("s3cret", gotBody), gotSig)
}

func TestWebhookHook_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhookHook(commonhttp.NewClient(time.Second), srv.URL, "").
		Trigger(context.Background(), "ab_test.analysis", nil)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeHookFailed))
}

// ==========================
// Fanout Tests
// ==========================

func TestFanout_JoinsErrors(t *testing.T) {
	pub := &mockPublisher{}
	f := Fanout{NewZeebeHook(pub, 0), failingHook{errors.New("n8n down")}}

	err := f.Trigger(context.Background(), "donation.acknowledged", map[string]interface{}{"memberId": "m-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "n8n down")
	assert.Len(t, pub.messages, 1)
}

func TestFanout_Empty(t *testing.T) {
	assert.NoError(t, Fanout{}.Trigger(context.Background(), "x", nil))
}
