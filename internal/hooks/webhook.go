package hooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	commonhttp "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/http"
)

const SignatureHeader = "X-Guild-Signature"

type webhookEnvelope struct {
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
	SentAt  time.Time              `json:"sentAt"`
}

// WebhookHook posts events to an n8n-style endpoint. With a secret the body
// is signed with HMAC-SHA256.
type WebhookHook struct {
	client *commonhttp.Client
	url    string
	secret string
	now    func() time.Time
}

func NewWebhookHook(client *commonhttp.Client, url, secret string) *WebhookHook {
	return &WebhookHook{client: client, url: url, secret: secret, now: time.Now}
}

func (h *WebhookHook) Trigger(ctx context.Context, event string, payload map[string]interface{}) error {
	envelope := webhookEnvelope{Event: event, Payload: payload, SentAt: h.now().UTC()}

	body, err := json.Marshal(envelope)
	if err != nil {
		return errors.NewHookError(event, err)
	}
	headers := map[string]string{"X-Guild-Event": event}
	if h.secret != "" {
		headers[SignatureHeader] = Sign(h.secret, body)
	}

	// RawMessage keeps the posted bytes identical to the signed ones.
	if err := h.client.DoJSON(ctx, http.MethodPost, h.url, headers, json.RawMessage(body), nil); err != nil {
		return errors.NewHookError(event, err)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body, prefixed with the scheme.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
