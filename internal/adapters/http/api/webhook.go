package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	service "github.com/okian/gamebot/internal/app"
	"github.com/okian/gamebot/internal/domain/normalize"
	"github.com/okian/gamebot/pkg/logger"
	"github.com/okian/gamebot/pkg/metrics"
)

// Webhook headers.
const (
	HeaderEvent     = "X-GitHub-Event"
	HeaderDelivery  = "X-GitHub-Delivery"
	HeaderSignature = "X-Hub-Signature-256"

	signaturePrefix = "sha256="
)

// WebhookDependencies defines how accepted deliveries are handed off.
type WebhookDependencies interface {
	Accept(ctx context.Context, kind, action, deliveryID string, body []byte) (service.AckStatus, string, error)
}

// WebhookHandler handles webhook deliveries.
type WebhookHandler struct {
	deps     WebhookDependencies
	secret   []byte
	maxBytes int64
	logger   logger.Logger
}

// NewWebhookHandler creates a webhook handler. An empty secret disables
// signature verification.
func NewWebhookHandler(deps WebhookDependencies, secret []byte, maxBytes int64, l logger.Logger) *WebhookHandler {
	return &WebhookHandler{deps: deps, secret: secret, maxBytes: maxBytes, logger: l}
}

// HandleWebhook handles POST /webhook requests.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "api.webhook"
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RecordDeliveryRejected("too_large")
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", NewKind(op, ErrPayloadTooLarge))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if len(h.secret) > 0 && !validSignature(h.secret, body, r.Header.Get(HeaderSignature)) {
		metrics.RecordDeliveryRejected("signature")
		h.logger.Warn(ctx, "webhook signature mismatch", logger.String("delivery", r.Header.Get(HeaderDelivery)))
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}

	kind := strings.TrimSpace(r.Header.Get(HeaderEvent))
	switch kind {
	case "":
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing "+HeaderEvent)))
		return
	case normalize.EventPing:
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
		return
	}

	status, id, err := h.deps.Accept(ctx, kind, normalize.PeekAction(body), r.Header.Get(HeaderDelivery), body)
	switch {
	case errors.Is(err, normalize.ErrMalformedPayload):
		writeError(w, http.StatusBadRequest, "malformed_payload", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", Wrap(op, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", Wrap(op, err))
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	case status == service.AckDuplicate:
		writeAck(w, http.StatusOK, status, id)
	default:
		writeAck(w, http.StatusAccepted, status, id)
	}
}

// validSignature compares header against the HMAC-SHA256 of body in
// constant time.
func validSignature(secret, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the X-Hub-Signature-256 value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
