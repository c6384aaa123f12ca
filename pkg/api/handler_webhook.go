package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/sealedreview/reviewpipeline/pkg/webhook"
)

const maxWebhookBodyBytes = 2 * 1024 * 1024

// webhookHandler handles POST /webhook: verifies the HMAC signature,
// decodes the envelope, and hands it to the orchestrator. Only
// pull_request events with action opened/synchronize are admitted —
// everything else still gets a 202 (the sender should not retry) but
// produces no decision record.
func (s *Server) webhookHandler(c *echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}
	if len(body) > maxWebhookBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "webhook payload too large")
	}

	if !s.verifySignature(body, c.Request().Header.Get("X-Signature-256")) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	var env webhook.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed webhook body")
	}
	if v := c.Request().Header.Get("X-Event"); v != "" {
		env.Event = v
	}
	if v := c.Request().Header.Get("X-Delivery"); v != "" {
		env.DeliveryID = v
	}

	outcome := s.orchestrator.HandleWebhook(c.Request().Context(), env)

	return c.JSON(http.StatusAccepted, &WebhookResponse{
		Message:        "accepted",
		ReviewID:       outcome.ReviewID,
		IdempotencyKey: outcome.IdempotencyKey,
	})
}

// verifySignature compares the HMAC-SHA256 of body against the
// "sha256=<hex>" header value using a constant-time comparison. An
// empty configured secret disables verification (local/dev use).
func (s *Server) verifySignature(body []byte, header string) bool {
	if s.webhookSecret == "" {
		return true
	}
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	got := mac.Sum(nil)
	return hmac.Equal(want, got)
}
