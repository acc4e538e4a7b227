package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskmind-sync/internal/clerk"
	"taskmind-sync/internal/processor"
)

// maxWebhookBody bounds how much of a delivery is read. Provider payloads
// are a few KB; anything near the limit is garbage.
const maxWebhookBody = 1 << 20

// webhookError is the response envelope for the ingestion endpoint. Flat on
// purpose: the provider dashboard surfaces the raw body and callers key off
// errorType.
type webhookError struct {
	Error     string `json:"error"`
	ErrorType string `json:"errorType"`
}

func (s *Server) handleWebhook(c *gin.Context) {
	requestID := uuid.NewString()
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.log.Warn("webhook_body_read_failed", "error", err, "request_id", requestID)
		c.JSON(http.StatusBadRequest, webhookError{
			Error:     "could not read request body",
			ErrorType: string(processor.ErrorTypeValidation),
		})
		return
	}

	deliveryID := c.GetHeader(clerk.HeaderID)
	s.tel.Trace(requestID, "received", map[string]any{
		"delivery_id": deliveryID,
		"body_bytes":  len(body),
	})

	if err := s.verifier.Verify(body, deliveryID, c.GetHeader(clerk.HeaderTimestamp), c.GetHeader(clerk.HeaderSignature)); err != nil {
		s.log.Warn("webhook_verification_failed",
			"error", err,
			"delivery_id", deliveryID,
			"client_ip", c.ClientIP(),
			"request_id", requestID,
		)
		s.tel.Metric("webhook_verification_failed", 1, map[string]any{"reason": err.Error()})
		c.JSON(http.StatusBadRequest, webhookError{
			Error:     err.Error(),
			ErrorType: string(processor.ErrorTypeVerification),
		})
		return
	}

	ev, err := clerk.ParseEvent(body)
	if err != nil {
		s.log.Warn("webhook_payload_invalid", "error", err, "delivery_id", deliveryID, "request_id", requestID)
		s.tel.Metric("webhook_payload_invalid", 1, nil)
		c.JSON(http.StatusBadRequest, webhookError{
			Error:     err.Error(),
			ErrorType: string(processor.ErrorTypeValidation),
		})
		return
	}
	ev.DeliveryID = deliveryID

	s.log.Info("webhook_received", "event_type", ev.Type, "user_id", ev.Data.ID, "delivery_id", deliveryID, "request_id", requestID)

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.rec.Process(ctx, ev, requestID); err != nil {
		errType := processor.TypeOf(err)
		status := http.StatusBadRequest
		if errType == processor.ErrorTypeDatabase {
			// 500 tells the provider to redeliver; every mutation path is
			// idempotent so the retry is safe
			status = http.StatusInternalServerError
		}

		s.log.Error("webhook_processing_failed",
			"error", err,
			"error_type", string(errType),
			"event_type", ev.Type,
			"user_id", ev.Data.ID,
			"request_id", requestID,
		)
		c.JSON(status, webhookError{
			Error:     err.Error(),
			ErrorType: string(errType),
		})
		return
	}

	s.tel.Trace(requestID, "completed", map[string]any{
		"event_type":  ev.Type,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}
