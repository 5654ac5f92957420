package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/taxline/whatsapp-engine/internal/conversation"
	observemetrics "github.com/taxline/whatsapp-engine/internal/observability/metrics"
	"github.com/taxline/whatsapp-engine/internal/whatsapp"
	"github.com/taxline/whatsapp-engine/pkg/logging"
)

type messageHandler interface {
	Handle(ctx context.Context, phoneNumber string, msg conversation.Message) error
}

type signatureVerifier interface {
	VerifyWebhookSignature(signatureHeader string, payload []byte) error
}

type processedTracker interface {
	MarkProcessed(ctx context.Context, messageID string) (bool, error)
}

// WhatsAppWebhookHandler handles the Meta verification handshake and inbound
// message webhooks.
type WhatsAppWebhookHandler struct {
	engine      messageHandler
	verifier    signatureVerifier
	processed   processedTracker
	verifyToken string
	logger      *logging.Logger
	metrics     *observemetrics.EngineMetrics
}

type WhatsAppWebhookConfig struct {
	Engine      messageHandler
	Verifier    signatureVerifier
	Processed   processedTracker
	VerifyToken string
	Logger      *logging.Logger
	Metrics     *observemetrics.EngineMetrics
}

func NewWhatsAppWebhookHandler(cfg WhatsAppWebhookConfig) *WhatsAppWebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WhatsAppWebhookHandler{
		engine:      cfg.Engine,
		verifier:    cfg.Verifier,
		processed:   cfg.Processed,
		verifyToken: cfg.VerifyToken,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// HandleVerify answers the Meta subscription handshake: echo hub.challenge
// when the verify token matches.
func (h *WhatsAppWebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != h.verifyToken {
		h.logger.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

// HandleMessages processes inbound WhatsApp message webhooks. Engine failures
// are logged but still acknowledged with 200: Meta retries the whole batch on
// any non-2xx, and a poisoned message would block the number forever.
func (h *WhatsAppWebhookHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		http.Error(w, "engine not configured", http.StatusServiceUnavailable)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if h.verifier != nil {
		if err := h.verifier.VerifyWebhookSignature(r.Header.Get("X-Hub-Signature-256"), body); err != nil {
			h.logger.Warn("invalid webhook signature", "error", err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, wm := range change.Value.Messages {
				h.handleOne(r.Context(), wm)
			}
			for _, status := range change.Value.Statuses {
				h.logger.Debug("delivery status",
					"message_id", status.ID, "status", status.Status)
			}
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WhatsAppWebhookHandler) handleOne(ctx context.Context, wm whatsapp.WebhookMessage) {
	start := time.Now()
	if h.processed != nil && wm.ID != "" {
		fresh, err := h.processed.MarkProcessed(ctx, wm.ID)
		if err != nil {
			// Dedup is protective, not load-bearing: on tracker failure the
			// engine still handles the message.
			h.logger.Error("dedup claim failed", "error", err, "message_id", wm.ID)
		} else if !fresh {
			h.logger.Info("duplicate webhook dropped", "message_id", wm.ID)
			return
		}
	}

	msg := messageFromWebhook(wm)
	if err := h.engine.Handle(ctx, wm.From, msg); err != nil {
		h.logger.Error("message handling failed",
			"error", err, "message_id", wm.ID, "type", wm.Type)
	}
	h.metrics.ObserveWebhookLatency(wm.Type, time.Since(start).Seconds())
}

// messageFromWebhook flattens a provider webhook message into the engine's
// inbound message shape.
func messageFromWebhook(wm whatsapp.WebhookMessage) conversation.Message {
	msg := conversation.Message{Type: conversation.MessageUnknown, ProviderID: wm.ID}
	switch wm.Type {
	case "text":
		msg.Type = conversation.MessageText
		if wm.Text != nil {
			msg.Text = wm.Text.Body
		}
	case "interactive":
		if wm.Interactive == nil {
			break
		}
		switch {
		case wm.Interactive.ListReply != nil:
			msg.Type = conversation.MessageInteractive
			msg.ReplyKind = conversation.ReplyList
			msg.ReplyID = wm.Interactive.ListReply.ID
		case wm.Interactive.ButtonReply != nil:
			msg.Type = conversation.MessageInteractive
			msg.ReplyKind = conversation.ReplyButton
			msg.ReplyID = wm.Interactive.ButtonReply.ID
		}
	case "document":
		if wm.Document != nil {
			msg.Type = conversation.MessageDocument
			msg.FileID = wm.Document.ID
			msg.Filename = wm.Document.Filename
			msg.MimeType = wm.Document.MimeType
		}
	case "image":
		if wm.Image != nil {
			msg.Type = conversation.MessageImage
			msg.FileID = wm.Image.ID
			msg.Filename = wm.Image.Filename
			msg.MimeType = wm.Image.MimeType
		}
	}
	return msg
}
