package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/adapters/whatsapp"
	"github.com/chapter-connect/membership-api/internal/app/apperr"
	"github.com/chapter-connect/membership-api/internal/app/messaging"
	"github.com/chapter-connect/membership-api/internal/domain"
)

// WebhookSecretHeader carries the shared secret on delivery callbacks.
const WebhookSecretHeader = "X-Webhook-Secret"

// sendMessage renders a template for one recipient and dispatches it. A provider failure
// is still a 200: the attempt is logged and reported with success false.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req SendMessageRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.idempotent(w, r, actor, "POST /messages", req, func() (int, any, error) {
		res, err := s.messaging.Send(r.Context(), actor, messaging.SendInput{
			TemplateID:     domain.TemplateID(req.TemplateID),
			RecipientID:    idPtr[domain.IdentityID](req.RecipientID),
			RecipientEmail: req.RecipientEmail,
			RecipientPhone: req.RecipientPhone,
			Variables:      req.Variables,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, SendMessageResponse{Success: res.Success, Log: messageLogFromDomain(res.Log)}, nil
	})
}

func (s *Server) listMessageLogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	logs, err := s.messaging.ListLogs(r.Context(), actor, messaging.ListInput{
		RecipientID: queryID[domain.IdentityID](r, "recipientId"),
		TemplateID:  queryID[domain.TemplateID](r, "templateId"),
		Status:      r.URL.Query().Get("status"),
		Limit:       limit,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": mapSlice(logs, messageLogFromDomain)})
}

func (s *Server) getMessageLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	l, err := s.messaging.GetLog(r.Context(), actor, domain.MessageLogID(chi.URLParam(r, "logID")))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageLogFromDomain(l))
}

// whatsappWebhook consumes gateway delivery callbacks. It is outside bearer auth and is
// authenticated by a shared secret instead. Callbacks that carry no usable status or
// refer to an unknown message are acknowledged so the gateway stops retrying.
func (s *Server) whatsappWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret == "" {
		writeError(w, r, http.StatusServiceUnavailable, "WEBHOOK_DISABLED", "webhook secret not configured", nil)
		return
	}
	got := r.Header.Get(WebhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
		writeError(w, r, http.StatusUnauthorized, apperr.CodeUnauthorized, "invalid webhook secret", nil)
		return
	}

	raw, err := readBody(w, r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var hook WhatsAppWebhook
	if err := json.Unmarshal(raw, &hook); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, apperr.CodeValidation, "malformed JSON body", nil)
		return
	}
	status, known := whatsapp.ParseStatus(hook.Data.Status)
	msgID := hook.MessageID()
	if !known || msgID == "" {
		writeJSON(w, http.StatusOK, WebhookResponse{Applied: false})
		return
	}

	l, applied, err := s.messaging.ApplyDeliveryUpdate(r.Context(), messaging.DeliveryUpdate{
		ProviderMessageID: msgID,
		Status:            status,
		Error:             hook.Data.Error,
	})
	if err != nil {
		if apperr.HasCode(err, "MESSAGE_NOT_FOUND") {
			s.log.Debug("delivery callback for unknown message", zap.String("provider_message_id", msgID))
			writeJSON(w, http.StatusOK, WebhookResponse{Applied: false})
			return
		}
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WebhookResponse{Applied: applied, Status: string(l.Status)})
}
