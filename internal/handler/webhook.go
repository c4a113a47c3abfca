package handler

import (
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coachline/internal/apperr"
	"coachline/internal/config"
	"coachline/internal/eventparser"
	"coachline/internal/models"
	"coachline/internal/repository"
	"coachline/internal/statemachine"
	"coachline/internal/webhooksig"
	"coachline/internal/worker"
)

const signatureHeader = "X-Provider-Signature"

// WebhookHandler is C2: the ingest endpoint the provider calls on every
// status change and transcript fragment.
type WebhookHandler interface {
	Handle(c *gin.Context)
}

type webhookHandler struct {
	store      repository.LiveStore
	dispatcher *worker.Dispatcher
	cfg        *config.Config
	logger     *zap.Logger
}

func NewWebhookHandler(store repository.LiveStore, dispatcher *worker.Dispatcher, cfg *config.Config, logger *zap.Logger) WebhookHandler {
	return &webhookHandler{store: store, dispatcher: dispatcher, cfg: cfg, logger: logger}
}

func (h *webhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, apperr.New(apperr.KindBadRequest, "failed to read request body"))
		return
	}

	contentType := c.ContentType()
	isJSON := contentType == "application/json" || (len(body) > 0 && (body[0] == '{' || body[0] == '['))

	if !h.cfg.Webhook.SkipSignatureValidation {
		if !h.verifySignature(c, body, isJSON) {
			respondError(c, apperr.New(apperr.KindUnauthorized, "signature verification failed"))
			return
		}
	}

	slugHint := c.Query("slug")
	ev, err := eventparser.Parse(body, contentType, slugHint)
	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, "malformed payload", err))
		return
	}

	if h.cfg.Provider.AccountID != "" && ev.AccountID != "" && ev.AccountID != h.cfg.Provider.AccountID {
		respondError(c, apperr.New(apperr.KindUnauthorized, "account mismatch"))
		return
	}

	if ev.CallID == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	ctx := c.Request.Context()

	slug := ev.Slug
	if slug == "" {
		summary, err := h.store.GetSummary(ctx, ev.CallID)
		if err != nil {
			h.logger.Error("failed to load session for slug fallback", zap.String("call_id", ev.CallID), zap.Error(err))
			respondError(c, apperr.Wrap(apperr.KindInternal, "failed to process event", err))
			return
		}
		if summary != nil {
			slug = summary.Slug
		}
	}
	if slug == "" {
		respondError(c, apperr.New(apperr.KindBadRequest, "slug required"))
		return
	}

	var statusPtr *models.Status
	var lastErrorPtr *string
	if ev.HasStatus {
		current, err := h.store.GetSummary(ctx, ev.CallID)
		if err != nil {
			h.logger.Error("failed to load session for status transition", zap.String("call_id", ev.CallID), zap.Error(err))
			respondError(c, apperr.Wrap(apperr.KindInternal, "failed to process event", err))
			return
		}
		currentStatus := models.StatusUnknown
		if current != nil {
			currentStatus = current.Status
		}
		next, ok := statemachine.NextStatus(currentStatus, ev.RawStatus)
		if ok {
			statusPtr = &next
			if next == models.StatusFailed {
				msg := "The call ended unexpectedly."
				lastErrorPtr = &msg
			}
		}
	}

	if err := h.store.UpsertSession(ctx, ev.CallID, slug, statusPtr); err != nil {
		h.logger.Error("failed to upsert session", zap.String("call_id", ev.CallID), zap.Error(err))
		respondError(c, apperr.Wrap(apperr.KindInternal, "failed to process event", err))
		return
	}
	if statusPtr != nil {
		if err := h.store.SetStatus(ctx, ev.CallID, *statusPtr, lastErrorPtr); err != nil {
			h.logger.Error("failed to set session status", zap.String("call_id", ev.CallID), zap.Error(err))
		}
	}

	statusIsTerminal := statusPtr != nil && statusPtr.Terminal()

	if ev.Transcript != nil {
		if _, err := h.store.AppendChunk(ctx, ev.CallID, ev.Transcript.Fingerprint, ev.Transcript.Speaker, ev.Transcript.Text, ev.Transcript.IsFinal, ev.Transcript.TimestampMs); err != nil {
			h.logger.Error("failed to append transcript chunk", zap.String("call_id", ev.CallID), zap.Error(err))
			respondError(c, apperr.Wrap(apperr.KindInternal, "failed to process event", err))
			return
		}
	}

	force := statusIsTerminal || (ev.Transcript != nil && ev.Transcript.IsFinal)
	h.dispatcher.Enqueue(ev.CallID, force)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *webhookHandler) verifySignature(c *gin.Context, body []byte, isJSON bool) bool {
	signature := c.GetHeader(signatureHeader)
	if signature == "" {
		return false
	}

	candidates := webhookURLCandidates(c)

	if isJSON {
		bodyHashHex := c.Query("bodySHA256")
		if bodyHashHex == "" {
			return false
		}
		return webhooksig.VerifyJSON(h.cfg.Provider.AuthToken, candidates, body, bodyHashHex, signature)
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return false
	}
	return webhooksig.VerifyForm(h.cfg.Provider.AuthToken, candidates, form, signature)
}

func webhookURLCandidates(c *gin.Context) []string {
	scheme := "https"
	if c.Request.TLS == nil {
		scheme = "http"
	}
	received := scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
	forwardedHost := c.GetHeader("X-Forwarded-Host")
	forwardedProto := c.GetHeader("X-Forwarded-Proto")
	return webhooksig.BuildURLCandidates(received, forwardedHost, forwardedProto)
}
