package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coachline/internal/apperr"
	"coachline/internal/config"
	"coachline/internal/repository"
)

// LiveHandler is C8: the read path the in-call browser view polls.
type LiveHandler interface {
	Handle(c *gin.Context)
}

type liveHandler struct {
	store  repository.LiveStore
	cfg    *config.Config
	logger *zap.Logger
}

func NewLiveHandler(store repository.LiveStore, cfg *config.Config, logger *zap.Logger) LiveHandler {
	return &liveHandler{store: store, cfg: cfg, logger: logger}
}

// longPollTimeout bounds how long GET /live?wait=1 blocks waiting for a
// row-change notification before falling back to whatever snapshot is
// current, so a caller's HTTP client timeout is never the thing that ends
// the wait.
const longPollTimeout = 25 * time.Second

type liveResponse struct {
	OK             bool                  `json:"ok"`
	CallID         string                `json:"callId"`
	Slug           string                `json:"slug"`
	Status         string                `json:"status"`
	AssistantMuted bool                  `json:"assistantMuted"`
	Analyzing      bool                  `json:"analyzing"`
	LastError      *string               `json:"lastError"`
	UpdatedAt      int64                 `json:"updatedAt"`
	Version        int64                 `json:"version"`
	Advice         interface{}           `json:"advice"`
	Transcript     []transcriptChunkView `json:"transcript"`
}

type transcriptChunkView struct {
	ID          int64  `json:"id"`
	Speaker     string `json:"speaker"`
	Text        string `json:"text"`
	TimestampMs int64  `json:"timestampMs"`
	IsFinal     bool   `json:"isFinal"`
}

// Handle serves GET /live?callId=&slug=[&wait=1]. With wait=1 it blocks
// until repository.Notifier reports a row change for callId or
// longPollTimeout elapses, then serves whatever snapshot is current; if ctx
// is cancelled first it returns without writing a response — this is what makes internal/repository/notify.go's Subscribe
// exercised rather than dead API surface.
func (h *liveHandler) Handle(c *gin.Context) {
	callID := c.Query("callId")
	slug := c.Query("slug")
	if callID == "" || slug == "" {
		respondError(c, apperr.New(apperr.KindBadRequest, "callId and slug are required"))
		return
	}

	c.Header("Cache-Control", "no-store")

	if c.Query("wait") == "1" {
		changed, cancel := h.store.Subscribe(callID)
		defer cancel()

		select {
		case <-changed:
		case <-time.After(longPollTimeout):
		case <-c.Request.Context().Done():
			return
		}
	}

	snapshot, err := h.store.GetSnapshot(c.Request.Context(), callID, slug, h.cfg.LiveTranscriptLimit)
	if err != nil {
		if errors.Is(err, repository.ErrSlugMismatch) {
			respondError(c, apperr.New(apperr.KindNotFound, "not found"))
			return
		}
		h.logger.Error("failed to load snapshot", zap.String("call_id", callID), zap.Error(err))
		respondError(c, apperr.Wrap(apperr.KindInternal, "failed to load snapshot", err))
		return
	}
	if snapshot == nil {
		respondError(c, apperr.New(apperr.KindNotFound, "not found"))
		return
	}

	transcript := make([]transcriptChunkView, 0, len(snapshot.Transcript))
	for _, chunk := range snapshot.Transcript {
		transcript = append(transcript, transcriptChunkView{
			ID:          chunk.ID,
			Speaker:     string(chunk.Speaker),
			Text:        chunk.Text,
			TimestampMs: chunk.TimestampMs,
			IsFinal:     chunk.IsFinal,
		})
	}

	c.JSON(http.StatusOK, liveResponse{
		OK:             true,
		CallID:         snapshot.CallID,
		Slug:           snapshot.Slug,
		Status:         string(snapshot.Status),
		AssistantMuted: snapshot.AssistantMuted,
		Analyzing:      snapshot.Analyzing,
		LastError:      snapshot.LastError,
		UpdatedAt:      snapshot.UpdatedAt.UnixMilli(),
		Version:        snapshot.UpdatedAt.UnixMilli(),
		Advice:         snapshot.Advice,
		Transcript:     transcript,
	})
}
