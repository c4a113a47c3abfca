package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coachline/internal/apperr"
	"coachline/internal/models"
	"coachline/internal/ratelimit"
	"coachline/internal/repository"
	"coachline/internal/telephony"
)

const (
	callRateLimit    = 5
	callRateWindow   = 60 * time.Second
	callSlugCooldown = 30 * time.Second
)

// CallHandler is the out-of-core POST /call collaborator (spec.md §6):
// rate-limited outbound call placement.
type CallHandler interface {
	Handle(c *gin.Context)
}

type callHandler struct {
	telephony *telephony.Client
	store     repository.LiveStore
	caseRepo  repository.CaseRepository
	limiter   *ratelimit.Limiter
	logger    *zap.Logger
}

func NewCallHandler(telephonyClient *telephony.Client, store repository.LiveStore, caseRepo repository.CaseRepository, limiter *ratelimit.Limiter, logger *zap.Logger) CallHandler {
	return &callHandler{telephony: telephonyClient, store: store, caseRepo: caseRepo, limiter: limiter, logger: logger}
}

type callRequest struct {
	Slug string `json:"slug" binding:"required"`
}

func (h *callHandler) Handle(c *gin.Context) {
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, err.Error(), err))
		return
	}

	if ok, retryAfter := h.limiter.Take("ip:"+c.ClientIP(), callRateLimit, callRateWindow); !ok {
		respondError(c, apperr.RateLimited("too many call requests, try again shortly", int(retryAfter.Seconds())))
		return
	}
	if ok, remaining := h.limiter.TakeCooldown("slug:"+req.Slug, callSlugCooldown); !ok {
		msg := fmt.Sprintf("a call was just placed for this case, try again in %d seconds", int(remaining.Seconds()))
		respondError(c, apperr.RateLimited(msg, int(remaining.Seconds())))
		return
	}

	ctx := c.Request.Context()
	if _, err := h.caseRepo.GetBySlug(ctx, req.Slug); err != nil {
		if errors.Is(err, repository.ErrCaseNotFound) {
			respondError(c, apperr.New(apperr.KindNotFound, "unknown slug"))
			return
		}
		h.logger.Error("failed to load case", zap.String("slug", req.Slug), zap.Error(err))
		respondError(c, apperr.Wrap(apperr.KindInternal, "failed to place call", err))
		return
	}

	placed, err := h.telephony.PlaceCall(ctx, req.Slug)
	if err != nil {
		h.logger.Error("failed to place call", zap.String("slug", req.Slug), zap.Error(err))
		respondError(c, apperr.Wrap(apperr.KindInternal, "failed to place call", err))
		return
	}

	queued := models.StatusQueued
	if err := h.store.UpsertSession(ctx, placed.CallID, req.Slug, &queued); err != nil {
		h.logger.Error("failed to upsert placed call session", zap.String("call_id", placed.CallID), zap.Error(err))
		respondError(c, apperr.Wrap(apperr.KindInternal, "failed to place call", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "callId": placed.CallID, "status": placed.Status})
}
