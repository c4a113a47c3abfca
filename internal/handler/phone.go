package handler

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coachline/internal/apperr"
	"coachline/internal/ratelimit"
	"coachline/internal/repository"
)

const (
	phoneRateLimit  = 20
	phoneRateWindow = 600 * time.Second
)

var e164Shape = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// PhoneHandler is the out-of-core PUT /phone collaborator (spec.md §6): a
// coarse-shape-checked number set/confirm, gated by a rate limiter and a
// conflict check.
type PhoneHandler interface {
	Handle(c *gin.Context)
}

type phoneHandler struct {
	caseRepo    repository.CaseRepository
	limiter     *ratelimit.Limiter
	overrideKey string
	logger      *zap.Logger
}

func NewPhoneHandler(caseRepo repository.CaseRepository, limiter *ratelimit.Limiter, overrideKey string, logger *zap.Logger) PhoneHandler {
	return &phoneHandler{caseRepo: caseRepo, limiter: limiter, overrideKey: overrideKey, logger: logger}
}

type phoneRequest struct {
	Slug        string `json:"slug" binding:"required"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
}

func (h *phoneHandler) Handle(c *gin.Context) {
	var req phoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, err.Error(), err))
		return
	}
	if !e164Shape.MatchString(req.PhoneNumber) {
		respondError(c, apperr.New(apperr.KindBadRequest, "phoneNumber must be E.164-shaped"))
		return
	}

	if ok, retryAfter := h.limiter.Take("ip:"+c.ClientIP(), phoneRateLimit, phoneRateWindow); !ok {
		respondError(c, apperr.RateLimited("too many requests, try again later", int(retryAfter.Seconds())))
		return
	}

	override := h.overrideKey != "" && c.GetHeader("X-Phone-Override-Token") == h.overrideKey

	if err := h.caseRepo.SetPhoneNumber(c.Request.Context(), req.Slug, req.PhoneNumber, override); err != nil {
		if errors.Is(err, repository.ErrCaseNotFound) {
			respondError(c, apperr.New(apperr.KindNotFound, "unknown slug"))
			return
		}
		if errors.Is(err, repository.ErrPhoneAlreadySet) {
			respondError(c, apperr.New(apperr.KindConflict, "a different phone number is already on file for this case"))
			return
		}
		h.logger.Error("failed to set phone number", zap.String("slug", req.Slug), zap.Error(err))
		respondError(c, apperr.Wrap(apperr.KindInternal, "failed to set phone number", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
