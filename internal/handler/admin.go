package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coachline/internal/apperr"
	"coachline/internal/models"
	"coachline/internal/repository"
	"coachline/internal/statemachine"
	"coachline/internal/telephony"
)

// AdminHandler is the supplemented oversight surface (SPEC_FULL.md §5):
// JWT-protected, read-only, cross-slug session listing, plus a one-shot
// status refresh for a session whose webhook delivery went missing.
// Adapted from the teacher's incidentHandler.GetAllIncidents status filter.
type AdminHandler interface {
	ListSessions(c *gin.Context)
	RefreshSession(c *gin.Context)
}

type adminHandler struct {
	store     repository.LiveStore
	telephony *telephony.Client
	logger    *zap.Logger
}

func NewAdminHandler(store repository.LiveStore, telephonyClient *telephony.Client, logger *zap.Logger) AdminHandler {
	return &adminHandler{store: store, telephony: telephonyClient, logger: logger}
}

// ListSessions handles GET /api/admin/sessions?status=&page=&pageSize=
func (h *adminHandler) ListSessions(c *gin.Context) {
	var statusFilter *models.Status
	if raw := c.Query("status"); raw != "" {
		s := models.Status(raw)
		statusFilter = &s
	}

	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(c, "pageSize", 50)
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	sessions, total, err := h.store.ListSessions(c.Request.Context(), statusFilter, pageSize, (page-1)*pageSize)
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))
		respondError(c, apperr.Wrap(apperr.KindInternal, "failed to list sessions", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// RefreshSession handles POST /api/admin/sessions/:callId/refresh. It polls
// the provider directly for callId's current status, the oversight-view
// fallback for a session that hasn't received a webhook in a while, and
// persists whatever statemachine.NextStatus resolves that status to; a
// session already in a terminal status is left unchanged.
func (h *adminHandler) RefreshSession(c *gin.Context) {
	callID := c.Param("callId")
	if callID == "" {
		respondError(c, apperr.New(apperr.KindBadRequest, "callId is required"))
		return
	}

	ctx := c.Request.Context()
	summary, err := h.store.GetSummary(ctx, callID)
	if err != nil {
		h.logger.Error("failed to load session for refresh", zap.String("call_id", callID), zap.Error(err))
		respondError(c, apperr.Wrap(apperr.KindInternal, "failed to load session", err))
		return
	}
	if summary == nil {
		respondError(c, apperr.New(apperr.KindNotFound, "unknown call id"))
		return
	}

	current, err := h.telephony.GetCallStatus(ctx, callID)
	if err != nil {
		h.logger.Error("failed to poll provider for call status", zap.String("call_id", callID), zap.Error(err))
		respondError(c, apperr.Wrap(apperr.KindInternal, "failed to refresh session", err))
		return
	}

	next, ok := statemachine.NextStatus(summary.Status, current.Status)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"ok": true, "callId": callID, "status": string(summary.Status), "refreshed": false})
		return
	}

	if err := h.store.SetStatus(ctx, callID, next, nil); err != nil {
		if errors.Is(err, repository.ErrCaseNotFound) {
			respondError(c, apperr.New(apperr.KindNotFound, "unknown call id"))
			return
		}
		h.logger.Error("failed to persist refreshed status", zap.String("call_id", callID), zap.Error(err))
		respondError(c, apperr.Wrap(apperr.KindInternal, "failed to refresh session", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "callId": callID, "status": string(next), "refreshed": true})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
