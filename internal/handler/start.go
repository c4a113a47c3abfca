package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"coachline/internal/apperr"
	"coachline/internal/repository"
)

// StartHandler is the out-of-core GET /start provisioning stub (spec.md
// §6): mints a fresh slug and redirects into the (unimplemented) browser
// view.
type StartHandler interface {
	Handle(c *gin.Context)
}

type startHandler struct {
	caseRepo repository.CaseRepository
	logger   *zap.Logger
}

func NewStartHandler(caseRepo repository.CaseRepository, logger *zap.Logger) StartHandler {
	return &startHandler{caseRepo: caseRepo, logger: logger}
}

func (h *startHandler) Handle(c *gin.Context) {
	slug := newSlug()

	if err := h.caseRepo.Create(c.Request.Context(), slug); err != nil {
		h.logger.Error("failed to provision case", zap.String("slug", slug), zap.Error(err))
		respondError(c, apperr.Wrap(apperr.KindInternal, "failed to provision case", err))
		return
	}

	c.Redirect(http.StatusFound, "/t/"+slug)
}

// newSlug mints a lowercase-alnum-or-hyphen slug in the 3-64 char shape a
// UUID already satisfies once hyphens are kept and case is lowered.
func newSlug() string {
	raw := strings.ToLower(uuid.NewString())
	if len(raw) > 64 {
		raw = raw[:64]
	}
	return raw
}
