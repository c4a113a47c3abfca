package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"coachline/internal/apperr"
)

// respondError maps err onto the HTTP status SPEC_FULL.md §7/§1 assigns its
// Kind, via errors.Is/As against apperr.Error. Anything that isn't already
// an *apperr.Error (a repository/service failure a handler didn't classify)
// is treated as KindInternal.
func respondError(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Wrap(apperr.KindInternal, "internal error", err)
	}
	if appErr.Kind == apperr.KindRateLimited && appErr.RetryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(appErr.RetryAfterSeconds))
	}
	c.JSON(appErr.Kind.StatusCode(), gin.H{"error": appErr.Message})
}
