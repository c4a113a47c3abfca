package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"coachline/internal/apperr"
	"coachline/internal/service"
)

// AuthHandler exposes the supplemented operator-oversight bootstrap/login
// API (SPEC_FULL.md §5), adapted from the teacher's AuthHandler.
type AuthHandler interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
}

type authHandler struct {
	authService service.AuthService
	log         *logrus.Logger
}

func NewAuthHandler(authService service.AuthService, log *logrus.Logger) AuthHandler {
	return &authHandler{authService: authService, log: log}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register handles POST /api/auth/register: bootstraps the first (and only)
// operator account. Returns 409 once one already exists.
func (h *authHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, err.Error(), err))
		return
	}

	op, err := h.authService.RegisterFirstOperator(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrOperatorAlreadyExists) {
			respondError(c, apperr.Wrap(apperr.KindConflict, err.Error(), err))
			return
		}
		h.log.WithError(err).Error("failed to register operator")
		respondError(c, apperr.Wrap(apperr.KindInternal, "failed to register operator", err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"username": op.Username, "id": op.ID})
}

// Login handles POST /api/auth/login.
func (h *authHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, err.Error(), err))
		return
	}

	token, expiresAt, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrOperatorNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, apperr.New(apperr.KindUnauthorized, "invalid credentials"))
			return
		}
		h.log.WithError(err).Error("failed to log in operator")
		respondError(c, apperr.Wrap(apperr.KindInternal, "failed to log in", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": expiresAt})
}
