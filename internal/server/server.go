package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coachline/internal/handler"
	"coachline/internal/middleware"
)

// Deps bundles every handler the router wires up. Built in main.go once
// all the repositories/services/workers are assembled.
type Deps struct {
	Webhook handler.WebhookHandler
	Live    handler.LiveHandler
	Call    handler.CallHandler
	Phone   handler.PhoneHandler
	Start   handler.StartHandler
	Admin   handler.AdminHandler
	Auth    handler.AuthHandler

	JWTSecret []byte
	Logger    *zap.Logger
}

type Server struct {
	router *gin.Engine
	deps   Deps
}

func NewServer(deps Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{router: router, deps: deps}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	s.router.POST("/webhook", s.deps.Webhook.Handle)
	s.router.GET("/live", s.deps.Live.Handle)
	s.router.POST("/call", s.deps.Call.Handle)
	s.router.PUT("/phone", s.deps.Phone.Handle)
	s.router.GET("/start", s.deps.Start.Handle)

	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", s.deps.Auth.Register)
	authGroup.POST("/login", s.deps.Auth.Login)

	adminGroup := s.router.Group("/api/admin")
	adminGroup.Use(middleware.OperatorAuth(s.deps.JWTSecret, s.deps.Logger))
	adminGroup.GET("/sessions", s.deps.Admin.ListSessions)
	adminGroup.POST("/sessions/:callId/refresh", s.deps.Admin.RefreshSession)
}

func (s *Server) Run(addr string) error {
	s.deps.Logger.Info("server starting", zap.String("addr", addr))
	return s.router.Run(addr)
}
