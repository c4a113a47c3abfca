package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"coachline/internal/apperr"
	"coachline/internal/models"
)

// abortWith mirrors handler.respondError's apperr.Kind-to-status mapping for
// middleware, which aborts the chain rather than just writing a response.
func abortWith(c *gin.Context, kind apperr.Kind, message string) {
	c.JSON(kind.StatusCode(), gin.H{"error": message})
	c.Abort()
}

// OperatorAuth authenticates the oversight admin API with a Bearer JWT
// issued by service.AuthService.Login, adapted from the teacher's
// AuthMiddleware (role claim dropped; secret is injected rather than a
// package-level global so main.go can wire it from config).
func OperatorAuth(jwtSecret []byte, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, apperr.KindUnauthorized, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWith(c, apperr.KindUnauthorized, "Authorization header format must be Bearer <token>")
			return
		}

		claims := &models.Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return jwtSecret, nil
		})

		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortWith(c, apperr.KindUnauthorized, "token expired")
				return
			}
			logger.Warn("invalid JWT token", zap.Error(err))
			abortWith(c, apperr.KindUnauthorized, "invalid token")
			return
		}

		if !token.Valid {
			abortWith(c, apperr.KindUnauthorized, "invalid token")
			return
		}

		c.Set("operatorUsername", claims.Username)
		c.Next()
	}
}
