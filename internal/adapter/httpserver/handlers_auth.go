package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
	apperrors "github.com/svssathvik7/catalog-pollings-backend/internal/platform/errors"
)

func (s *Server) registerAuthRoutes() {
	auth := s.echo.Group("/api/auth")
	if s.config.DevLoginEnabled && s.identities != nil {
		auth.POST("/login", s.handleLogin, loginLimit.middleware())
	}
	auth.POST("/logout", s.handleLogout)
	auth.GET("/me", s.handleMe, s.requireAuth)
}

type sessionResponse struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var cred domain.Credential
	if err := c.Bind(&cred); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	identity, err := s.identities.Verify(c.Request().Context(), cred)
	if err != nil {
		return err
	}

	token, expiresAt, err := s.sessions.Issue(identity)
	if err != nil {
		return apperrors.InternalError("failed to issue session", err)
	}

	maxAge := int(expiresAt.Sub(s.clock.Now()).Seconds())
	s.setSessionCookie(c, token, maxAge)

	if err := c.JSON(http.StatusOK, sessionResponse{Username: identity, ExpiresAt: expiresAt}); err != nil {
		return fmt.Errorf("failed to write login response: %w", err)
	}
	return nil
}

func (s *Server) handleLogout(c echo.Context) error {
	s.clearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMe(c echo.Context) error {
	if err := c.JSON(http.StatusOK, sessionResponse{Username: userID(c)}); err != nil {
		return fmt.Errorf("failed to write session response: %w", err)
	}
	return nil
}
