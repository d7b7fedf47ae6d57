package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/correlation"
	apperrors "github.com/svssathvik7/catalog-pollings-backend/internal/platform/errors"
)

const (
	sessionCookieName = "auth_token"
	userIDKey         = "userID"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, id := correlation.Ensure(c.Request().Context(), c.Request().Header.Get(correlation.Header))
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}

// requireAuth rejects requests without a valid session cookie. An invalid cookie is cleared.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			return apperrors.UnauthorizedError("authentication required")
		}

		identity, err := s.sessions.Validate(cookie.Value)
		if err != nil {
			s.clearSessionCookie(c)
			return apperrors.UnauthorizedError("invalid or expired session")
		}

		c.Set(userIDKey, identity)
		return next(c)
	}
}

// optionalAuth attaches the identity when a valid session cookie is present.
func (s *Server) optionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if cookie, err := c.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
			if identity, err := s.sessions.Validate(cookie.Value); err == nil {
				c.Set(userIDKey, identity)
			}
		}
		return next(c)
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			return HandleError(c, err)
		}
	}
}

// HandleError writes err as a structured JSON error response.
func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	structuredErr := apperrors.AsStructuredError(toStructured(err))
	logError(c, structuredErr)
	if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

// toStructured maps domain errors onto client-facing categories.
func toStructured(err error) error {
	var structuredErr *apperrors.Error
	if errors.As(err, &structuredErr) {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return apperrors.ValidationError(err.Error())
	case errors.Is(err, domain.ErrPollNotFound):
		return apperrors.NotFoundError("poll not found")
	case errors.Is(err, domain.ErrNotOwner):
		return apperrors.ForbiddenError("only the poll owner can do that")
	case errors.Is(err, domain.ErrInvalidIdentity):
		return apperrors.UnauthorizedError(err.Error())
	case errors.Is(err, domain.ErrInvalidSession):
		return apperrors.UnauthorizedError("invalid or expired session")
	case errors.Is(err, domain.ErrStoreUnavailable):
		return apperrors.UnavailableError("storage temporarily unavailable", err)
	default:
		return err
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	if id := userID(c); id != "" {
		attrs = append(attrs, "user_id", id)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound, apperrors.TypeUnauthorized:
		slog.InfoContext(ctx, "Client error", attrs...)
	case apperrors.TypeForbidden, apperrors.TypeConflict:
		slog.WarnContext(ctx, "Request refused", attrs...)
	case apperrors.TypeUnavailable:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Dependency unavailable", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	}
}

func (s *Server) setSessionCookie(c echo.Context, token string, maxAgeSeconds int) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAgeSeconds,
		HttpOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c echo.Context) {
	s.setSessionCookie(c, "", -1)
}
