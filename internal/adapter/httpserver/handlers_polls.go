package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
	apperrors "github.com/svssathvik7/catalog-pollings-backend/internal/platform/errors"
)

func (s *Server) registerPollRoutes() {
	polls := s.echo.Group("/api/polls")
	polls.POST("", s.handleCreatePoll, s.requireAuth, createLimit.middleware())
	polls.GET("/:id", s.handleGetPoll, s.optionalAuth)
	polls.POST("/:id/vote", s.handleVote, s.requireAuth, voteLimit.middleware())
	polls.POST("/:id/close", s.handleClosePoll, s.requireAuth)
	polls.POST("/:id/reset", s.handleResetPoll, s.requireAuth)
	polls.DELETE("/:id", s.handleDeletePoll, s.requireAuth)
	polls.GET("/:id/results", s.handleGetResults)
}

type createPollRequest struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

type voteRequest struct {
	OptionID string `json:"option_id"`
}

type pollResponse struct {
	Poll     domain.PollDetail `json:"poll"`
	HasVoted bool              `json:"has_voted"`
}

func (s *Server) handleCreatePoll(c echo.Context) error {
	var req createPollRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	pollID, err := s.polls.CreatePoll(c.Request().Context(), req.Title, userID(c), req.Options)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusCreated, map[string]string{"poll_id": pollID}); err != nil {
		return fmt.Errorf("failed to write create response: %w", err)
	}
	return nil
}

func (s *Server) handleGetPoll(c echo.Context) error {
	detail, hasVoted, err := s.polls.GetPoll(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, pollResponse{Poll: detail, HasVoted: hasVoted}); err != nil {
		return fmt.Errorf("failed to write poll response: %w", err)
	}
	return nil
}

func (s *Server) handleVote(c echo.Context) error {
	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.OptionID == "" {
		return apperrors.ValidationError("option_id is required")
	}

	outcome, err := s.polls.CastVote(c.Request().Context(), c.Param("id"), userID(c), req.OptionID)
	if err != nil {
		return err
	}

	status := http.StatusOK
	if !outcome.Accepted {
		status = http.StatusConflict
	}
	if err := c.JSON(status, outcome); err != nil {
		return fmt.Errorf("failed to write vote response: %w", err)
	}
	return nil
}

func (s *Server) handleClosePoll(c echo.Context) error {
	if err := s.polls.ClosePoll(c.Request().Context(), c.Param("id"), userID(c)); err != nil {
		return err
	}
	return writeStatus(c, "closed")
}

func (s *Server) handleResetPoll(c echo.Context) error {
	if err := s.polls.ResetPoll(c.Request().Context(), c.Param("id"), userID(c)); err != nil {
		return err
	}
	return writeStatus(c, "reset")
}

func (s *Server) handleDeletePoll(c echo.Context) error {
	if err := s.polls.DeletePoll(c.Request().Context(), c.Param("id"), userID(c)); err != nil {
		return err
	}
	return writeStatus(c, "deleted")
}

func (s *Server) handleGetResults(c echo.Context) error {
	view, err := s.results.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, view); err != nil {
		return fmt.Errorf("failed to write results response: %w", err)
	}
	return nil
}

func writeStatus(c echo.Context, status string) error {
	if err := c.JSON(http.StatusOK, map[string]string{"status": status}); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}
