package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/svssathvik7/catalog-pollings-backend/internal/app"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
	apperrors "github.com/svssathvik7/catalog-pollings-backend/internal/platform/errors"
)

func (s *Server) registerListingRoutes() {
	s.echo.GET("/api/polls/live", s.handleListLive)
	s.echo.GET("/api/polls/closed", s.handleListClosed)
	s.echo.GET("/api/users/:username/polls", s.handleListByOwner)
}

func (s *Server) handleListLive(c echo.Context) error {
	page, perPage, err := pagination(c)
	if err != nil {
		return err
	}

	result, err := s.polls.ListLive(c.Request().Context(), page, perPage)
	if err != nil {
		return err
	}
	return writePage(c, result)
}

func (s *Server) handleListClosed(c echo.Context) error {
	page, perPage, err := pagination(c)
	if err != nil {
		return err
	}

	result, err := s.polls.ListClosed(c.Request().Context(), page, perPage)
	if err != nil {
		return err
	}
	return writePage(c, result)
}

func (s *Server) handleListByOwner(c echo.Context) error {
	page, perPage, err := pagination(c)
	if err != nil {
		return err
	}

	sortBy := domain.ParsePollSort(c.QueryParam("sort_by"))
	ascending := c.QueryParam("sort_order") == "asc"

	result, err := s.polls.ListByOwner(c.Request().Context(), c.Param("username"), sortBy, ascending, page, perPage)
	if err != nil {
		return err
	}
	return writePage(c, result)
}

// pagination reads page and per_page. Absent values are zero and get the listing's defaults.
func pagination(c echo.Context) (int, int, error) {
	page, err := intQuery(c, "page")
	if err != nil {
		return 0, 0, err
	}
	perPage, err := intQuery(c, "per_page")
	if err != nil {
		return 0, 0, err
	}
	return page, perPage, nil
}

func intQuery(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.ValidationError(name + " must be an integer").WithField("value", raw)
	}
	return n, nil
}

func writePage(c echo.Context, page app.Page) error {
	if err := c.JSON(http.StatusOK, page); err != nil {
		return fmt.Errorf("failed to write listing response: %w", err)
	}
	return nil
}
