package study

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rispacs/ris/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/studies", h.List)
	api.GET("/studies/:id", h.Get)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	studies, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(studies, total, pg.Limit, pg.Offset))
}

// Get accepts either a database id or a Study Instance UID.
func (h *Handler) Get(c echo.Context) error {
	param := c.Param("id")
	ctx := c.Request().Context()

	var (
		s   *Study
		err error
	)
	if id, parseErr := uuid.Parse(param); parseErr == nil {
		s, err = h.svc.Get(ctx, id)
	} else {
		s, err = h.svc.GetByUID(ctx, param)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "study not found")
	}
	return c.JSON(http.StatusOK, s)
}
