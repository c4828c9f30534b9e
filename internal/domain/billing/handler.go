package billing

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/auth"
	"github.com/Nobledental/NOBLE-OS-sub004/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/tariffs", auth.RequireRole("front-desk"))
	g.GET("", h.ListTariffs)
	g.POST("", h.UpsertTariff)
	g.GET("/:code", h.GetTariff)
	g.GET("/:code/bom", h.GetBOM)
	g.POST("/:code/bom", h.SetBOM)
}

func (h *Handler) UpsertTariff(c echo.Context) error {
	var in TariffItem
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.UpsertTariff(c.Request().Context(), &in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, in)
}

func (h *Handler) GetTariff(c echo.Context) error {
	t, err := h.svc.GetTariff(c.Request().Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, ErrTariffNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTariffs(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListTariffs(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) SetBOM(c echo.Context) error {
	var in struct {
		Lines []BOMLine `json:"lines"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.SetBOM(c.Request().Context(), c.Param("code"), in.Lines); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetBOM(c echo.Context) error {
	lines, err := h.svc.GetBOM(c.Request().Context(), c.Param("code"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if lines == nil {
		lines = []BOMLine{}
	}
	return c.JSON(http.StatusOK, lines)
}
