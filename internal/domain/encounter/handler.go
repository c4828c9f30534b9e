package encounter

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/chart"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	enc := api.Group("/encounters", auth.RequireRole("dentist", "assistant", "front-desk"))
	enc.POST("", h.Begin)
	enc.GET("/:id", h.Get)
	enc.GET("/:id/stage-history", h.StageHistory)
	enc.GET("/:id/diagnoses", h.ListDiagnoses)
	enc.GET("/:id/treatments", h.ListTreatments)

	clinical := api.Group("/encounters", auth.RequireRole("dentist", "assistant"))
	clinical.POST("/:id/tooth-events", h.RecordToothEvent)

	dentist := api.Group("", auth.RequireRole("dentist"))
	dentist.POST("/encounters/:id/advance", h.Advance)
	dentist.POST("/encounters/:id/abandon", h.Abandon)
	dentist.POST("/encounters/:id/diagnoses", h.AddDiagnosis)
	dentist.POST("/encounters/:id/treatments", h.PlanTreatment)
	dentist.POST("/treatments/:id/start", h.StartProcedure)
	dentist.POST("/treatments/:id/complete", h.CompleteProcedure)
	dentist.POST("/treatments/:id/cancel", h.CancelTreatment)
}

func (h *Handler) Begin(c echo.Context) error {
	var in struct {
		PatientID  uuid.UUID `json:"patient_id"`
		DoctorID   uuid.UUID `json:"doctor_id"`
		PatientAge int       `json:"patient_age"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	enc, err := h.svc.Begin(c.Request().Context(), in.PatientID, in.DoctorID, in.PatientAge)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, enc)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	enc, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, enc)
}

func (h *Handler) Advance(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	enc, err := h.svc.Advance(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, enc)
}

func (h *Handler) Abandon(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	enc, err := h.svc.Abandon(c.Request().Context(), id, in.Reason)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, enc)
}

func (h *Handler) StageHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	history, err := h.svc.StageHistory(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, history)
}

func (h *Handler) RecordToothEvent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var ev chart.ToothEvent
	if err := c.Bind(&ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	snap, err := h.svc.RecordToothEvent(c.Request().Context(), id, ev)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) AddDiagnosis(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.AddDiagnosis(c.Request().Context(), id, in.Text)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDiagnoses(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	diags, err := h.svc.ListDiagnoses(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	if diags == nil {
		diags = []*Diagnosis{}
	}
	return c.JSON(http.StatusOK, diags)
}

func (h *Handler) PlanTreatment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var rec TreatmentRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.PlanTreatment(c.Request().Context(), id, &rec)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) ListTreatments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	recs, err := h.svc.ListTreatments(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	if recs == nil {
		recs = []*TreatmentRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}

func (h *Handler) StartProcedure(c echo.Context) error {
	return h.treatmentTransition(c, h.svc.StartProcedure)
}

func (h *Handler) CompleteProcedure(c echo.Context) error {
	return h.treatmentTransition(c, h.svc.CompleteProcedure)
}

func (h *Handler) CancelTreatment(c echo.Context) error {
	return h.treatmentTransition(c, h.svc.CancelTreatment)
}

func (h *Handler) treatmentTransition(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*TreatmentRecord, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := fn(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// domainError maps state-machine failures to HTTP codes.
func domainError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrStageIncomplete):
		return echo.NewHTTPError(http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, ErrStageMismatch),
		errors.Is(err, ErrEncounterTerminal),
		errors.Is(err, ErrTreatmentCancelled),
		errors.Is(err, ErrStageConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, chart.ErrInvalidTooth), errors.Is(err, chart.ErrToothMissing):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
