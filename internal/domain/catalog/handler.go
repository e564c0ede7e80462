package catalog

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicsys/clinic/internal/platform/apperr"
	"github.com/clinicsys/clinic/internal/platform/auth"
	"github.com/clinicsys/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist, auth.RolePharmacist))
	read.GET("/services", h.ListServices)
	read.GET("/services/:id", h.GetService)
	read.GET("/services/:id/indicators", h.ListServiceIndicators)
	read.GET("/indicators", h.ListIndicators)
	read.GET("/indicators/:id", h.GetIndicator)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin))
	write.POST("/services", h.CreateService)
	write.PUT("/services/:id", h.UpdateService)
	write.DELETE("/services/:id", h.DeleteService)
	write.PUT("/services/:id/indicators", h.SetServiceIndicators)
	write.POST("/indicators", h.CreateIndicator)
	write.PUT("/indicators/:id", h.UpdateIndicator)
	write.DELETE("/indicators/:id", h.DeleteIndicator)
	write.POST("/shifts", h.AddShift)
	write.DELETE("/shifts/:id", h.RemoveShift)
}

func (h *Handler) CreateService(c echo.Context) error {
	var ms MedicalService
	if err := c.Bind(&ms); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateMedicalService(c.Request().Context(), &ms); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, ms)
}

func (h *Handler) GetService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ms, err := h.svc.GetMedicalService(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, ms)
}

func (h *Handler) ListServices(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMedicalServices(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var ms MedicalService
	if err := c.Bind(&ms); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ms.ID = id
	if err := h.svc.UpdateMedicalService(c.Request().Context(), &ms); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, ms)
}

func (h *Handler) DeleteService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteMedicalService(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListServiceIndicators(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListServiceIndicators(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) SetServiceIndicators(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var mappings []*ServiceIndicator
	if err := c.Bind(&mappings); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetServiceIndicators(c.Request().Context(), id, mappings); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, mappings)
}

func (h *Handler) CreateIndicator(c echo.Context) error {
	var t IndicatorTemplate
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateIndicator(c.Request().Context(), &t); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetIndicator(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetIndicator(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListIndicators(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListIndicators(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateIndicator(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var t IndicatorTemplate
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
	if err := h.svc.UpdateIndicator(c.Request().Context(), &t); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteIndicator(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteIndicator(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddShift(c echo.Context) error {
	var w WorkShift
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddShift(c.Request().Context(), &w); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) RemoveShift(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.RemoveShift(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
