package prescription

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the prescription endpoints on g, a /prescriptions
// group that is expected to carry the bearer token middleware.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.CreatePrescription)
	g.GET("/:id", h.GetPrescription)
	g.GET("/patient/:patientId", h.GetPatientDetails)
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	var req CreatePrescriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	id, err := h.svc.CreatePrescription(c.Request().Context(), &req)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "an error occurred while creating the prescription").SetInternal(err)
	}

	c.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("/prescriptions/%d", id))
	return c.JSON(http.StatusCreated, CreatedResponse{ID: id})
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	pd, err := h.svc.GetPrescription(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrPrescriptionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("prescription with ID %d not found", id))
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "an error occurred while retrieving the prescription").SetInternal(err)
	}
	return c.JSON(http.StatusOK, pd)
}

func (h *Handler) GetPatientDetails(c echo.Context) error {
	id, err := parseID(c, "patientId")
	if err != nil {
		return err
	}

	detail, err := h.svc.GetPatientDetails(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("patient with ID %d not found", id))
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "an error occurred while retrieving patient details").SetInternal(err)
	}
	return c.JSON(http.StatusOK, detail)
}
