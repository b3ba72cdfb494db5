package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hoangnm/court-booking/internal/model"
	"github.com/hoangnm/court-booking/internal/repository"
)

// CenterHandler serves the center and court catalogue.
type CenterHandler struct {
	Centers *repository.CenterRepo
	Courts  *repository.CourtRepo
}

// NewCenterHandler returns the center handler.  Dependencies are required.
func NewCenterHandler(centers *repository.CenterRepo, courts *repository.CourtRepo) *CenterHandler {
	if centers == nil || courts == nil {
		panic("NewCenterHandler: nil dependency")
	}
	return &CenterHandler{Centers: centers, Courts: courts}
}

type createCenterReq struct {
	Name              string  `json:"name"`
	Address           string  `json:"address"`
	District          string  `json:"district"`
	City              string  `json:"city"`
	PhoneNo           string  `json:"phone_no"`
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	PricePerHourCents uint32  `json:"price_per_hour_cents"`
}

// CreateCenter handles POST /v1/centers for owners.
func (h *CenterHandler) CreateCenter(c echo.Context) error {
	var req createCenterReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	if req.PricePerHourCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_per_hour_cents is required"})
	}

	center := &model.Center{
		Name:              req.Name,
		Address:           req.Address,
		District:          req.District,
		City:              req.City,
		PhoneNo:           req.PhoneNo,
		Lat:               req.Lat,
		Lng:               req.Lng,
		PricePerHourCents: req.PricePerHourCents,
	}
	if err := h.Centers.Create(c.Request().Context(), center); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create center"})
	}
	return c.JSON(http.StatusCreated, center)
}

// ListCenters handles GET /v1/centers.
func (h *CenterHandler) ListCenters(c echo.Context) error {
	centers, err := h.Centers.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list centers"})
	}
	return c.JSON(http.StatusOK, echo.Map{"centers": centers})
}

// GetCenter handles GET /v1/centers/:id and includes the center's courts.
func (h *CenterHandler) GetCenter(c echo.Context) error {
	id := c.Param("id")
	center, err := h.Centers.GetByID(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "center not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load center"})
	}
	courts, err := h.Courts.ListByCenter(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load courts"})
	}
	return c.JSON(http.StatusOK, echo.Map{"center": center, "courts": courts})
}

type createCourtReq struct {
	CourtNo int `json:"court_no"`
}

// CreateCourt handles POST /v1/centers/:id/courts for owners.
func (h *CenterHandler) CreateCourt(c echo.Context) error {
	centerID := c.Param("id")
	if _, err := h.Centers.GetByID(c.Request().Context(), centerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "center not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load center"})
	}

	var req createCourtReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.CourtNo < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "court_no must be positive"})
	}

	court := &model.Court{CenterID: centerID, CourtNo: uint32(req.CourtNo)}
	if err := h.Courts.Create(c.Request().Context(), court); err != nil {
		if strings.Contains(err.Error(), "1062") { // duplicate court_no within center
			return c.JSON(http.StatusConflict, echo.Map{"error": "court number already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create court"})
	}
	return c.JSON(http.StatusCreated, court)
}

// ListCourts handles GET /v1/centers/:id/courts.
func (h *CenterHandler) ListCourts(c echo.Context) error {
	centerID := c.Param("id")
	courts, err := h.Courts.ListByCenter(c.Request().Context(), centerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list courts"})
	}
	return c.JSON(http.StatusOK, echo.Map{"courts": courts})
}
