package financial

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/clinic/dashboard/internal/platform/apperr"
	"github.com/clinic/dashboard/internal/platform/auth"
	"github.com/clinic/dashboard/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/financial", auth.RequireRole(auth.RoleStaff))
	g.GET("/records", h.ListRecords)
	g.POST("/records", h.CreateRecord)
	g.GET("/records/:id", h.GetRecord)
	g.PUT("/records/:id", h.UpdateRecord)
	g.DELETE("/records/:id", h.DeleteRecord)
	g.GET("/summary", h.Summary)
	g.GET("/by-category", h.ByCategory)
	g.GET("/monthly", h.Monthly)
}

// recordRequest takes occurred_on as a plain date.
type recordRequest struct {
	Kind        Kind            `json:"kind"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	PatientID   *uuid.UUID      `json:"patient_id"`
	OccurredOn  string          `json:"occurred_on"`
}

func (req recordRequest) record() (*Record, error) {
	r := &Record{
		Kind:        req.Kind,
		Category:    req.Category,
		Amount:      req.Amount,
		Description: req.Description,
		PatientID:   req.PatientID,
	}
	if req.OccurredOn != "" {
		d, err := time.Parse(dateLayout, req.OccurredOn)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "occurred_on must be YYYY-MM-DD")
		}
		r.OccurredOn = d
	}
	return r, nil
}

func (h *Handler) CreateRecord(c echo.Context) error {
	var req recordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := req.record()
	if err != nil {
		return err
	}
	if err := h.svc.CreateRecord(c.Request().Context(), r); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req recordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := req.record()
	if err != nil {
		return err
	}
	r.ID = id
	if err := h.svc.UpdateRecord(c.Request().Context(), r); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteRecord(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListRecords(c echo.Context) error {
	from, to, err := parseRange(c)
	if err != nil {
		return err
	}
	f := Filter{Kind: Kind(c.QueryParam("kind")), Category: c.QueryParam("category"), From: from, To: to}
	pg := pagination.FromContext(c)
	records, total, err := h.svc.ListRecords(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, pg.Limit, pg.Offset))
}

func (h *Handler) Summary(c echo.Context) error {
	from, to, err := parseRange(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Summary(c.Request().Context(), from, to)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ByCategory(c echo.Context) error {
	from, to, err := parseRange(c)
	if err != nil {
		return err
	}
	out, err := h.svc.ByCategory(c.Request().Context(), from, to)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Monthly(c echo.Context) error {
	from, to, err := parseRange(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Monthly(c.Request().Context(), from, to)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func parseRange(c echo.Context) (from, to time.Time, err error) {
	parse := func(name string) (time.Time, error) {
		v := c.QueryParam(name)
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be YYYY-MM-DD")
		}
		return t, nil
	}
	if from, err = parse("from"); err != nil {
		return
	}
	to, err = parse("to")
	return
}
