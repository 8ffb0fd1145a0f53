package inventory

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/dashboard/internal/platform/apperr"
	"github.com/clinic/dashboard/internal/platform/auth"
	"github.com/clinic/dashboard/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the staff API. Vendor-facing link routes are mounted
// separately by RegisterPublicRoutes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.RoleStaff))

	staff.GET("/vendors", h.ListVendors)
	staff.POST("/vendors", h.CreateVendor)
	staff.GET("/vendors/:id", h.GetVendor)
	staff.PUT("/vendors/:id", h.UpdateVendor)
	staff.DELETE("/vendors/:id", h.DeleteVendor)

	staff.GET("/stock-items", h.ListStockItems)
	staff.POST("/stock-items", h.CreateStockItem)
	staff.GET("/stock-items/reorder-gate", h.ReorderGate)
	staff.POST("/stock-items/reorder", h.Reorder)
	staff.GET("/stock-items/:id", h.GetStockItem)
	staff.PUT("/stock-items/:id", h.UpdateStockItem)
	staff.DELETE("/stock-items/:id", h.DeleteStockItem)

	staff.GET("/orders", h.ListOrders)
	staff.POST("/orders/confirm", h.ConfirmOrders)
	staff.POST("/orders/reject", h.RejectOrders)
	staff.GET("/orders/:id", h.GetOrder)
	staff.POST("/orders/:id/confirm", h.ConfirmOrder)
	staff.POST("/orders/:id/reject", h.RejectOrder)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// parseIDList accepts ids=a,b and ids=a&ids=b.
func parseIDList(values []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id "+part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// -- Vendors --

func (h *Handler) CreateVendor(c echo.Context) error {
	var v Vendor
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateVendor(c.Request().Context(), &v); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetVendor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetVendor(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdateVendor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var v Vendor
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v.ID = id
	if err := h.svc.UpdateVendor(c.Request().Context(), &v); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteVendor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteVendor(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListVendors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListVendors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Stock items --

func (h *Handler) CreateStockItem(c echo.Context) error {
	var item StockItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateStockItem(c.Request().Context(), &item); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) GetStockItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	item, err := h.svc.GetStockItem(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) UpdateStockItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var item StockItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item.ID = id
	if err := h.svc.UpdateStockItem(c.Request().Context(), &item); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) DeleteStockItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteStockItem(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListStockItems(c echo.Context) error {
	pg := pagination.FromContext(c)
	low := c.QueryParam("low") == "true"
	items, total, err := h.svc.ListStockItems(c.Request().Context(), low, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ReorderGate(c echo.Context) error {
	ids, err := parseIDList(c.QueryParams()["ids"])
	if err != nil {
		return err
	}
	gate, err := h.svc.ReorderGate(c.Request().Context(), ids)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, gate)
}

type idsRequest struct {
	IDs    []uuid.UUID `json:"ids"`
	Reason string      `json:"reason,omitempty"`
}

func (h *Handler) Reorder(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req idsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Reorder(c.Request().Context(), actor, req.IDs)
	if err != nil {
		var blocked *ReorderBlockedError
		if errors.As(err, &blocked) {
			return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
				"message": apperr.HTTPError(err).Message,
				"gate":    blocked.Gate,
			})
		}
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// -- Orders --

func (h *Handler) ListOrders(c echo.Context) error {
	pg := pagination.FromContext(c)
	status := OrderStatus(strings.ToUpper(c.QueryParam("status")))
	items, total, err := h.svc.ListOrders(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ConfirmOrder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.ConfirmOrder(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) RejectOrder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req idsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.svc.RejectOrder(c.Request().Context(), id, req.Reason)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ConfirmOrders(c echo.Context) error {
	var req idsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.IDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "ids is required")
	}
	return c.JSON(http.StatusOK, h.svc.ConfirmOrders(c.Request().Context(), req.IDs))
}

func (h *Handler) RejectOrders(c echo.Context) error {
	var req idsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.IDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "ids is required")
	}
	res, err := h.svc.RejectOrders(c.Request().Context(), req.IDs, req.Reason)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}
