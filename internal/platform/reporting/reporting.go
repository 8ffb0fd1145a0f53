package reporting

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/dashboard/internal/platform/apperr"
	"github.com/clinic/dashboard/internal/platform/auth"
	"github.com/clinic/dashboard/internal/platform/db"
)

const dateLayout = "2006-01-02"

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"-"`
	Parameters  []string `json:"parameters"`

	// bind turns query parameters into SQL arguments.
	bind func(params map[string]string, now time.Time) ([]interface{}, map[string]string, error)
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "patient-count",
		Name:        "Patient Count",
		Description: "Total number of patients and how many have a portal account",
		SQL:         `SELECT COUNT(*) AS total, COUNT(user_id) AS with_account FROM patients`,
		Parameters:  []string{},
	},
	{
		ID:          "appointments-by-status",
		Name:        "Appointments by Status",
		Description: "Number of appointments in each status",
		SQL:         `SELECT status, COUNT(*) AS total FROM appointments GROUP BY status ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "prescriptions-by-status",
		Name:        "Prescriptions by Status",
		Description: "Number of prescriptions in each status",
		SQL:         `SELECT status, COUNT(*) AS total FROM prescriptions GROUP BY status ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "orders-by-status",
		Name:        "Orders by Status",
		Description: "Number of stock orders in each status and their value",
		SQL: `SELECT o.status, COUNT(*) AS total, COALESCE(SUM(o.quantity * s.price_per_unit), 0)::text AS value
			FROM orders o JOIN stock_items s ON s.id = o.stock_item_id
			GROUP BY o.status ORDER BY total DESC`,
		Parameters: []string{},
	},
	{
		ID:          "low-stock-items",
		Name:        "Low Stock Items",
		Description: "Stock items at or below their minimum quantity, grouped by vendor",
		SQL: `SELECT s.id, s.name, s.quantity, s.minimum_quantity, s.status, v.name AS vendor
			FROM stock_items s JOIN vendors v ON v.id = s.vendor_id
			WHERE s.quantity <= s.minimum_quantity
			ORDER BY v.name, s.name`,
		Parameters: []string{},
	},
	{
		ID:          "revenue-by-month",
		Name:        "Revenue by Month",
		Description: "Income, expense and net per calendar month between from and to (YYYY-MM-DD)",
		SQL: `SELECT to_char(date_trunc('month', occurred_on), 'YYYY-MM') AS month,
				COALESCE(SUM(amount) FILTER (WHERE kind = 'INCOME'), 0)::text AS income,
				COALESCE(SUM(amount) FILTER (WHERE kind = 'EXPENSE'), 0)::text AS expense,
				(COALESCE(SUM(amount) FILTER (WHERE kind = 'INCOME'), 0) -
				 COALESCE(SUM(amount) FILTER (WHERE kind = 'EXPENSE'), 0))::text AS net
			FROM financial_records
			WHERE occurred_on BETWEEN $1 AND $2
			GROUP BY 1 ORDER BY 1`,
		Parameters: []string{"from", "to"},
		bind:       bindPeriod,
	},
}

// bindPeriod reads from and to, defaulting to the twelve months ending today.
func bindPeriod(params map[string]string, now time.Time) ([]interface{}, map[string]string, error) {
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := time.Date(to.Year(), to.Month()-11, 1, 0, 0, 0, 0, time.UTC)
	var err error
	if v := params["from"]; v != "" {
		if from, err = time.Parse(dateLayout, v); err != nil {
			return nil, nil, apperr.Validation("from must be YYYY-MM-DD")
		}
	}
	if v := params["to"]; v != "" {
		if to, err = time.Parse(dateLayout, v); err != nil {
			return nil, nil, apperr.Validation("to must be YYYY-MM-DD")
		}
	}
	if to.Before(from) {
		return nil, nil, apperr.Validation("from must not be after to")
	}
	used := map[string]string{"from": from.Format(dateLayout), "to": to.Format(dateLayout)}
	return []interface{}{from, to}, used, nil
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	db  db.Querier
	now func() time.Time
}

// NewHandler creates a reporting handler reading through q, normally the pool.
func NewHandler(q db.Querier) *Handler {
	return &Handler{db: q, now: time.Now}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole(auth.RoleStaff))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	params := map[string]string{}
	for _, p := range measure.Parameters {
		if v := c.QueryParam(p); v != "" {
			params[p] = v
		}
	}
	var args []interface{}
	if measure.bind != nil {
		var err error
		args, params, err = measure.bind(params, h.now())
		if err != nil {
			return apperr.HTTPError(err)
		}
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL, args...)
	if err != nil {
		return apperr.HTTPError(apperr.Dependency(err, "measure %s failed", measure.ID))
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: h.now().UTC(),
		Results:     results,
		Parameters:  params,
	})
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := h.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
