package reporting

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
)

// failingQuerier records the last query and fails it.
type failingQuerier struct {
	sql  string
	args []interface{}
}

func (q *failingQuerier) Query(_ context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	q.sql = sql
	q.args = args
	return nil, errors.New("connection refused")
}

func (q *failingQuerier) QueryRow(context.Context, string, ...interface{}) pgx.Row { return nil }

func (q *failingQuerier) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not supported")
}

func TestPredefinedMeasures(t *testing.T) {
	expectedIDs := []string{
		"patient-count",
		"appointments-by-status",
		"prescriptions-by-status",
		"orders-by-status",
		"low-stock-items",
		"revenue-by-month",
	}
	if len(PredefinedMeasures) != len(expectedIDs) {
		t.Fatalf("expected %d predefined measures, got %d", len(expectedIDs), len(PredefinedMeasures))
	}
	for i, expectedID := range expectedIDs {
		if PredefinedMeasures[i].ID != expectedID {
			t.Errorf("expected measure[%d].ID = %s, got %s", i, expectedID, PredefinedMeasures[i].ID)
		}
	}
}

func TestPredefinedMeasures_HaveSQL(t *testing.T) {
	for _, m := range PredefinedMeasures {
		if m.SQL == "" || m.Name == "" || m.Description == "" {
			t.Errorf("measure %s is incomplete", m.ID)
		}
		if len(m.Parameters) > 0 && m.bind == nil {
			t.Errorf("measure %s takes parameters but has no binder", m.ID)
		}
	}
}

func TestFindMeasure(t *testing.T) {
	if m := FindMeasure("low-stock-items"); m == nil || m.Name != "Low Stock Items" {
		t.Errorf("expected low-stock-items, got %+v", m)
	}
	if FindMeasure("nonexistent") != nil {
		t.Error("expected nil for nonexistent measure")
	}
}

func TestBindPeriod_Defaults(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	args, used, err := bindPeriod(map[string]string{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used["from"] != "2023-04-01" || used["to"] != "2024-03-15" {
		t.Errorf("unexpected period %v", used)
	}
	if len(args) != 2 {
		t.Errorf("expected 2 args, got %d", len(args))
	}
}

func TestBindPeriod_Invalid(t *testing.T) {
	now := time.Now()
	for _, params := range []map[string]string{
		{"from": "March"},
		{"to": "2024-13-01"},
		{"from": "2024-05-01", "to": "2024-04-01"},
	} {
		if _, _, err := bindPeriod(params, now); err == nil {
			t.Errorf("expected error for %v", params)
		}
	}
}

func TestListMeasures_HidesSQL(t *testing.T) {
	h := NewHandler(&failingQuerier{})
	e := echo.New()
	rec := httptest.NewRecorder()
	if err := h.ListMeasures(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(rec.Body.String(), "SELECT") {
		t.Error("measure SQL must not be exposed")
	}
}

func evaluate(h *Handler, id, query string) error {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/reports/measures/"+id+"/evaluate"+query, nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(id)
	return h.EvaluateMeasure(c)
}

func TestEvaluateMeasure_NotFound(t *testing.T) {
	err := evaluate(NewHandler(&failingQuerier{}), "nope", "")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestEvaluateMeasure_BadParameter(t *testing.T) {
	q := &failingQuerier{}
	err := evaluate(NewHandler(q), "revenue-by-month", "?from=yesterday")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
	if q.sql != "" {
		t.Error("query must not run with invalid parameters")
	}
}

func TestEvaluateMeasure_QueryFailure(t *testing.T) {
	q := &failingQuerier{}
	err := evaluate(NewHandler(q), "revenue-by-month", "?from=2024-01-01&to=2024-06-30")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %v", err)
	}
	if len(q.args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(q.args))
	}
	if from, _ := q.args[0].(time.Time); from.Format(dateLayout) != "2024-01-01" {
		t.Errorf("unexpected from arg %v", q.args[0])
	}
}
