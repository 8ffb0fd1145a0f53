package inventory

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinic/dashboard/internal/platform/apperr"
	"github.com/clinic/dashboard/internal/platform/linktoken"
)

var linkPages = template.Must(template.New("layout").Parse(`
{{define "head"}}<!doctype html><html><head><meta charset="utf-8"><title>{{.Title}}</title></head><body>{{end}}
{{define "result"}}{{template "head" .}}<h1>{{.Title}}</h1><p>{{.Result.Summary}}.</p>
<ul>{{range .Result.Items}}<li>{{.ID}}: {{if .Success}}{{if .AlreadyResolved}}already done{{else}}done{{end}}{{else}}{{.Error}}{{end}}</li>{{end}}</ul>
</body></html>{{end}}
{{define "orders"}}<table><tr><th>Item</th><th>Quantity</th><th>Status</th></tr>
{{range .Orders}}<tr><td>{{.ItemName}}</td><td>{{.Quantity}}</td><td>{{.Status}}</td></tr>{{end}}
</table>{{end}}
{{define "confirm"}}{{template "head" .}}<h1>{{.Title}}</h1><p>{{len .Orders}} order(s) will be confirmed as shipped.</p>
{{template "orders" .}}
<form method="post" action="/orders/confirm">
<input type="hidden" name="token" value="{{.Token}}">
<button type="submit">Confirm orders</button>
</form></body></html>{{end}}
{{define "reject"}}{{template "head" .}}<h1>{{.Title}}</h1><p>{{len .Orders}} order(s) will be rejected.</p>
{{template "orders" .}}
<form method="post" action="/orders/reject">
<input type="hidden" name="token" value="{{.Token}}">
<label>Reason<br><textarea name="reason" rows="4" cols="50" required></textarea></label><br>
<button type="submit">Reject orders</button>
</form></body></html>{{end}}
{{define "error"}}{{template "head" .}}<h1>{{.Title}}</h1><p>{{.Message}}</p></body></html>{{end}}
`))

// RegisterPublicRoutes mounts the routes behind the links in purchase-order
// emails on a group mounted at /orders. They authenticate with the link
// token, not a bearer token. GET only renders a page; orders change on POST.
func (h *Handler) RegisterPublicRoutes(g *echo.Group) {
	g.GET("/confirm", h.ConfirmForm)
	g.POST("/confirm", h.ConfirmLink)
	g.GET("/reject", h.RejectForm)
	g.POST("/reject", h.RejectLink)
}

func renderPage(c echo.Context, status int, page string, data map[string]interface{}) error {
	var buf bytes.Buffer
	if err := linkPages.ExecuteTemplate(&buf, page, data); err != nil {
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}

func renderLinkError(c echo.Context, err error) error {
	he := apperr.HTTPError(err)
	msg, _ := he.Message.(string)
	return renderPage(c, he.Code, "error", map[string]interface{}{"Title": "Order link", "Message": msg})
}

func (h *Handler) ConfirmForm(c echo.Context) error {
	return h.linkForm(c, linktoken.ActionConfirm, "confirm", "Confirm orders")
}

func (h *Handler) RejectForm(c echo.Context) error {
	return h.linkForm(c, linktoken.ActionReject, "reject", "Reject orders")
}

func (h *Handler) linkForm(c echo.Context, action linktoken.Action, page, title string) error {
	token := c.QueryParam("token")
	orders, err := h.svc.LinkOrders(c.Request().Context(), token, action)
	if err != nil {
		return renderLinkError(c, err)
	}
	return renderPage(c, http.StatusOK, page, map[string]interface{}{"Title": title, "Token": token, "Orders": orders})
}

func wantsJSON(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

type confirmLinkRequest struct {
	Token string `json:"token" form:"token"`
}

// ConfirmLink accepts the confirm form or the token as JSON.
func (h *Handler) ConfirmLink(c echo.Context) error {
	var req confirmLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.ConfirmByToken(c.Request().Context(), req.Token)

	if wantsJSON(c) {
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(http.StatusOK, res)
	}
	if err != nil {
		return renderLinkError(c, err)
	}
	return renderPage(c, http.StatusOK, "result", map[string]interface{}{"Title": "Orders confirmed", "Result": res})
}

type rejectLinkRequest struct {
	Token  string `json:"token" form:"token"`
	Reason string `json:"reason" form:"reason"`
}

// RejectLink accepts the reject form or the same fields as JSON. JSON callers
// get a JSON response.
func (h *Handler) RejectLink(c echo.Context) error {
	var req rejectLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.RejectByToken(c.Request().Context(), req.Token, req.Reason)

	if wantsJSON(c) {
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(http.StatusOK, res)
	}
	if err != nil {
		return renderLinkError(c, err)
	}
	return renderPage(c, http.StatusOK, "result", map[string]interface{}{"Title": "Orders rejected", "Result": res})
}
