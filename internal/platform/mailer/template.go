package mailer

import (
	"fmt"
	"strings"
	"sync"
)

const TemplatePurchaseOrder = "purchase-order"

type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine renders {{key}} placeholders. Keys missing from the data are
// left in place so a broken template is visible in the delivered mail.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for _, t := range builtIn {
		t := t
		e.templates[t.ID] = &t
	}
	return e
}

var builtIn = []Template{
	{
		ID:      TemplatePurchaseOrder,
		Subject: "Purchase order from {{practice}} ({{item_count}} items)",
		Body: "Hello {{vendor_name}},\n\n" +
			"{{practice}} would like to order the following items:\n\n" +
			"{{lines}}\n\n" +
			"Total: {{total}}\n\n" +
			"Confirm this order: {{confirm_link}}\n" +
			"Reject this order: {{reject_link}}\n\n" +
			"These links expire on {{expires}}.",
	},
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Subject), r.Replace(t.Body), nil
}
