package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
)

// Page templates, each parsed on top of the layout and partials.
var pageNames = []string{
	"dashboard", "wallets", "transactions", "reports", "settings",
	"login", "register", "forgot",
}

type pageData struct {
	Title  string
	Nav    string
	User   core.Identity
	Banner *banner
	Data   any
}

// banner is the inline success/error message shown above forms.
type banner struct {
	Kind    string // success, error or warning
	Message string
}

func errorBanner(msg string) *banner   { return &banner{Kind: "error", Message: msg} }
func successBanner(msg string) *banner { return &banner{Kind: "success", Message: msg} }
func warningBanner(msg string) *banner { return &banner{Kind: "warning", Message: msg} }

func (s *Server) loadTemplates(fsys fs.FS) error {
	base, err := template.New("base").Funcs(s.funcs()).ParseFS(fsys, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return fmt.Errorf("parse base templates: %w", err)
	}
	s.pages = make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return fmt.Errorf("clone templates for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(fsys, "templates/"+name+".html"); err != nil {
			return fmt.Errorf("parse %s template: %w", name, err)
		}
		s.pages[name] = clone
	}
	s.partials = base
	return nil
}

func (s *Server) funcs() template.FuncMap {
	return template.FuncMap{
		"money": func(amount decimal.Decimal, code string) string {
			return s.money.Format(amount, code)
		},
		"date": func(d core.Date) string {
			if d.IsZero() {
				return ""
			}
			return d.Format("Jan 2, 2006")
		},
		"pct": func(part, total decimal.Decimal) string {
			return report.Share(part, total).StringFixed(1) + "%"
		},
		"width":       barWidth,
		"maxMonth":    report.MaxMonthValue,
		"negative":    func(d decimal.Decimal) bool { return d.IsNegative() },
		"walletTypes": core.WalletTypes,
		"title": func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
		"dict": func(kv ...any) (map[string]any, error) {
			if len(kv)%2 != 0 {
				return nil, fmt.Errorf("dict needs key/value pairs")
			}
			m := make(map[string]any, len(kv)/2)
			for i := 0; i < len(kv); i += 2 {
				k, ok := kv[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict key %v is not a string", kv[i])
				}
				m[k] = kv[i+1]
			}
			return m, nil
		},
	}
}

// barWidth scales value against top as a rounded percentage. Tiny non-zero
// values get 2% so they stay visible.
func barWidth(value, top decimal.Decimal) int {
	if !top.IsPositive() || !value.IsPositive() {
		return 0
	}
	width := int(value.Mul(decimal.NewFromInt(100)).Div(top).Round(0).IntPart())
	if width < 2 {
		width = 2
	}
	if width > 100 {
		width = 100
	}
	return width
}

// renderPage writes a full page inside the layout.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, pd pageData) {
	t, ok := s.pages[name]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Unknown page template", "template", name)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	if pd.User.IsZero() {
		pd.User = identity(r)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", pd); err != nil {
		s.logger.ErrorContext(r.Context(), "Page template execution failed",
			"template", name,
			log.FieldError, err.Error())
		http.Error(w, "could not render page", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().Status(status).BodyHTML(buf.Bytes()).Write(w)
}

// partial renders a named partial to bytes.
func (s *Server) partial(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.partials.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// writePartial renders name into b and writes it. Rendering failures are
// logged and answered with a 500 banner instead.
func (s *Server) writePartial(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	html, err := s.partial(name, data)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Partial template execution failed",
			"template", name,
			log.FieldError, err.Error())
		InternalServerError("Something went wrong while rendering the page.").Write(w)
		return
	}
	b.BodyHTML(html).Write(w)
}

// redirect navigates the browser; htmx requests get HX-Redirect instead of a
// 303 that htmx would follow inside the swap.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(path).Write(w)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}
