package email

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// Approved describes the paid-confirmation email for one order.
type Approved struct {
	OrderID  string
	FullName string
	WhatsApp string
	Courses  []string
	Licenses map[string][]string
	SiteName string
	SiteURL  string
}

func (a Approved) Subject() string {
	name := a.SiteName
	if name == "" {
		name = "Coursepay"
	}
	return "Pago confirmado - " + name
}

func (a Approved) AdminSubject() string {
	return fmt.Sprintf("[ADMIN] %s (%s)", a.Subject(), a.OrderID)
}

// BuildApprovedHTML renders the confirmation email. All caller-supplied
// fields are escaped; the license map is shown verbatim as formatted JSON.
func BuildApprovedHTML(a Approved) string {
	fullName := strings.TrimSpace(a.FullName)
	if fullName == "" {
		fullName = "Cliente"
	}

	coursesText := "—"
	if len(a.Courses) > 0 {
		coursesText = strings.Join(a.Courses, ", ")
	}

	licensesJSON, err := json.MarshalIndent(a.Licenses, "", "  ")
	if err != nil || a.Licenses == nil {
		licensesJSON = []byte("{}")
	}

	var b strings.Builder
	b.WriteString(`<div style="font-family: Arial, sans-serif; line-height:1.5">`)
	b.WriteString(`<h2>Pago confirmado</h2>`)
	fmt.Fprintf(&b, `<p><strong>Orden:</strong> %s</p>`, html.EscapeString(a.OrderID))
	fmt.Fprintf(&b, `<p><strong>Cliente:</strong> %s</p>`, html.EscapeString(fullName))
	if a.WhatsApp != "" {
		fmt.Fprintf(&b, `<p><strong>WhatsApp:</strong> %s</p>`, html.EscapeString(a.WhatsApp))
	}
	fmt.Fprintf(&b, `<p><strong>Cursos:</strong> %s</p>`, html.EscapeString(coursesText))
	b.WriteString(`<hr style="border:none;border-top:1px solid #eee;margin:16px 0" />`)
	b.WriteString(`<p><strong>Licencias por curso</strong></p>`)
	fmt.Fprintf(&b,
		`<pre style="background:#111;color:#eee;padding:12px;border-radius:8px;overflow:auto">%s</pre>`,
		html.EscapeString(string(licensesJSON)))
	if a.SiteURL != "" {
		fmt.Fprintf(&b, `<p><a href="%s">%s</a></p>`,
			html.EscapeString(a.SiteURL), html.EscapeString(strings.TrimPrefix(strings.TrimPrefix(a.SiteURL, "https://"), "http://")))
	}
	b.WriteString(`<p style="color:#666;font-size:12px;margin-top:14px">Este correo fue enviado automáticamente al confirmarse el pago.</p>`)
	b.WriteString(`</div>`)
	return b.String()
}
