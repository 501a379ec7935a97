package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Detail is one labelled row below the message body.
type Detail struct {
	Label string
	Value string
}

// Notice is the content of a transactional notification email.
type Notice struct {
	Title      string
	Heading    string
	Paragraphs []string
	Details    []Detail
	CTALabel   string
	CTAURL     string
}

// RenderNotice renders n into the shared HTML layout. html/template escapes every field.
func RenderNotice(n Notice) (string, error) {
	if n.Title == "" {
		n.Title = n.Heading
	}
	return renderEmailTemplate(noticeTemplate, n)
}

var noticeTemplate = template.Must(
	template.New("base.html").ParseFS(templateFS, "templates/base.html", "templates/notice.html"),
)

func renderEmailTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
