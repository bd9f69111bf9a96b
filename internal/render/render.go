// Package render turns notification events into email subject and bodies.
// Rendering is pure: no I/O after construction.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/DIEGHOST64/Prisma/internal/notification"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// ErrUnknownKind is returned for events without a template.
var ErrUnknownKind = errors.New("unknown notification kind")

var subjects = map[notification.Kind]string{
	notification.KindSubmissionConfirmation: "Confirmación de Postulación - PRISMA",
	notification.KindStatusChanged:          "Actualización de Estado - PRISMA",
}

// Rendered is a ready-to-send email.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

type htmlStyle struct {
	Emoji   string
	Color   htmltemplate.CSS
	Message string
}

type viewData struct {
	Subject       string
	ApplicantName string
	VacancyTitle  string
	NewStatus     string
	Style         any
}

// Renderer renders both supported kinds.
type Renderer struct {
	html    *htmltemplate.Template
	text    *texttemplate.Template
	catalog *Catalog
}

// New builds a renderer with the embedded status catalog.
func New() (*Renderer, error) {
	catalog, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	return NewWithCatalog(catalog)
}

// NewWithCatalog builds a renderer with a custom status catalog.
func NewWithCatalog(catalog *Catalog) (*Renderer, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &Renderer{html: html, text: text, catalog: catalog}, nil
}

// Render produces the subject and both bodies for ev. User-supplied fields are
// HTML-escaped in the HTML body.
func (r *Renderer) Render(ev notification.Event) (Rendered, error) {
	subject, ok := subjects[ev.Kind]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}

	style := r.catalog.Lookup(ev.NewStatus)
	data := viewData{
		Subject:       subject,
		ApplicantName: ev.ApplicantName,
		VacancyTitle:  ev.VacancyTitle,
		NewStatus:     ev.NewStatus,
	}

	var htmlBuf, textBuf bytes.Buffer

	// colors are validated as hex literals when the catalog is parsed
	data.Style = htmlStyle{Emoji: style.Emoji, Color: htmltemplate.CSS(style.Color), Message: style.Message}
	if err := r.html.ExecuteTemplate(&htmlBuf, string(ev.Kind)+".html.tmpl", data); err != nil {
		return Rendered{}, fmt.Errorf("render html %s: %w", ev.Kind, err)
	}

	data.Style = style
	if err := r.text.ExecuteTemplate(&textBuf, string(ev.Kind)+".txt.tmpl", data); err != nil {
		return Rendered{}, fmt.Errorf("render text %s: %w", ev.Kind, err)
	}

	return Rendered{Subject: subject, HTML: htmlBuf.String(), Text: textBuf.String()}, nil
}
