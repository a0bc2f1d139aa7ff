package server

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/spigell/jobfit/internal/extract"
	"github.com/spigell/jobfit/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageTitle     = "CV + Job Fit Advisor"
	indexTemplate = "index.html"
)

type renderer struct {
	templates *template.Template
}

func newRenderer() (*renderer, error) {
	tmpl, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &renderer{templates: tmpl}, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type pageData struct {
	Title   string
	Accept  string
	Session session.Snapshot
	Notice  *session.Notice
}

func acceptedExtensions() string {
	formats := extract.Formats()
	exts := make([]string, 0, len(formats))
	for _, f := range formats {
		exts = append(exts, "."+string(f))
	}
	return strings.Join(exts, ",")
}
