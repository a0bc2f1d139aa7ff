// Package prompt renders the requests sent to the language model.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

const (
	chatTemplate     = "chat.tmpl"
	analysisTemplate = "analysis.tmpl"
)

// ErrEmptyQuestion is returned by Chat when the question is blank.
var ErrEmptyQuestion = errors.New("question is empty")

// Input carries everything a prompt may reference. Empty CompanyInfo is
// rendered as "Not available.".
type Input struct {
	CVText      string
	JobText     string
	CompanyInfo string
	Question    string
}

// Chat renders the open-ended chat turn prompt.
func Chat(in Input) (string, error) {
	if strings.TrimSpace(in.Question) == "" {
		return "", ErrEmptyQuestion
	}

	return render(chatTemplate, in)
}

// Analysis renders the structured fit analysis prompt. The question is ignored.
func Analysis(in Input) (string, error) {
	in.Question = ""
	return render(analysisTemplate, in)
}

func render(name string, in Input) (string, error) {
	in.CVText = strings.TrimSpace(in.CVText)
	in.JobText = strings.TrimSpace(in.JobText)
	in.CompanyInfo = strings.TrimSpace(in.CompanyInfo)
	in.Question = strings.TrimSpace(in.Question)

	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, in); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}

	return b.String(), nil
}
