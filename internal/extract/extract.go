// Package extract turns uploaded CV documents into plain text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a supported document format, named after its file extension.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXML  Format = "xml"
	FormatDOCX Format = "docx"
)

// ErrUnsupportedFormat is returned for uploads whose extension is not a supported Format.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ParseError reports a document that is malformed for its declared format.
type ParseError struct {
	Format Format
	Cause  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s document: %v", e.Format, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Formats lists the supported formats in the order they are offered to users.
func Formats() []Format {
	return []Format{FormatPDF, FormatXML, FormatDOCX}
}

// FormatFromName resolves the declared format of an uploaded file by its extension.
func FormatFromName(name string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(name)), "."))
	for _, f := range Formats() {
		if ext == string(f) {
			return f, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Extract returns the plain text of a document. It never fails on an empty but
// well-formed document; malformed input yields a *ParseError.
func Extract(data []byte, format Format) (string, error) {
	var (
		text string
		err  error
	)

	switch format {
	case FormatPDF:
		text, err = extractPDF(data)
	case FormatXML:
		text, err = extractXML(data)
	case FormatDOCX:
		text, err = extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err != nil {
		return "", &ParseError{Format: format, Cause: err}
	}

	return text, nil
}
