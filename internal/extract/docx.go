package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxDocumentPath = "word/document.xml"

// extractDOCX reads word/document.xml from the package and joins its paragraphs with newlines.
func extractDOCX(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx package: %w", err)
	}

	var document *zip.File
	for _, file := range archive.File {
		if file.Name == docxDocumentPath {
			document = file
			break
		}
	}

	if document == nil {
		return "", fmt.Errorf("%s not found", docxDocumentPath)
	}

	rc, err := document.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", docxDocumentPath, err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return "", err
	}

	return strings.Join(paragraphs, "\n"), nil
}

// WordprocessingML namespaces, transitional and strict.
var wordNamespaces = map[string]bool{
	"http://schemas.openxmlformats.org/wordprocessingml/2006/main": true,
	"http://purl.oclc.org/ooxml/wordprocessingml/main":             true,
}

// docxParagraphs collects the text of each top-level w:p element. Runs are
// concatenated, tabs and breaks inside a run are kept. Paragraphs nested in
// text boxes belong to drawings, not to the enclosing paragraph, so they are
// skipped together with the mc:Fallback copies of those drawings.
func docxParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		depth      int
		inText     bool
	)

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", docxDocumentPath, err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "Fallback" {
				if err := decoder.Skip(); err != nil {
					return nil, fmt.Errorf("decode %s: %w", docxDocumentPath, err)
				}
				continue
			}
			if !wordNamespaces[t.Name.Space] {
				continue
			}

			switch t.Name.Local {
			case "p":
				depth++
				if depth == 1 {
					current.Reset()
				}
			case "t":
				inText = depth == 1
			case "tab":
				if depth == 1 {
					current.WriteString("\t")
				}
			case "br", "cr":
				if depth == 1 {
					current.WriteString("\n")
				}
			}
		case xml.EndElement:
			if !wordNamespaces[t.Name.Space] {
				continue
			}

			switch t.Name.Local {
			case "p":
				if depth == 1 {
					paragraphs = append(paragraphs, current.String())
				}
				if depth > 0 {
					depth--
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	return paragraphs, nil
}
