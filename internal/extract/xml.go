package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// extractXML joins the leading text of every element in document order with a
// single space. Each text is trimmed, inner line breaks and spacing are kept. Text that follows a child element belongs to the parent's tail
// and is not collected, whitespace-only texts are skipped.
func extractXML(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = true

	var (
		parts    []string
		leading  *strings.Builder
		seenRoot bool
		depth    int
	)

	flush := func() {
		if leading == nil {
			return
		}
		if text := strings.TrimSpace(leading.String()); text != "" {
			parts = append(parts, text)
		}
		leading = nil
	}

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			flush()
			seenRoot = true
			depth++
			leading = &strings.Builder{}
		case xml.EndElement:
			flush()
			depth--
		case xml.CharData:
			if leading != nil {
				leading.Write(t)
			}
		}
	}

	if !seenRoot {
		return "", errors.New("decode xml: no root element")
	}

	if depth != 0 {
		return "", errors.New("decode xml: unexpected end of document")
	}

	return strings.Join(parts, " "), nil
}
