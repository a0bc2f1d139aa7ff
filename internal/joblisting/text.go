package joblisting

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/spigell/jobfit/internal/utils"
)

// invisible elements never contribute text.
const invisible = "head, script, style, noscript, template, svg, iframe"

// VisibleText parses an HTML document and returns its text nodes, each trimmed
// with inner whitespace collapsed, joined by newlines. Empty nodes are skipped.
func VisibleText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(invisible).Remove()

	var lines []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, node *goquery.Selection) {
			if goquery.NodeName(node) == "#text" {
				if text := utils.CollapseSpaces(node.Text()); text != "" {
					lines = append(lines, text)
				}
				return
			}
			walk(node)
		})
	}
	walk(doc.Selection)

	return strings.Join(lines, "\n"), nil
}
