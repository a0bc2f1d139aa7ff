package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFromName(t *testing.T) {
	cases := map[string]Format{
		"cv.pdf":           FormatPDF,
		"CV.PDF":           FormatPDF,
		"resume.final.xml": FormatXML,
		" my cv.docx ":     FormatDOCX,
	}

	for name, want := range cases {
		got, err := FormatFromName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	for _, name := range []string{"cv.txt", "photo.png", "cv.doc", "docx", ""} {
		_, err := FormatFromName(name)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, name)
	}
}

func TestExtractEmptyDocuments(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		data   []byte
	}{
		{name: "pdf without pages", format: FormatPDF, data: buildPDF(t)},
		{name: "xml with empty root", format: FormatXML, data: []byte(`<?xml version="1.0"?><cv></cv>`)},
		{name: "xml self-closing root", format: FormatXML, data: []byte(`<cv/>`)},
		{name: "docx without paragraphs", format: FormatDOCX, data: buildDOCX(t)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, err := Extract(tc.data, tc.format)
			require.NoError(t, err)
			assert.Empty(t, text)
		})
	}
}

func TestExtractMalformedDocuments(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		data   []byte
	}{
		{name: "pdf garbage", format: FormatPDF, data: []byte("definitely not a pdf")},
		{name: "pdf empty", format: FormatPDF, data: nil},
		{name: "xml unclosed", format: FormatXML, data: []byte("<cv><name>Ada</cv>")},
		{name: "xml empty", format: FormatXML, data: []byte("   ")},
		{name: "docx not a zip", format: FormatDOCX, data: []byte("PK but not really")},
		{name: "docx missing document part", format: FormatDOCX, data: buildZip(t, map[string]string{"word/styles.xml": "<styles/>"})},
		{name: "docx broken document part", format: FormatDOCX, data: buildZip(t, map[string]string{docxDocumentPath: "<w:document><w:body>"})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, err := Extract(tc.data, tc.format)
			require.Error(t, err)
			assert.Empty(t, text)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "expected ParseError, got %T", err)
			assert.Equal(t, tc.format, parseErr.Format)
		})
	}
}

func TestExtractUnknownFormat(t *testing.T) {
	_, err := Extract([]byte("hello"), Format("txt"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	var parseErr *ParseError
	assert.False(t, errors.As(err, &parseErr))
}

func TestExtractXML(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<cv>
  <name>Ada Lovelace</name>
  <!-- comment is ignored -->
  <skills>
    <skill>Go</skill>
    <skill>  Distributed
      systems </skill>
  </skills>
  <summary>Engineer<em>at heart</em> tail text is not collected</summary>
</cv>`

	text, err := Extract([]byte(doc), FormatXML)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace Go Distributed\n      systems Engineer at heart", text)
}

func TestExtractXMLKeepsInnerWhitespace(t *testing.T) {
	doc := "<cv><address>\n  221B Baker Street\n  London\n</address><phone>\t+44 20 7946 0000 </phone></cv>"

	text, err := Extract([]byte(doc), FormatXML)
	require.NoError(t, err)
	assert.Equal(t, "221B Baker Street\n  London +44 20 7946 0000", text)
}

func TestExtractDOCX(t *testing.T) {
	data := buildDOCX(t,
		"Senior Go engineer with ten years of experience.",
		"Kubernetes, gRPC, PostgreSQL",
	)

	text, err := Extract(data, FormatDOCX)
	require.NoError(t, err)
	assert.Equal(t, "Senior Go engineer with ten years of experience.\nKubernetes, gRPC, PostgreSQL", text)
}

func TestExtractDOCXSplitRunsAndTabs(t *testing.T) {
	body := `<w:p><w:r><w:t>Ada</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve"> Lovelace</w:t></w:r></w:p>`
	data := buildZip(t, map[string]string{docxDocumentPath: wrapDocumentXML(body)})

	text, err := Extract(data, FormatDOCX)
	require.NoError(t, err)
	assert.Equal(t, "Ada\t Lovelace", text)
}

func TestExtractDOCXSkipsTextBoxes(t *testing.T) {
	textBox := `<w:txbxContent><w:p><w:r><w:t>Box</w:t></w:r></w:p></w:txbxContent>`
	body := `<w:p><w:r><w:t>Before</w:t></w:r>` +
		`<w:r><mc:AlternateContent xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"` +
		` xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape"` +
		` xmlns:v="urn:schemas-microsoft-com:vml">` +
		`<mc:Choice Requires="wps"><w:drawing><wps:txbx>` + textBox + `</wps:txbx></w:drawing></mc:Choice>` +
		`<mc:Fallback><w:pict><v:textbox>` + textBox + `</v:textbox></w:pict></mc:Fallback>` +
		`</mc:AlternateContent></w:r>` +
		`<w:r><w:t>After</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Next paragraph</w:t></w:r></w:p>`
	data := buildZip(t, map[string]string{docxDocumentPath: wrapDocumentXML(body)})

	text, err := Extract(data, FormatDOCX)
	require.NoError(t, err)
	assert.Equal(t, "BeforeAfter\nNext paragraph", text)
}

func TestExtractPDF(t *testing.T) {
	data := buildPDF(t, "", "BT /F1 12 Tf 72 720 Td (Hello Gopher) Tj ET")

	text, err := Extract(data, FormatPDF)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello Gopher")
	assert.False(t, strings.HasPrefix(text, "\n"), "blank page must not contribute a separator")
	assert.True(t, strings.HasSuffix(text, "\n"))
}

const docxNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

func wrapDocumentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="` + docxNamespace + `"><w:body>` + body + `</w:body></w:document>`
}

func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}

	return buildZip(t, map[string]string{
		"[Content_Types].xml": `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		docxDocumentPath:      wrapDocumentXML(body.String()),
	})
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return buf.Bytes()
}

// buildPDF writes a minimal PDF with one page per content stream and a valid xref table.
func buildPDF(t *testing.T, pageContents ...string) []byte {
	t.Helper()

	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, 0, len(pageContents))
	for i := range pageContents {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+i*2))
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pageContents)))

	for i, content := range pageContents {
		contentRef := 4 + i*2
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R >>", contentRef),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}
