package export

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PolicyPDF describes a rendered policy version for export.
type PolicyPDF struct {
	Title    string
	Version  int
	Status   string
	HTML     string
	Footnote string
}

// PDFExporter renders policy documents into printable PDFs.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

var (
	blockBreakRe = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr)>|<br\s*/?>`)
	headingRe    = regexp.MustCompile(`(?is)<h[1-3][^>]*>(.*?)</h[1-3]>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
)

// Render lays out the policy as a titled document with flowing paragraphs.
// Markup is flattened to text; headings become bold section labels.
func (e *PDFExporter) Render(doc PolicyPDF) ([]byte, error) {
	if doc.Title == "" {
		return nil, fmt.Errorf("pdf requires a title")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 8, doc.Title, "", "C", false)
	pdf.Ln(2)

	pdf.SetFont("Arial", "I", 10)
	meta := fmt.Sprintf("Version %d - %s", doc.Version, doc.Status)
	pdf.CellFormat(0, 6, meta, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	headings := map[string]struct{}{}
	for _, m := range headingRe.FindAllStringSubmatch(doc.HTML, -1) {
		headings[strings.TrimSpace(tagRe.ReplaceAllString(m[1], ""))] = struct{}{}
	}

	for _, para := range flattenHTML(doc.HTML) {
		if _, ok := headings[para]; ok {
			pdf.Ln(2)
			pdf.SetFont("Arial", "B", 12)
			pdf.MultiCell(0, 6, para, "", "", false)
			pdf.SetFont("Arial", "", 10)
			continue
		}
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, para, "", "", false)
		pdf.Ln(1)
	}

	if doc.Footnote != "" {
		pdf.Ln(4)
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(0, 4, doc.Footnote, "", "", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func flattenHTML(html string) []string {
	chunks := blockBreakRe.Split(html, -1)
	paras := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		text := strings.TrimSpace(tagRe.ReplaceAllString(chunk, ""))
		text = strings.ReplaceAll(text, "&amp;", "&")
		text = strings.ReplaceAll(text, "&lt;", "<")
		text = strings.ReplaceAll(text, "&gt;", ">")
		text = strings.ReplaceAll(text, "&#39;", "'")
		text = strings.ReplaceAll(text, "&#34;", `"`)
		if text != "" {
			paras = append(paras, text)
		}
	}
	return paras
}
