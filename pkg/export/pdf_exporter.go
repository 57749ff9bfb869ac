package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Card is the printable content of a registration card.
type Card struct {
	Title       string
	CardNumber  string
	HolderName  string
	HolderEmail string
	Semester    string
	IssuedDate  string
	Courses     []string
	VerifyToken string
}

// PDFExporter renders registration cards and tabular datasets.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderCard lays out a single A5 landscape registration card.
func (e *PDFExporter) RenderCard(card Card) ([]byte, error) {
	if card.CardNumber == "" {
		return nil, fmt.Errorf("card number required")
	}
	pdf := gofpdf.New("L", "mm", "A5", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	title := card.Title
	if title == "" {
		title = "Registration Card"
	}
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, strings.ToUpper(title), "B", 1, "C", false, 0, "")
	pdf.Ln(4)

	rows := [][2]string{
		{"Card number", card.CardNumber},
		{"Name", card.HolderName},
		{"Email", card.HolderEmail},
		{"Semester", card.Semester},
		{"Issued", card.IssuedDate},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 7, row[0], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, row[1], "", 1, "", false, 0, "")
	}

	if len(card.Courses) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, "Approved courses", "", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, strings.Join(card.Courses, ", "), "", "", false)
	}

	if card.VerifyToken != "" {
		pdf.Ln(4)
		pdf.SetFont("Courier", "", 6)
		pdf.MultiCell(0, 3, "verify: "+card.VerifyToken, "", "", false)
	}

	return output(pdf)
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 10)
	colWidth := 277.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return output(pdf)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
