package export

import (
	"bytes"
	"fmt"

	"opas-admin-workers/internal/models"

	"github.com/go-pdf/fpdf"
)

const (
	pdfRowHeight  = 7.0
	pdfFontSize   = 9.0
	pdfTitleSize  = 14.0
	pdfCellMargin = 2.0
)

// PDF renders ds as a landscape A4 table. The header row repeats on every page.
func (f *Formatter) PDF(ds Dataset) (*models.ExportResult, error) {
	if err := requireRecords(models.FormatPDF, ds); err != nil {
		return nil, err
	}

	cols := columns(ds)
	now := f.now()

	title := ds.Title
	if title == "" {
		title = fmt.Sprintf("OPAS export: %s", ds.Name)
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("opas-admin-workers", true)
	pdf.SetCreationDate(now)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colW := (pageW - left - right) / float64(len(cols))

	header := func() {
		pdf.SetFont("Helvetica", "B", pdfFontSize)
		pdf.SetFillColor(221, 235, 247)
		for _, c := range cols {
			pdf.CellFormat(colW, pdfRowHeight, tr(fit(pdf, c, colW)), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", pdfFontSize)
	}

	firstPage := true
	pdf.SetHeaderFunc(func() {
		if firstPage {
			return
		}
		header()
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", pdfTitleSize)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", pdfFontSize)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s - %d records", now.Format("2006-01-02 15:04:05 MST"), len(ds.Records)), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	header()
	firstPage = false

	for _, rec := range ds.Records {
		for _, c := range cols {
			pdf.CellFormat(colW, pdfRowHeight, tr(fit(pdf, formatValue(rec[c]), colW)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	return f.result(models.FormatPDF, "pdf", ds, buf.Bytes(), now), nil
}

// fit truncates s with an ellipsis so it fits a cell of width w.
func fit(pdf *fpdf.Fpdf, s string, w float64) string {
	limit := w - pdfCellMargin
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
