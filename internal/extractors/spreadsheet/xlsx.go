// Package spreadsheet implements the workbook strategy: every sheet is
// converted to delimited text under a "Sheet: <name>" header, preserving
// workbook sheet order.
package spreadsheet

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mseiller/test-buddy-extract/internal/extract"
)

// cellSeparator matches the display transform used for CSV uploads.
const cellSeparator = " | "

type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) Name() string               { return "xlsx" }
func (e *Extractor) Category() extract.Category { return extract.CategorySpreadsheet }

func (e *Extractor) AcceptedTypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel",
	}
}

func (e *Extractor) AcceptedExtensions() []string {
	return []string{".xlsx", ".xls"}
}

func (e *Extractor) Extract(ctx context.Context, f extract.File) (extract.Result, *extract.Error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, extract.AsError(err)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(f.Data))
	if err != nil {
		return extract.Result{}, extract.AsError(err)
	}
	defer wb.Close()

	var sections []string
	dataRows := 0
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return extract.Result{}, extract.AsError(err)
		}
		body := rowsToText(rows)
		if body != "" {
			dataRows += strings.Count(body, "\n") + 1
		}
		sections = append(sections, "Sheet: "+sheet+"\n"+body)
	}

	text := strings.TrimSpace(strings.Join(sections, "\n\n"))
	if dataRows == 0 {
		return extract.Result{}, extract.NewError(extract.KindNoTextContent,
			"The spreadsheet contains no extractable text.")
	}

	words, chars := extract.BuildCounts(text)
	return extract.Result{
		Text: text,
		Metadata: map[string]string{
			"sheets":    strconv.Itoa(len(wb.GetSheetList())),
			"wordCount": strconv.Itoa(words),
			"charCount": strconv.Itoa(chars),
		},
	}, nil
}

func rowsToText(rows [][]string) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		if rowEmpty(row) {
			continue
		}
		lines = append(lines, strings.Join(row, cellSeparator))
	}
	return strings.Join(lines, "\n")
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
