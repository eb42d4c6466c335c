package report

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/irreview/internal/model"
)

// Sheet names of the workbook export.
const (
	SheetCommon   = "Common"
	SheetFindings = "Findings"
	SheetPages    = "Pages"
)

// WriteXLSX exports the review as a workbook with one sheet for common
// fields, one for findings and one for pages.
func WriteXLSX(path string, r *Review) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCommon); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetFindings); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetPages); err != nil {
		return err
	}

	common := [][]interface{}{{"Field", "Label", "Value", "Pages"}}
	for _, field := range r.Common.Fields() {
		row := []interface{}{string(field.Name), field.Name.Label(), "", ""}
		if !field.IsNull() {
			if n, ok := field.Value.Number(); ok {
				row[2] = n
			} else {
				row[2] = field.Value.String()
			}
			row[3] = pageList(*field.Citation)
		}
		common = append(common, row)
	}

	findings := [][]interface{}{{"Module", "Label", "Detail", "Pages"}}
	for _, m := range r.Analyses.Modules() {
		for _, fd := range r.Analyses.Findings(m) {
			findings = append(findings, []interface{}{string(m), fd.Label, fd.Detail, pageList(fd.Citation)})
		}
	}

	pages := [][]interface{}{{"Page", "Method", "Image", "Characters"}}
	for _, p := range r.Pages.Pages() {
		pages = append(pages, []interface{}{p.Index, string(p.Method), p.ImageRef, len([]rune(p.RawText))})
	}

	for _, sheet := range []struct {
		name   string
		rows   [][]interface{}
		widths []float64
	}{
		{SheetCommon, common, []float64{24, 22, 40, 12}},
		{SheetFindings, findings, []float64{18, 30, 80, 12}},
		{SheetPages, pages, []float64{8, 10, 20, 12}},
	} {
		if err := fillSheet(f, sheet.name, sheet.rows, sheet.widths); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet.name, err)
		}
	}

	f.SetActiveSheet(0)
	return f.SaveAs(path)
}

func fillSheet(f *excelize.File, sheet string, rows [][]interface{}, widths []float64) error {
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

func pageList(c model.Citation) string {
	s := ""
	for i, p := range c.PageIndices {
		if i > 0 {
			s += ", "
		}
		s += strconv.Itoa(p)
	}
	return s
}
