package main

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

func newHeaderStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func freezeHeader(f *excelize.File, sheet string, lastCol string, lastRow int) error {
	if lastRow > 1 {
		if err := f.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, lastRow), nil); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// WriteXLSX writes the report rows to an Excel workbook with a single
// "Summary" sheet.
func (s *Summary) WriteXLSX(filename string, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Summary"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	headerStyle, err := newHeaderStyle(f)
	if err != nil {
		return err
	}
	headers := []string{
		"Kernel", "Shape", "Count", "Total (ms)", "Avg (µs)", "Min (µs)", "Max (µs)", "StdDev (µs)", "% Total",
	}
	if err := writeHeaderRow(f, sheetName, headers, headerStyle); err != nil {
		return err
	}

	f.SetColWidth(sheetName, "A", "A", 80) // Kernel
	f.SetColWidth(sheetName, "B", "B", 28) // Shape
	f.SetColWidth(sheetName, "C", "I", 12) // Stats

	row := 2
	for _, r := range s.Rows(opts) {
		values := []interface{}{
			r.Kernel,
			r.Shape,
			r.Count,
			float64(r.TotalNs) / 1e6,
			r.AvgNs / 1e3,
			float64(r.MinNs) / 1e3,
			float64(r.MaxNs) / 1e3,
			r.StdDevNs / 1e3,
			r.Percent,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
		row++
	}

	if err := freezeHeader(f, sheetName, "I", row-1); err != nil {
		return err
	}
	return f.SaveAs(filename)
}

// WriteCompareXLSX writes the comparison result to an Excel file
// with heatmap coloring for performance changes
func (r *CompareResult) WriteCompareXLSX(filename string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Comparison"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	headerStyle, err := newHeaderStyle(f)
	if err != nil {
		return err
	}

	rowStyles := make(map[string]int)
	for matchType, fill := range map[string]string{
		MatchExact:   "#E2EFDA", // Light green
		MatchSimilar: "#DDEBF7", // Light blue
		MatchRemoved: "#FFC7CE", // Light red
		MatchNewOnly: "#FFEB9C", // Light yellow
	} {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
		})
		if err != nil {
			return err
		}
		rowStyles[matchType] = style
	}

	// Heatmap styles for change column
	improvedStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#00B050"}, Pattern: 1}, // Green
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	regressedStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FF0000"}, Pattern: 1}, // Red
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	neutralStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FFC000"}, Pattern: 1}, // Amber
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	headers := []string{
		"Baseline Kernel", "Base Count", "Base Avg (µs)", "Base Total (ms)",
		"New Kernel", "New Count", "New Avg (µs)", "New Total (ms)",
		"Shape", "Change (%)", "Match Type",
	}
	if err := writeHeaderRow(f, sheetName, headers, headerStyle); err != nil {
		return err
	}

	f.SetColWidth(sheetName, "A", "A", 55) // Baseline Kernel
	f.SetColWidth(sheetName, "B", "D", 14) // Baseline stats
	f.SetColWidth(sheetName, "E", "E", 55) // New Kernel
	f.SetColWidth(sheetName, "F", "H", 14) // New stats
	f.SetColWidth(sheetName, "I", "I", 28) // Shape
	f.SetColWidth(sheetName, "J", "K", 12)

	row := 2
	for _, m := range r.Matches {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), m.BaselineKernel)
		if m.Baseline != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), m.Baseline.Count)
			f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), m.Baseline.AvgNs()/1e3)
			f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), float64(m.Baseline.TotalNs)/1e6)
		}
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), m.NewKernel)
		if m.New != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), m.New.Count)
			f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), m.New.AvgNs()/1e3)
			f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), float64(m.New.TotalNs)/1e6)
		}
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), m.Shape)

		// Negative = improvement (new is faster), Positive = regression (new is slower)
		changeCell := fmt.Sprintf("J%d", row)
		switch {
		case m.HasChange:
			f.SetCellValue(sheetName, changeCell, m.ChangePercent)
			if m.ChangePercent < -changeThreshold {
				f.SetCellStyle(sheetName, changeCell, changeCell, improvedStyle)
			} else if m.ChangePercent > changeThreshold {
				f.SetCellStyle(sheetName, changeCell, changeCell, regressedStyle)
			} else {
				f.SetCellStyle(sheetName, changeCell, changeCell, neutralStyle)
			}
		case m.MatchType == MatchNewOnly:
			f.SetCellValue(sheetName, changeCell, "NEW")
			f.SetCellStyle(sheetName, changeCell, changeCell, neutralStyle)
		case m.MatchType == MatchRemoved:
			f.SetCellValue(sheetName, changeCell, "REMOVED")
			f.SetCellStyle(sheetName, changeCell, changeCell, improvedStyle)
		}

		f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), m.MatchType)

		if style, ok := rowStyles[m.MatchType]; ok {
			f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("I%d", row), style)
			f.SetCellStyle(sheetName, fmt.Sprintf("K%d", row), fmt.Sprintf("K%d", row), style)
		}
		row++
	}

	if err := freezeHeader(f, sheetName, "K", row-1); err != nil {
		return err
	}
	return f.SaveAs(filename)
}
