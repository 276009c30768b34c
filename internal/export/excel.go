// Package export renders attendance summaries as Excel workbooks.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"classtrack/internal/attendance"
)

const sheet = "Sessions"

// ProfessorSummary builds an XLSX workbook with one row per session
// roll-up. The caller owns closing the returned file.
func ProfessorSummary(summaries []attendance.SessionSummary) (*excelize.File, error) {
	f := excelize.NewFile()
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	headers := []string{"Session ID", "Course", "Type", "Date", "Present", "Total", "Rate (%)"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("set header: %w", err)
		}
	}

	for row, s := range summaries {
		values := []any{s.SessionID, s.CourseName, s.CourseType, s.SessionDate, s.Present, s.Total, s.Rate}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}
	return f, nil
}
