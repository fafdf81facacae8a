// Package legacy migrates contracts kept outside the workflow into the
// store and rebuilds the employment and insurance history they imply.
package legacy

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Contracts"

// Header lists the spreadsheet columns in template order.
var Header = []string{
	"contract_number",
	"employee_code",
	"position_code",
	"department_code",
	"start_date",
	"end_date",
	"base_salary",
	"insurance_salary",
	"status",
	"termination_date",
	"termination_reason",
}

var requiredColumns = []string{"employee_code", "position_code", "start_date", "base_salary"}

var dateLayouts = []string{"2006-01-02", "02.01.2006", "02/01/2006", "2006/01/02"}

// Row is one contract line of a legacy spreadsheet.
type Row struct {
	Line              int
	Number            string
	EmployeeCode      string
	PositionCode      string
	DepartmentCode    string
	StartDate         time.Time
	EndDate           *time.Time
	BaseSalary        decimal.Decimal
	InsuranceSalary   decimal.Decimal
	Status            models.ContractStatus
	TerminationDate   *time.Time
	TerminationReason *models.TerminationReason
}

// RowError reports a spreadsheet line that could not be used.
type RowError struct {
	Line int
	Err  error
}

func (r RowError) Error() string {
	if r.Line == 0 {
		return r.Err.Error()
	}
	return fmt.Sprintf("line %d: %v", r.Line, r.Err)
}

func (r RowError) Unwrap() error { return r.Err }

// ReadRows parses the first sheet of an xlsx workbook. Lines that fail to
// parse are returned as RowErrors; a missing column fails the whole file.
func ReadRows(r io.Reader) ([]Row, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, fmt.Errorf("%w: workbook has no sheets", e.ErrInvalidInput)
	}
	lines, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("%w: sheet %s is empty", e.ErrInvalidInput, sheet)
	}

	columns := make(map[string]int, len(lines[0]))
	for i, h := range lines[0] {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, nil, fmt.Errorf("%w: missing column %s", e.ErrInvalidInput, name)
		}
	}

	var (
		rows   []Row
		failed []RowError
	)
	for i := 1; i < len(lines); i++ {
		cell := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(lines[i]) {
				return ""
			}
			return strings.TrimSpace(lines[i][idx])
		}
		if blank(lines[i]) {
			continue
		}
		row, err := parseRow(i+1, cell)
		if err != nil {
			failed = append(failed, RowError{Line: i + 1, Err: err})
			continue
		}
		rows = append(rows, row)
	}
	return rows, failed, nil
}

func parseRow(line int, cell func(string) string) (Row, error) {
	row := Row{
		Line:           line,
		Number:         cell("contract_number"),
		EmployeeCode:   cell("employee_code"),
		PositionCode:   cell("position_code"),
		DepartmentCode: cell("department_code"),
		Status:         models.ContractStatus(strings.ToUpper(cell("status"))),
	}
	if row.EmployeeCode == "" || row.PositionCode == "" {
		return Row{}, fmt.Errorf("%w: employee_code and position_code are required", e.ErrInvalidInput)
	}

	var err error
	if row.StartDate, err = parseDate(cell("start_date")); err != nil {
		return Row{}, fmt.Errorf("start_date: %w", err)
	}
	if row.EndDate, err = parseOptionalDate(cell("end_date")); err != nil {
		return Row{}, fmt.Errorf("end_date: %w", err)
	}
	if row.TerminationDate, err = parseOptionalDate(cell("termination_date")); err != nil {
		return Row{}, fmt.Errorf("termination_date: %w", err)
	}
	if row.BaseSalary, err = parseAmount(cell("base_salary")); err != nil {
		return Row{}, fmt.Errorf("base_salary: %w", err)
	}
	if v := cell("insurance_salary"); v != "" {
		if row.InsuranceSalary, err = parseAmount(v); err != nil {
			return Row{}, fmt.Errorf("insurance_salary: %w", err)
		}
	}
	if v := cell("termination_reason"); v != "" {
		reason := models.TerminationReason(strings.ToUpper(v))
		if !reason.Valid() {
			return Row{}, fmt.Errorf("%w: unknown termination reason %q", e.ErrInvalidInput, v)
		}
		row.TerminationReason = &reason
	}

	if row.Status == "" {
		row.Status = inferStatus(row)
	}
	if !row.Status.Valid() {
		return Row{}, fmt.Errorf("%w: unknown status %q", e.ErrInvalidInput, row.Status)
	}
	if row.TerminationDate != nil && row.Status != models.ContractTerminated {
		return Row{}, fmt.Errorf("%w: termination date given for a %s contract", e.ErrInvalidInput, row.Status)
	}
	return row, nil
}

// inferStatus fills in the status when the sheet leaves it blank.
func inferStatus(row Row) models.ContractStatus {
	switch {
	case row.TerminationDate != nil:
		return models.ContractTerminated
	case row.EndDate != nil && row.EndDate.Before(interval.Day(time.Now())):
		return models.ContractExpired
	default:
		return models.ContractActive
	}
}

func parseOptionalDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	d, err := parseDate(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseDate accepts ISO and day-first dates as well as raw Excel serials.
func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", e.ErrInvalidInput)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return interval.Day(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return interval.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised date %q", e.ErrInvalidInput, v)
}

func parseAmount(v string) (decimal.Decimal, error) {
	v = strings.NewReplacer(",", "", " ", "", "_", "").Replace(v)
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not an amount", e.ErrInvalidInput, v)
	}
	return d, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteTemplate writes an empty workbook with the expected header row.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	for i, h := range Header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, style); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", "K", 18); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
