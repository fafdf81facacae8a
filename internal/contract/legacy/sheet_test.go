package legacy

import (
	"bytes"
	"testing"

	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// workbook builds an in-memory xlsx whose first sheet holds lines.
func workbook(t *testing.T, lines ...[]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, line := range lines {
		for c, v := range line {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func TestReadRows(t *testing.T) {
	buf := workbook(t,
		[]string{"Contract_Number", " Employee_Code ", "position_code", "department_code", "start_date", "end_date", "base_salary", "insurance_salary", "status", "termination_date", "termination_reason"},
		[]string{"L-1", "E001", "ENG", "OPS", "2020-01-01", "31.12.2021", "11,800,000", "", "expired", "", ""},
		[]string{"L-2", "E001", "ENG", "", "45292", "", "12500000", "12400000", "", "2024-03-15", "resignation"},
		[]string{"L-3", "E002", "ENG", "", "someday", "", "1", "", "", "", ""},
		[]string{"", "", "", "", "", "", "", "", "", "", ""},
		[]string{"L-4", "E003", "ENG", "", "2024-01-01", "", "1", "", "ACTIVE", "", "BORED"},
		[]string{"L-5", "E004", "ENG", "", "2024-01-01", "", "1", "", "ACTIVE", "2024-02-01", ""},
	)

	rows, failed, err := ReadRows(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "L-1", first.Number)
	assert.Equal(t, "OPS", first.DepartmentCode)
	assert.Equal(t, "2020-01-01", first.StartDate.Format("2006-01-02"))
	require.NotNil(t, first.EndDate)
	assert.Equal(t, "2021-12-31", first.EndDate.Format("2006-01-02"))
	assert.True(t, first.BaseSalary.Equal(decimal.NewFromInt(11_800_000)))
	assert.True(t, first.InsuranceSalary.IsZero())
	assert.Equal(t, models.ContractExpired, first.Status)

	second := rows[1]
	assert.Equal(t, "2024-01-01", second.StartDate.Format("2006-01-02"), "excel serial dates are accepted")
	assert.Equal(t, models.ContractTerminated, second.Status, "a termination date implies TERMINATED")
	require.NotNil(t, second.TerminationReason)
	assert.Equal(t, models.ReasonResignation, *second.TerminationReason)
	assert.True(t, second.InsuranceSalary.Equal(decimal.NewFromInt(12_400_000)))

	require.Len(t, failed, 3)
	assert.Equal(t, []int{4, 6, 7}, []int{failed[0].Line, failed[1].Line, failed[2].Line})
	for _, f := range failed {
		assert.ErrorIs(t, f, e.ErrInvalidInput)
	}
	assert.Contains(t, failed[0].Error(), "line 4: start_date")
}

func TestReadRows_MissingColumn(t *testing.T) {
	buf := workbook(t,
		[]string{"employee_code", "position_code", "start_date"},
		[]string{"E001", "ENG", "2024-01-01"},
	)
	_, _, err := ReadRows(buf)
	assert.ErrorIs(t, err, e.ErrInvalidInput)
	assert.Contains(t, err.Error(), "base_salary")
}

func TestReadRows_NotAWorkbook(t *testing.T) {
	_, _, err := ReadRows(bytes.NewBufferString("employee_code,position_code"))
	assert.Error(t, err)
}

func TestWriteTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, sheetName, f.GetSheetName(0))
	lines, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, Header, lines[0])

	rows, failed, err := ReadRows(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, failed)
}
