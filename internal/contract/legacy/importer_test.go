package legacy

import (
	"context"
	"testing"

	"github.com/gartstein/hrm/internal/contract/db"
	"github.com/gartstein/hrm/internal/contract/db/dbtest"
	"github.com/gartstein/hrm/internal/contract/employment"
	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/grade"
	"github.com/gartstein/hrm/internal/contract/insurance"
	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/gartstein/hrm/internal/pkg/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func setup(t *testing.T) (*Importer, *db.Repository, dbtest.Org, *observer.ObservedLogs) {
	t.Helper()
	repo := dbtest.Open(t)
	org := dbtest.SeedOrg(t, repo)
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(zapcore.NewTee(zaptest.NewLogger(t).Core(), core))

	versioner := insurance.NewVersioner(logger, grade.NewDetector(logger, decimal.Zero), insurance.Config{DefaultRegion: 1, DefaultGrade: 1})
	return NewImporter(repo, logger, employment.NewResolver(logger), versioner), repo, org, logs
}

func legacyRows() []Row {
	return []Row{
		{
			Line: 2, Number: "L-1", EmployeeCode: "E001", PositionCode: "ENG",
			StartDate: interval.Date(2020, 1, 1), EndDate: utils.Ptr(interval.Date(2021, 12, 31)),
			BaseSalary: decimal.NewFromInt(11_800_000), Status: models.ContractExpired,
		},
		{
			Line: 3, Number: "L-2", EmployeeCode: "E001", PositionCode: "ENG", DepartmentCode: "OPS",
			StartDate:  interval.Date(2022, 1, 1),
			BaseSalary: decimal.NewFromInt(12_500_000), Status: models.ContractActive,
		},
		{
			Line: 4, EmployeeCode: "E999", PositionCode: "ENG",
			StartDate:  interval.Date(2022, 1, 1),
			BaseSalary: decimal.NewFromInt(12_500_000), Status: models.ContractActive,
		},
	}
}

func TestImport_DryRunWritesNothing(t *testing.T) {
	im, repo, _, logs := setup(t)
	ctx := context.Background()

	report, err := im.Import(ctx, legacyRows(), nil, false)
	require.NoError(t, err)
	assert.False(t, report.Applied)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Imported)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 4, report.Failed[0].Line)
	assert.ErrorIs(t, report.Failed[0], e.ErrNotFound)
	assert.Equal(t, 1, logs.FilterMessage("legacy row skipped").Len())

	contracts, err := repo.ListLegacyContracts(ctx)
	require.NoError(t, err)
	assert.Empty(t, contracts)
}

func TestImport_ApplyIsIdempotent(t *testing.T) {
	im, repo, org, _ := setup(t)
	ctx := context.Background()

	report, err := im.Import(ctx, legacyRows(), &org.HR.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)

	contracts, err := repo.ListLegacyContracts(ctx)
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, models.SourceLegacy, contracts[0].Source)
	assert.Equal(t, org.Position.ID, contracts[0].PositionID)
	require.NotNil(t, contracts[0].DepartmentID)
	assert.Equal(t, org.Department.ID, *contracts[0].DepartmentID, "the employee's department is the default")

	report, err = im.Import(ctx, legacyRows(), &org.HR.ID, true)
	require.NoError(t, err)
	assert.Zero(t, report.Imported)
	assert.Equal(t, 2, report.Skipped)
}

func TestImport_RejectsBadRows(t *testing.T) {
	im, _, _, _ := setup(t)

	rows := []Row{
		{Line: 2, EmployeeCode: "E001", PositionCode: "NOPE", StartDate: interval.Date(2024, 1, 1), BaseSalary: decimal.NewFromInt(1), Status: models.ContractActive},
		{Line: 3, EmployeeCode: "E001", PositionCode: "ENG", StartDate: interval.Date(2024, 1, 1), EndDate: utils.Ptr(interval.Date(2023, 1, 1)), BaseSalary: decimal.NewFromInt(1), Status: models.ContractActive},
		{Line: 4, EmployeeCode: "E001", PositionCode: "ENG", StartDate: interval.Date(2024, 1, 1), Status: models.ContractActive},
		{Line: 5, EmployeeCode: "E001", PositionCode: "ENG", DepartmentCode: "NOPE", StartDate: interval.Date(2024, 1, 1), BaseSalary: decimal.NewFromInt(1), Status: models.ContractActive},
		{
			Line: 6, EmployeeCode: "E001", PositionCode: "ENG", StartDate: interval.Date(2024, 1, 1), EndDate: utils.Ptr(interval.Date(2024, 6, 30)),
			TerminationDate: utils.Ptr(interval.Date(2024, 7, 15)), BaseSalary: decimal.NewFromInt(1), Status: models.ContractTerminated,
		},
	}
	report, err := im.Import(context.Background(), rows, nil, true)
	require.NoError(t, err)
	assert.Zero(t, report.Imported)
	assert.Len(t, report.Failed, 5)
}

func TestBackfill(t *testing.T) {
	im, repo, org, _ := setup(t)
	ctx := context.Background()
	_, err := im.Import(ctx, legacyRows(), nil, true)
	require.NoError(t, err)

	dry, err := im.Backfill(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 2, dry.Backfilled)
	periods, err := repo.ListEmploymentPeriods(ctx, org.Employee.ID, false)
	require.NoError(t, err)
	assert.Empty(t, periods, "a dry run leaves no trace")

	report, err := im.Backfill(ctx, &org.HR.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Attached)
	assert.Equal(t, 2, report.Backfilled)
	assert.Empty(t, report.Failed)

	periods, err = repo.ListEmploymentPeriods(ctx, org.Employee.ID, false)
	require.NoError(t, err)
	require.Len(t, periods, 1, "adjacent legacy contracts form one period")
	assert.Equal(t, "2020-01-01", periods[0].StartDate.Format("2006-01-02"))
	assert.Nil(t, periods[0].EndDate)

	profiles, err := repo.ListProfiles(ctx, org.Employee.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, 2, profiles[0].Grade)
	require.NotNil(t, profiles[0].AppliedTo)
	assert.Equal(t, "2021-12-31", profiles[0].AppliedTo.Format("2006-01-02"))
	assert.Equal(t, 3, profiles[1].Grade)
	assert.Nil(t, profiles[1].AppliedTo)
	for _, p := range profiles {
		assert.Equal(t, models.ProfileBackfill, p.Reason)
	}

	again, err := im.Backfill(ctx, &org.HR.ID, true)
	require.NoError(t, err)
	assert.Zero(t, again.Backfilled)
	profiles, err = repo.ListProfiles(ctx, org.Employee.ID)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestBackfill_SkipsUnqualifiedContracts(t *testing.T) {
	im, repo, org, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateContract(ctx, &models.Contract{
		EmployeeID: org.Employee.ID,
		PositionID: org.Position.ID,
		Source:     models.SourceLegacy,
		StartDate:  interval.Date(2024, 1, 1),
		BaseSalary: decimal.NewFromInt(11_800_000),
		Status:     models.ContractDraft,
	}))

	report, err := im.Backfill(ctx, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Attached)
}
