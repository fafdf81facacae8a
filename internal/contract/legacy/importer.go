package legacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/gartstein/hrm/internal/contract/db"
	"github.com/gartstein/hrm/internal/contract/employment"
	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/insurance"
	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errDryRun = errors.New("dry run")

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error
}

// Report summarises one import or backfill run.
type Report struct {
	Applied    bool
	Total      int
	Imported   int
	Skipped    int
	Attached   int
	Backfilled int
	Failed     []RowError
}

type Importer struct {
	repo      Repository
	logger    *zap.Logger
	resolver  *employment.Resolver
	versioner *insurance.Versioner
}

func NewImporter(repo Repository, logger *zap.Logger, resolver *employment.Resolver, versioner *insurance.Versioner) *Importer {
	return &Importer{
		repo:      repo,
		logger:    logger.Named("legacy_import"),
		resolver:  resolver,
		versioner: versioner,
	}
}

// Import stores rows as LEGACY contracts. A row already imported (same
// employee and start date) is skipped, a row that fails is reported and
// the rest carry on. Without apply the whole run is rolled back.
func (im *Importer) Import(ctx context.Context, rows []Row, actor *uuid.UUID, apply bool) (Report, error) {
	report := Report{Applied: apply, Total: len(rows)}
	err := im.run(ctx, apply, func(tx *db.Repository) error {
		for _, row := range rows {
			var imported bool
			err := tx.WithTransaction(ctx, func(tx *db.Repository) error {
				var err error
				imported, err = im.importRow(ctx, tx, row, actor)
				return err
			})
			switch {
			case err == nil && imported:
				report.Imported++
			case err == nil:
				report.Skipped++
			case e.IsRejection(err):
				im.logger.Warn("legacy row skipped",
					zap.Int("line", row.Line),
					zap.String("employee_code", row.EmployeeCode),
					zap.Error(err),
				)
				report.Failed = append(report.Failed, RowError{Line: row.Line, Err: err})
			default:
				return fmt.Errorf("line %d: %w", row.Line, err)
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	im.logger.Info("legacy import finished",
		zap.Bool("applied", apply),
		zap.Int("total", report.Total),
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (im *Importer) importRow(ctx context.Context, tx *db.Repository, row Row, actor *uuid.UUID) (bool, error) {
	employee, err := tx.GetEmployeeByCode(ctx, row.EmployeeCode)
	if err != nil {
		return false, err
	}
	position, err := tx.GetPositionByCode(ctx, row.PositionCode)
	if err != nil {
		return false, err
	}
	departmentID := employee.DepartmentID
	if row.DepartmentCode != "" {
		dept, err := tx.GetDepartmentByCode(ctx, row.DepartmentCode)
		if err != nil {
			return false, err
		}
		departmentID = &dept.ID
	}

	existing, err := tx.ListContractsForEmployee(ctx, employee.ID)
	if err != nil {
		return false, err
	}
	for _, c := range existing {
		if c.Source == models.SourceLegacy && c.StartDate.Equal(interval.Day(row.StartDate)) {
			return false, nil
		}
	}

	contract := &models.Contract{
		ID:                uuid.New(),
		Number:            row.Number,
		EmployeeID:        employee.ID,
		PositionID:        position.ID,
		DepartmentID:      departmentID,
		Source:            models.SourceLegacy,
		StartDate:         interval.Day(row.StartDate),
		EndDate:           interval.DayPtr(row.EndDate),
		BaseSalary:        row.BaseSalary,
		InsuranceSalary:   row.InsuranceSalary,
		Status:            row.Status,
		TerminationDate:   interval.DayPtr(row.TerminationDate),
		TerminationReason: row.TerminationReason,
		CreatedBy:         actor,
	}
	if !contract.Range().Valid() {
		return false, fmt.Errorf("%w: contract ends before it starts %s", e.ErrInvalidInput, contract.Range())
	}
	if contract.TerminationDate != nil && !contract.Range().Covers(*contract.TerminationDate) {
		return false, fmt.Errorf("%w: termination date %s is outside %s", e.ErrInvalidInput, interval.Format(contract.TerminationDate), contract.Range())
	}
	if !contract.BaseSalary.IsPositive() {
		return false, fmt.Errorf("%w: base salary must be positive", e.ErrInvalidInput)
	}
	return true, tx.CreateContract(ctx, contract)
}

// Backfill attaches every legacy contract to its employment period and
// backfills the insurance profile it implies, per employee in start order.
// Re-running it is a no-op.
func (im *Importer) Backfill(ctx context.Context, actor *uuid.UUID, apply bool) (Report, error) {
	report := Report{Applied: apply}
	err := im.run(ctx, apply, func(tx *db.Repository) error {
		contracts, err := tx.ListLegacyContracts(ctx)
		if err != nil {
			return err
		}
		report.Total = len(contracts)
		for i := range contracts {
			c := &contracts[i]
			if !employment.ShouldCreateEmployment(c) {
				report.Skipped++
				continue
			}
			var (
				period  *models.EmploymentPeriod
				profile *models.EmployeeInsuranceProfile
			)
			err := tx.WithTransaction(ctx, func(tx *db.Repository) error {
				var err error
				if period, err = im.resolver.AttachForContract(ctx, tx, c); err != nil {
					return err
				}
				profile, err = im.versioner.BackfillFromLegacyContract(ctx, tx, c, actor)
				return err
			})
			if err != nil {
				if !e.IsRejection(err) && !errors.Is(err, e.ErrConflict) {
					return fmt.Errorf("contract %s: %w", c.ID, err)
				}
				im.logger.Warn("legacy contract not backfilled",
					zap.String("contract_id", c.ID.String()),
					zap.String("employee_id", c.EmployeeID.String()),
					zap.Error(err),
				)
				report.Failed = append(report.Failed, RowError{Err: fmt.Errorf("contract %s: %w", c.ID, err)})
				continue
			}
			if period != nil {
				report.Attached++
			}
			if profile != nil {
				report.Backfilled++
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	im.logger.Info("legacy backfill finished",
		zap.Bool("applied", apply),
		zap.Int("contracts", report.Total),
		zap.Int("attached", report.Attached),
		zap.Int("backfilled", report.Backfilled),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// run executes fn in one transaction, rolled back at the end of a dry run.
func (im *Importer) run(ctx context.Context, apply bool, fn func(tx *db.Repository) error) error {
	err := im.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		if err := fn(tx); err != nil {
			return err
		}
		if !apply {
			return errDryRun
		}
		return nil
	})
	if errors.Is(err, errDryRun) {
		return nil
	}
	return err
}
