package db

import (
	"context"
	"fmt"
	"time"

	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

func (r *Repository) CreateContract(ctx context.Context, contract *models.Contract) error {
	if contract.ID == uuid.Nil {
		contract.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(contract).Error, "contract "+contract.ID.String())
}

func (r *Repository) GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.WithContext(ctx).First(&contract, "id = ?", id).Error; err != nil {
		return nil, translate(err, "contract "+id.String())
	}
	return &contract, nil
}

// GetContractForUpdate loads the contract and locks its row.
func (r *Repository) GetContractForUpdate(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&contract, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "contract "+id.String())
	}
	return &contract, nil
}

func (r *Repository) SaveContract(ctx context.Context, contract *models.Contract) error {
	return translate(r.db.WithContext(ctx).Save(contract).Error, "contract "+contract.ID.String())
}

// ListContractsForEmployee returns the employee's contracts in the given
// statuses (all when none given), oldest start first.
func (r *Repository) ListContractsForEmployee(ctx context.Context, employeeID uuid.UUID, statuses ...models.ContractStatus) ([]models.Contract, error) {
	q := r.db.WithContext(ctx).Where("employee_id = ?", employeeID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var contracts []models.Contract
	if err := q.Order("start_date ASC").Order("id ASC").Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

// FindOverlappingContracts returns the employee's in-force contracts, other
// than excludeID, whose span shares a day with rng.
func (r *Repository) FindOverlappingContracts(ctx context.Context, employeeID, excludeID uuid.UUID, rng interval.Range) ([]models.Contract, error) {
	candidates, err := r.ListContractsForEmployee(ctx, employeeID, models.ContractActive, models.ContractSuspended)
	if err != nil {
		return nil, err
	}
	var out []models.Contract
	for _, c := range candidates {
		if c.ID == excludeID {
			continue
		}
		if c.Range().Overlaps(rng) {
			out = append(out, c)
		}
	}
	return out, nil
}

// CountActivatedContracts counts the employee's contracts, other than
// excludeID, that have ever been approved.
func (r *Repository) CountActivatedContracts(ctx context.Context, employeeID, excludeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("employee_id = ? AND id <> ?", employeeID, excludeID).
		Where("status IN ?", []models.ContractStatus{
			models.ContractActive, models.ContractSuspended, models.ContractTerminated, models.ContractExpired,
		}).
		Count(&count).Error
	return count, err
}

// ListDueForExpiry returns ACTIVE contracts whose last day is before asOf.
func (r *Repository) ListDueForExpiry(ctx context.Context, asOf time.Time) ([]models.Contract, error) {
	var contracts []models.Contract
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_date IS NOT NULL AND end_date < ?", models.ContractActive, interval.Day(asOf)).
		Order("end_date ASC").
		Find(&contracts).Error
	return contracts, err
}

// ListLegacyContracts returns migrated contracts grouped by employee in start order.
func (r *Repository) ListLegacyContracts(ctx context.Context) ([]models.Contract, error) {
	var contracts []models.Contract
	err := r.db.WithContext(ctx).
		Where("source = ?", models.SourceLegacy).
		Order("employee_id ASC").Order("start_date ASC").Order("id ASC").
		Find(&contracts).Error
	return contracts, err
}

// SetContractPeriod links a contract to the employment period it belongs to.
func (r *Repository) SetContractPeriod(ctx context.Context, contractID, periodID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("id = ?", contractID).
		Update("employment_period_id", periodID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: contract %s", e.ErrNotFound, contractID)
	}
	return nil
}

// ReassignContractsPeriod moves every contract of one period to another,
// used when two periods are merged.
func (r *Repository) ReassignContractsPeriod(ctx context.Context, fromPeriodID, toPeriodID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("employment_period_id = ?", fromPeriodID).
		Update("employment_period_id", toPeriodID).Error
}

func (r *Repository) CreateApprovals(ctx context.Context, approvals []models.ContractApproval) error {
	if len(approvals) == 0 {
		return nil
	}
	for i := range approvals {
		if approvals[i].ID == uuid.Nil {
			approvals[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&approvals).Error
}

// ListApprovals returns the approval chain of a contract in step order.
func (r *Repository) ListApprovals(ctx context.Context, contractID uuid.UUID) ([]models.ContractApproval, error) {
	var approvals []models.ContractApproval
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("step_order ASC").
		Find(&approvals).Error
	return approvals, err
}

func (r *Repository) SaveApproval(ctx context.Context, approval *models.ContractApproval) error {
	return r.db.WithContext(ctx).Save(approval).Error
}

func (r *Repository) DeleteApprovals(ctx context.Context, contractID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Delete(&models.ContractApproval{}).Error
}
