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

// ListEmploymentPeriods returns the employee's periods, oldest first. With
// forUpdate the rows stay locked until the transaction ends.
func (r *Repository) ListEmploymentPeriods(ctx context.Context, employeeID uuid.UUID, forUpdate bool) ([]models.EmploymentPeriod, error) {
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var periods []models.EmploymentPeriod
	err := q.Where("employee_id = ?", employeeID).
		Order("start_date ASC").Order("id ASC").
		Find(&periods).Error
	return periods, err
}

func (r *Repository) CreateEmploymentPeriod(ctx context.Context, period *models.EmploymentPeriod) error {
	if period.ID == uuid.Nil {
		period.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(period).Error, "open employment period for employee "+period.EmployeeID.String())
}

func (r *Repository) SaveEmploymentPeriod(ctx context.Context, period *models.EmploymentPeriod) error {
	return translate(r.db.WithContext(ctx).Save(period).Error, "open employment period for employee "+period.EmployeeID.String())
}

func (r *Repository) DeleteEmploymentPeriod(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.EmploymentPeriod{}, "id = ?", id).Error
}

// GetOpenProfile returns the employee's currently applied insurance profile.
func (r *Repository) GetOpenProfile(ctx context.Context, employeeID uuid.UUID) (*models.EmployeeInsuranceProfile, error) {
	var profile models.EmployeeInsuranceProfile
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND applied_to IS NULL", employeeID).
		First(&profile).Error
	if err != nil {
		return nil, translate(err, "open insurance profile for employee "+employeeID.String())
	}
	return &profile, nil
}

func (r *Repository) CountOpenProfiles(ctx context.Context, employeeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EmployeeInsuranceProfile{}).
		Where("employee_id = ? AND applied_to IS NULL", employeeID).
		Count(&count).Error
	return count, err
}

// CreateProfile inserts a profile slice. An open slice is refused while
// another open slice exists for the employee.
func (r *Repository) CreateProfile(ctx context.Context, profile *models.EmployeeInsuranceProfile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	if profile.Version == 0 {
		profile.Version = 1
	}
	if profile.AppliedTo == nil {
		open, err := r.CountOpenProfiles(ctx, profile.EmployeeID)
		if err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%w: employee %s already has an open insurance profile", e.ErrConflict, profile.EmployeeID)
		}
	}
	return translate(r.db.WithContext(ctx).Create(profile).Error, "open insurance profile for employee "+profile.EmployeeID.String())
}

// CloseProfile sets applied_to on an open slice, provided nobody else has
// written it since it was read.
func (r *Repository) CloseProfile(ctx context.Context, profile *models.EmployeeInsuranceProfile, appliedTo time.Time) error {
	day := interval.Day(appliedTo)
	result := r.db.WithContext(ctx).Model(&models.EmployeeInsuranceProfile{}).
		Where("id = ? AND version = ? AND applied_to IS NULL", profile.ID, profile.Version).
		Updates(map[string]interface{}{
			"applied_to": day,
			"version":    profile.Version + 1,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: insurance profile %s changed since it was read", e.ErrConflict, profile.ID)
	}
	profile.AppliedTo = &day
	profile.Version++
	return nil
}

// UpdateProfile rewrites a slice in place under the same version check.
func (r *Repository) UpdateProfile(ctx context.Context, profile *models.EmployeeInsuranceProfile) error {
	result := r.db.WithContext(ctx).Model(&models.EmployeeInsuranceProfile{}).
		Where("id = ? AND version = ?", profile.ID, profile.Version).
		Updates(map[string]interface{}{
			"position_id":        profile.PositionID,
			"grade":              profile.Grade,
			"applied_from":       interval.Day(profile.AppliedFrom),
			"applied_to":         interval.DayPtr(profile.AppliedTo),
			"reason":             profile.Reason,
			"source_contract_id": profile.SourceContractID,
			"source_appendix_id": profile.SourceAppendixID,
			"note":               profile.Note,
			"version":            profile.Version + 1,
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return translate(result.Error, "insurance profile "+profile.ID.String())
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: insurance profile %s changed since it was read", e.ErrConflict, profile.ID)
	}
	profile.Version++
	return nil
}

// ProfileExistsFrom reports whether the employee has a slice starting on appliedFrom.
func (r *Repository) ProfileExistsFrom(ctx context.Context, employeeID uuid.UUID, appliedFrom time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EmployeeInsuranceProfile{}).
		Where("employee_id = ? AND applied_from = ?", employeeID, interval.Day(appliedFrom)).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) ListProfiles(ctx context.Context, employeeID uuid.UUID) ([]models.EmployeeInsuranceProfile, error) {
	var profiles []models.EmployeeInsuranceProfile
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("applied_from ASC").
		Find(&profiles).Error
	return profiles, err
}
