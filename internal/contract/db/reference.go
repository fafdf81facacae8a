package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FindMinimumWage returns the minimum wage of region in force on the given day.
func (r *Repository) FindMinimumWage(ctx context.Context, region int, on time.Time) (*models.MinimumWage, error) {
	day := interval.Day(on)
	var wage models.MinimumWage
	err := r.db.WithContext(ctx).
		Where("region = ? AND effective_from <= ?", region, day).
		Where("effective_to IS NULL OR effective_to >= ?", day).
		Order("effective_from DESC").
		First(&wage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: minimum wage for region %d on %s", e.ErrMissingReference, region, day.Format("2006-01-02"))
		}
		return nil, err
	}
	return &wage, nil
}

// ListSalaryGrades returns the active grade coefficients of a position in
// force on the given day, lowest grade first.
func (r *Repository) ListSalaryGrades(ctx context.Context, positionID uuid.UUID, on time.Time) ([]models.PositionSalaryGrade, error) {
	day := interval.Day(on)
	var grades []models.PositionSalaryGrade
	err := r.db.WithContext(ctx).
		Where("position_id = ? AND is_active = ? AND effective_from <= ?", positionID, true, day).
		Where("effective_to IS NULL OR effective_to >= ?", day).
		Order("grade ASC").Order("effective_from DESC").
		Find(&grades).Error
	if err != nil {
		return nil, err
	}
	// keep the newest row per grade
	out := grades[:0]
	seen := make(map[int]bool, len(grades))
	for _, g := range grades {
		if seen[g.Grade] {
			continue
		}
		seen[g.Grade] = true
		out = append(out, g)
	}
	return out, nil
}

func (r *Repository) CreateMinimumWage(ctx context.Context, wage *models.MinimumWage) error {
	if wage.ID == uuid.Nil {
		wage.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(wage).Error
}

func (r *Repository) CreateSalaryGrade(ctx context.Context, grade *models.PositionSalaryGrade) error {
	if grade.ID == uuid.Nil {
		grade.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(grade).Error
}
