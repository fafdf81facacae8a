// Package grade infers the statutory salary grade of a position from a
// negotiated insurance salary.
//
// Each grade's reference salary is the regional minimum wage multiplied by
// the grade's coefficient. The detected grade is the one whose reference
// salary is nearest to the given salary; on a tie the lower grade wins.
package grade

import (
	"context"
	"fmt"
	"time"

	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	MinGrade = 1
	MaxGrade = 7
)

// ReferenceStore reads the read-only reference tables.
type ReferenceStore interface {
	FindMinimumWage(ctx context.Context, region int, on time.Time) (*models.MinimumWage, error)
	ListSalaryGrades(ctx context.Context, positionID uuid.UUID, on time.Time) ([]models.PositionSalaryGrade, error)
}

// Result describes a detected grade.
type Result struct {
	Grade       int
	Reference   decimal.Decimal
	Deviation   decimal.Decimal
	MinimumWage decimal.Decimal
}

type Detector struct {
	logger       *zap.Logger
	maxDeviation decimal.Decimal
}

// NewDetector builds a Detector. maxDeviation is the largest accepted
// |reference - salary| / salary; zero accepts any distance.
func NewDetector(logger *zap.Logger, maxDeviation decimal.Decimal) *Detector {
	return &Detector{
		logger:       logger.Named("grade_detector"),
		maxDeviation: maxDeviation,
	}
}

// Detect returns the grade of positionID nearest to salary on the given day.
// Missing reference rows yield ErrMissingReference. A nearest grade further
// away than the configured tolerance is returned together with ErrNeedsReview.
func (d *Detector) Detect(ctx context.Context, store ReferenceStore, salary decimal.Decimal, positionID uuid.UUID, region int, on time.Time) (Result, error) {
	if !salary.IsPositive() {
		return Result{}, fmt.Errorf("%w: salary %s must be positive", e.ErrInvalidInput, salary)
	}
	wage, grades, err := d.load(ctx, store, positionID, region, on)
	if err != nil {
		return Result{}, err
	}

	var best Result
	found := false
	for _, g := range grades {
		if g.Grade < MinGrade || g.Grade > MaxGrade {
			d.logger.Warn("salary grade out of range ignored",
				zap.String("position_id", positionID.String()),
				zap.Int("grade", g.Grade),
			)
			continue
		}
		reference := wage.Amount.Mul(g.Coefficient)
		deviation := reference.Sub(salary).Abs()
		if !found || deviation.LessThan(best.Deviation) {
			best = Result{Grade: g.Grade, Reference: reference, Deviation: deviation, MinimumWage: wage.Amount}
			found = true
		}
	}
	if !found {
		return Result{}, fmt.Errorf("%w: no usable grade for position %s", e.ErrMissingReference, positionID)
	}

	if d.maxDeviation.IsPositive() {
		if ratio := best.Deviation.Div(salary); ratio.GreaterThan(d.maxDeviation) {
			return best, fmt.Errorf("%w: salary %s is %s%% away from grade %d reference %s",
				e.ErrNeedsReview, salary, ratio.Mul(decimal.NewFromInt(100)).StringFixed(1), best.Grade, best.Reference)
		}
	}
	return best, nil
}

// ReferenceSalary returns minimum wage x coefficient for one grade.
func (d *Detector) ReferenceSalary(ctx context.Context, store ReferenceStore, positionID uuid.UUID, grade int, region int, on time.Time) (decimal.Decimal, error) {
	wage, grades, err := d.load(ctx, store, positionID, region, on)
	if err != nil {
		return decimal.Zero, err
	}
	for _, g := range grades {
		if g.Grade == grade {
			return wage.Amount.Mul(g.Coefficient), nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: grade %d of position %s", e.ErrMissingReference, grade, positionID)
}

func (d *Detector) load(ctx context.Context, store ReferenceStore, positionID uuid.UUID, region int, on time.Time) (*models.MinimumWage, []models.PositionSalaryGrade, error) {
	grades, err := store.ListSalaryGrades(ctx, positionID, on)
	if err != nil {
		return nil, nil, err
	}
	if len(grades) == 0 {
		return nil, nil, fmt.Errorf("%w: salary grades for position %s on %s", e.ErrMissingReference, positionID, on.Format("2006-01-02"))
	}
	wage, err := store.FindMinimumWage(ctx, region, on)
	if err != nil {
		return nil, nil, err
	}
	return wage, grades, nil
}
