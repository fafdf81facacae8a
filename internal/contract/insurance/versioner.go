// Package insurance keeps the versioned history of the grade that determines
// an employee's statutory insurance salary. Slices never overlap and at most
// one is open per employee: opening a slice closes the previous one the day
// before.
package insurance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/grade"
	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store is the slice of the repository the versioner writes through. It must
// be bound to the caller's transaction.
type Store interface {
	grade.ReferenceStore
	LockEmployee(ctx context.Context, employeeID uuid.UUID) error
	GetOpenProfile(ctx context.Context, employeeID uuid.UUID) (*models.EmployeeInsuranceProfile, error)
	CreateProfile(ctx context.Context, profile *models.EmployeeInsuranceProfile) error
	CloseProfile(ctx context.Context, profile *models.EmployeeInsuranceProfile, appliedTo time.Time) error
	UpdateProfile(ctx context.Context, profile *models.EmployeeInsuranceProfile) error
	ProfileExistsFrom(ctx context.Context, employeeID uuid.UUID, appliedFrom time.Time) (bool, error)
	CountActivatedContracts(ctx context.Context, employeeID, excludeID uuid.UUID) (int64, error)
	GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error)
}

// Config holds the fallbacks used when reference data is incomplete.
type Config struct {
	DefaultRegion int
	DefaultGrade  int
}

type Versioner struct {
	logger   *zap.Logger
	detector *grade.Detector
	cfg      Config
}

func NewVersioner(logger *zap.Logger, detector *grade.Detector, cfg Config) *Versioner {
	if cfg.DefaultGrade < grade.MinGrade || cfg.DefaultGrade > grade.MaxGrade {
		cfg.DefaultGrade = grade.MinGrade
	}
	if cfg.DefaultRegion <= 0 {
		cfg.DefaultRegion = 1
	}
	return &Versioner{
		logger:   logger.Named("insurance_versioner"),
		detector: detector,
		cfg:      cfg,
	}
}

// CreateFromContract opens the first slice for a newly activated contract.
// It does nothing when the employee already has an open slice.
func (v *Versioner) CreateFromContract(ctx context.Context, store Store, contract *models.Contract, actor *uuid.UUID) (*models.EmployeeInsuranceProfile, error) {
	if err := store.LockEmployee(ctx, contract.EmployeeID); err != nil {
		return nil, err
	}
	open, err := openProfile(ctx, store, contract.EmployeeID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		v.logger.Info("insurance profile already open",
			zap.String("employee_id", contract.EmployeeID.String()),
			zap.String("profile_id", open.ID.String()),
			zap.String("contract_id", contract.ID.String()),
		)
		return nil, nil
	}

	g, note, err := v.detect(ctx, store, contract.GradeSalary(), contract.PositionID, contract.DepartmentID, contract.StartDate)
	if err != nil {
		return nil, err
	}
	previous, err := store.CountActivatedContracts(ctx, contract.EmployeeID, contract.ID)
	if err != nil {
		return nil, err
	}
	reason := models.ProfileInitial
	if previous > 0 {
		reason = models.ProfilePositionChange
	}

	contractID := contract.ID
	profile := &models.EmployeeInsuranceProfile{
		EmployeeID:       contract.EmployeeID,
		PositionID:       contract.PositionID,
		Grade:            g,
		AppliedFrom:      interval.Day(contract.StartDate),
		Reason:           reason,
		SourceContractID: &contractID,
		Note:             joinNote("contract "+label(contract.Number, contract.ID)+" activated", note),
		CreatedBy:        actor,
	}
	if err := store.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	v.logCreated(profile)
	return profile, nil
}

// UpdateFromSalaryAppendix re-detects the grade from the salary an appendix
// introduces. terms are the contract's effective terms on the appendix's
// effective date with the appendix applied.
func (v *Versioner) UpdateFromSalaryAppendix(ctx context.Context, store Store, contract *models.Contract, appendix *models.ContractAppendix, terms models.Terms, actor *uuid.UUID) (*models.EmployeeInsuranceProfile, error) {
	if _, ok := appendix.GradeSalary(); !ok {
		return nil, nil
	}
	if err := store.LockEmployee(ctx, contract.EmployeeID); err != nil {
		return nil, err
	}
	open, err := openProfile(ctx, store, contract.EmployeeID)
	if err != nil {
		return nil, err
	}
	g, note, err := v.detect(ctx, store, terms.GradeSalary(), terms.PositionID, terms.DepartmentID, appendix.EffectiveDate)
	if err != nil {
		return nil, err
	}

	reason := models.ProfileAdjustment
	if open != nil {
		if open.Grade == g && open.PositionID == terms.PositionID {
			v.logger.Debug("salary change keeps grade",
				zap.String("employee_id", contract.EmployeeID.String()),
				zap.Int("grade", g),
			)
			return nil, nil
		}
		if g > open.Grade {
			reason = models.ProfileSeniority
		}
	}
	next := v.fromAppendix(contract, appendix, terms.PositionID, g, reason, note, actor)
	return v.replace(ctx, store, open, next)
}

// UpdateFromPositionAppendix moves the employee's slice to the position an
// appendix introduces. A move to a higher reference salary is a promotion.
func (v *Versioner) UpdateFromPositionAppendix(ctx context.Context, store Store, contract *models.Contract, appendix *models.ContractAppendix, terms models.Terms, actor *uuid.UUID) (*models.EmployeeInsuranceProfile, error) {
	if appendix.PositionID == nil {
		return nil, nil
	}
	if err := store.LockEmployee(ctx, contract.EmployeeID); err != nil {
		return nil, err
	}
	open, err := openProfile(ctx, store, contract.EmployeeID)
	if err != nil {
		return nil, err
	}
	position := *appendix.PositionID
	g, note, err := v.detect(ctx, store, terms.GradeSalary(), position, terms.DepartmentID, appendix.EffectiveDate)
	if err != nil {
		return nil, err
	}

	reason := models.ProfilePositionChange
	if open != nil {
		if open.PositionID == position && open.Grade == g {
			return nil, nil
		}
		if v.promoted(ctx, store, open, position, g, terms.DepartmentID, appendix.EffectiveDate) {
			reason = models.ProfilePromotion
		}
	}
	next := v.fromAppendix(contract, appendix, position, g, reason, note, actor)
	return v.replace(ctx, store, open, next)
}

// CloseOnContractEnd closes the open slice on the contract's last day. It
// does nothing for an open-ended contract or when no slice is open.
func (v *Versioner) CloseOnContractEnd(ctx context.Context, store Store, contract *models.Contract) (*models.EmployeeInsuranceProfile, error) {
	last := contract.LastDay()
	if last == nil {
		return nil, nil
	}
	if err := store.LockEmployee(ctx, contract.EmployeeID); err != nil {
		return nil, err
	}
	open, err := openProfile(ctx, store, contract.EmployeeID)
	if err != nil || open == nil {
		return nil, err
	}
	end := *last
	if end.Before(interval.Day(open.AppliedFrom)) {
		v.logger.Warn("insurance profile starts after contract end, closing on its first day",
			zap.String("profile_id", open.ID.String()),
			zap.String("applied_from", open.AppliedFrom.Format("2006-01-02")),
			zap.String("contract_end", end.Format("2006-01-02")),
		)
		end = interval.Day(open.AppliedFrom)
	}
	if err := store.CloseProfile(ctx, open, end); err != nil {
		return nil, err
	}
	v.logger.Info("insurance profile closed",
		zap.String("employee_id", contract.EmployeeID.String()),
		zap.String("profile_id", open.ID.String()),
		zap.String("applied_to", end.Format("2006-01-02")),
	)
	return open, nil
}

// BackfillFromLegacyContract records the slice a migrated contract implies.
// Running it again for the same contract start is a no-op. Contracts are
// expected in start-date order per employee.
func (v *Versioner) BackfillFromLegacyContract(ctx context.Context, store Store, contract *models.Contract, actor *uuid.UUID) (*models.EmployeeInsuranceProfile, error) {
	if contract.Source != models.SourceLegacy {
		return nil, fmt.Errorf("%w: contract %s is not a legacy contract", e.ErrInvalidInput, contract.ID)
	}
	if err := store.LockEmployee(ctx, contract.EmployeeID); err != nil {
		return nil, err
	}
	start := interval.Day(contract.StartDate)
	exists, err := store.ProfileExistsFrom(ctx, contract.EmployeeID, start)
	if err != nil {
		return nil, err
	}
	if exists {
		v.logger.Debug("insurance profile already backfilled",
			zap.String("contract_id", contract.ID.String()),
			zap.String("applied_from", start.Format("2006-01-02")),
		)
		return nil, nil
	}

	g, note, err := v.detect(ctx, store, contract.GradeSalary(), contract.PositionID, contract.DepartmentID, start)
	if err != nil {
		return nil, err
	}
	open, err := openProfile(ctx, store, contract.EmployeeID)
	if err != nil {
		return nil, err
	}

	appliedTo := contract.LastDay()
	if open != nil {
		if interval.Day(open.AppliedFrom).Before(start) {
			if err := store.CloseProfile(ctx, open, interval.PrevDay(start)); err != nil {
				return nil, err
			}
		} else {
			// the open slice is newer; the backfilled one must end before it
			limit := interval.PrevDay(open.AppliedFrom)
			if appliedTo == nil || appliedTo.After(limit) {
				appliedTo = &limit
			}
		}
	}

	contractID := contract.ID
	profile := &models.EmployeeInsuranceProfile{
		EmployeeID:       contract.EmployeeID,
		PositionID:       contract.PositionID,
		Grade:            g,
		AppliedFrom:      start,
		AppliedTo:        appliedTo,
		Reason:           models.ProfileBackfill,
		SourceContractID: &contractID,
		Note:             joinNote("backfilled from legacy contract "+label(contract.Number, contract.ID), note),
		CreatedBy:        actor,
	}
	if err := store.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	v.logCreated(profile)
	return profile, nil
}

// replace closes open the day before next starts and stores next. When next
// starts on open's first day, open is rewritten in place. A slice cannot be
// inserted before the open one.
func (v *Versioner) replace(ctx context.Context, store Store, open, next *models.EmployeeInsuranceProfile) (*models.EmployeeInsuranceProfile, error) {
	if open != nil && next.AppliedFrom.Before(interval.Day(open.AppliedFrom)) {
		return nil, fmt.Errorf("%w: change effective %s precedes insurance profile %s applied from %s",
			e.ErrInvalidInput, next.AppliedFrom.Format("2006-01-02"), open.ID, open.AppliedFrom.Format("2006-01-02"))
	}
	if open != nil && next.AppliedFrom.Equal(interval.Day(open.AppliedFrom)) {
		open.PositionID = next.PositionID
		open.Grade = next.Grade
		open.Reason = next.Reason
		open.SourceContractID = next.SourceContractID
		open.SourceAppendixID = next.SourceAppendixID
		open.Note = next.Note
		if err := store.UpdateProfile(ctx, open); err != nil {
			return nil, err
		}
		v.logger.Info("insurance profile rewritten",
			zap.String("profile_id", open.ID.String()),
			zap.Int("grade", open.Grade),
			zap.String("reason", string(open.Reason)),
		)
		return open, nil
	}
	if open != nil {
		if err := store.CloseProfile(ctx, open, interval.PrevDay(next.AppliedFrom)); err != nil {
			return nil, err
		}
	}
	if err := store.CreateProfile(ctx, next); err != nil {
		return nil, err
	}
	v.logCreated(next)
	return next, nil
}

func (v *Versioner) fromAppendix(contract *models.Contract, appendix *models.ContractAppendix, positionID uuid.UUID, g int, reason models.ProfileReason, note string, actor *uuid.UUID) *models.EmployeeInsuranceProfile {
	contractID, appendixID := contract.ID, appendix.ID
	return &models.EmployeeInsuranceProfile{
		EmployeeID:       contract.EmployeeID,
		PositionID:       positionID,
		Grade:            g,
		AppliedFrom:      interval.Day(appendix.EffectiveDate),
		Reason:           reason,
		SourceContractID: &contractID,
		SourceAppendixID: &appendixID,
		Note:             joinNote("appendix "+label(appendix.Number, appendix.ID)+" ("+string(appendix.Type)+")", note),
		CreatedBy:        actor,
	}
}

// promoted compares the reference salaries of the old and new slice.
func (v *Versioner) promoted(ctx context.Context, store Store, open *models.EmployeeInsuranceProfile, positionID uuid.UUID, g int, departmentID *uuid.UUID, on time.Time) bool {
	region := v.region(ctx, store, departmentID)
	before, err := v.detector.ReferenceSalary(ctx, store, open.PositionID, open.Grade, region, on)
	if err != nil {
		v.logger.Warn("cannot price previous position", zap.Error(err))
		return false
	}
	after, err := v.detector.ReferenceSalary(ctx, store, positionID, g, region, on)
	if err != nil {
		v.logger.Warn("cannot price new position", zap.Error(err))
		return false
	}
	return after.GreaterThan(before)
}

// detect returns the grade for salary, or the default grade plus a note when
// the reference data cannot settle it.
func (v *Versioner) detect(ctx context.Context, store Store, salary decimal.Decimal, positionID uuid.UUID, departmentID *uuid.UUID, on time.Time) (int, string, error) {
	region := v.region(ctx, store, departmentID)
	res, err := v.detector.Detect(ctx, store, salary, positionID, region, on)
	switch {
	case err == nil:
		return res.Grade, "", nil
	case errors.Is(err, e.ErrNeedsReview):
		v.logger.Warn("grade needs review, using default grade",
			zap.String("position_id", positionID.String()),
			zap.Int("nearest_grade", res.Grade),
			zap.Int("default_grade", v.cfg.DefaultGrade),
			zap.Error(err),
		)
		return v.cfg.DefaultGrade, "grade needs review: " + err.Error(), nil
	case errors.Is(err, e.ErrMissingReference), errors.Is(err, e.ErrInvalidInput):
		v.logger.Warn("grade not detected, using default grade",
			zap.String("position_id", positionID.String()),
			zap.Int("region", region),
			zap.Int("default_grade", v.cfg.DefaultGrade),
			zap.Error(err),
		)
		return v.cfg.DefaultGrade, "grade defaulted: " + err.Error(), nil
	}
	return 0, "", err
}

func (v *Versioner) region(ctx context.Context, store Store, departmentID *uuid.UUID) int {
	if departmentID == nil {
		return v.cfg.DefaultRegion
	}
	dept, err := store.GetDepartment(ctx, *departmentID)
	if err != nil {
		v.logger.Warn("department not found, using default region",
			zap.String("department_id", departmentID.String()),
			zap.Error(err),
		)
		return v.cfg.DefaultRegion
	}
	if dept.Region <= 0 {
		return v.cfg.DefaultRegion
	}
	return dept.Region
}

func (v *Versioner) logCreated(p *models.EmployeeInsuranceProfile) {
	v.logger.Info("insurance profile opened",
		zap.String("employee_id", p.EmployeeID.String()),
		zap.String("profile_id", p.ID.String()),
		zap.Int("grade", p.Grade),
		zap.String("reason", string(p.Reason)),
		zap.String("range", p.Range().String()),
	)
}

func openProfile(ctx context.Context, store Store, employeeID uuid.UUID) (*models.EmployeeInsuranceProfile, error) {
	open, err := store.GetOpenProfile(ctx, employeeID)
	if errors.Is(err, e.ErrNotFound) {
		return nil, nil
	}
	return open, err
}

func joinNote(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "; ")
}

func label(number string, id uuid.UUID) string {
	if number != "" {
		return number
	}
	return id.String()
}
