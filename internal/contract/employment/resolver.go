// Package employment maintains an employee's employment periods: continuous,
// non-overlapping spans of employment derived from the contracts that have
// taken effect. Periods are only ever created, widened or merged here.
package employment

import (
	"context"
	"fmt"
	"time"

	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the slice of the repository the resolver writes through. It must
// be bound to the caller's transaction.
type Store interface {
	LockEmployee(ctx context.Context, employeeID uuid.UUID) error
	ListEmploymentPeriods(ctx context.Context, employeeID uuid.UUID, forUpdate bool) ([]models.EmploymentPeriod, error)
	CreateEmploymentPeriod(ctx context.Context, period *models.EmploymentPeriod) error
	SaveEmploymentPeriod(ctx context.Context, period *models.EmploymentPeriod) error
	DeleteEmploymentPeriod(ctx context.Context, id uuid.UUID) error
	SetContractPeriod(ctx context.Context, contractID, periodID uuid.UUID) error
	ReassignContractsPeriod(ctx context.Context, fromPeriodID, toPeriodID uuid.UUID) error
	ListContractsForEmployee(ctx context.Context, employeeID uuid.UUID, statuses ...models.ContractStatus) ([]models.Contract, error)
}

type Resolver struct {
	logger *zap.Logger
}

func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger.Named("employment_resolver")}
}

// ShouldCreateEmployment reports whether a contract in its current state
// counts as employment. Migrated contracts count once they left the approval
// workflow; live contracts only once they took effect.
func ShouldCreateEmployment(contract *models.Contract) bool {
	switch contract.Source {
	case models.SourceLegacy:
		return contract.Status != models.ContractDraft && contract.Status != models.ContractPendingApproval
	case models.SourceRecruitment:
		switch contract.Status {
		case models.ContractActive, models.ContractSuspended, models.ContractTerminated, models.ContractExpired:
			return true
		}
	}
	return false
}

// AttachForContract finds or creates the employment period the contract
// belongs to and widens it to cover the contract. It returns nil when the
// contract does not qualify. Attaching the same contract twice is a no-op.
func (r *Resolver) AttachForContract(ctx context.Context, store Store, contract *models.Contract) (*models.EmploymentPeriod, error) {
	if !ShouldCreateEmployment(contract) {
		r.logger.Debug("contract does not create employment",
			zap.String("contract_id", contract.ID.String()),
			zap.String("status", string(contract.Status)),
			zap.String("source", string(contract.Source)),
		)
		return nil, nil
	}
	span := interval.New(contract.StartDate, contract.LastDay())
	if !span.Valid() {
		return nil, fmt.Errorf("%w: contract %s ends before it starts %s", e.ErrInvalidInput, contract.ID, span)
	}

	if err := store.LockEmployee(ctx, contract.EmployeeID); err != nil {
		return nil, err
	}
	periods, err := store.ListEmploymentPeriods(ctx, contract.EmployeeID, true)
	if err != nil {
		return nil, err
	}

	target := pick(periods, contract, span)
	if target == nil {
		period := &models.EmploymentPeriod{
			EmployeeID: contract.EmployeeID,
			StartDate:  span.Start,
			EndDate:    span.End,
			IsCurrent:  span.End == nil,
			Note:       "opened by contract " + contractLabel(contract),
		}
		if span.End != nil && contract.TerminationReason != nil {
			period.EndReason = contract.TerminationReason
		}
		if err := store.CreateEmploymentPeriod(ctx, period); err != nil {
			return nil, err
		}
		target = period
		r.logger.Info("employment period created",
			zap.String("employee_id", contract.EmployeeID.String()),
			zap.String("period_id", period.ID.String()),
			zap.String("range", period.Range().String()),
		)
	} else if err := r.merge(ctx, store, target, periods, contract, span); err != nil {
		return nil, err
	}

	if contract.EmploymentPeriodID == nil || *contract.EmploymentPeriodID != target.ID {
		if err := store.SetContractPeriod(ctx, contract.ID, target.ID); err != nil {
			return nil, err
		}
		id := target.ID
		contract.EmploymentPeriodID = &id
	}

	if err := reconcileCurrent(ctx, store, contract.EmployeeID); err != nil {
		return nil, err
	}
	target.IsCurrent = target.EndDate == nil
	return target, nil
}

// merge widens target to cover span and folds in every other period the
// widened span now touches.
func (r *Resolver) merge(ctx context.Context, store Store, target *models.EmploymentPeriod, periods []models.EmploymentPeriod, contract *models.Contract, span interval.Range) error {
	before := target.Range()
	merged := before.Extend(span.Start, span.End)

	absorbed := map[uuid.UUID]bool{}
	for changed := true; changed; {
		changed = false
		for i := range periods {
			p := &periods[i]
			if p.ID == target.ID || absorbed[p.ID] || !p.Range().Touches(merged) {
				continue
			}
			merged = merged.Extend(p.StartDate, p.EndDate)
			absorbed[p.ID] = true
			changed = true
		}
	}

	for id := range absorbed {
		if err := store.ReassignContractsPeriod(ctx, id, target.ID); err != nil {
			return err
		}
		if err := store.DeleteEmploymentPeriod(ctx, id); err != nil {
			return err
		}
		r.logger.Info("employment period merged",
			zap.String("employee_id", target.EmployeeID.String()),
			zap.String("from_period_id", id.String()),
			zap.String("into_period_id", target.ID.String()),
		)
	}

	if merged.Equal(before) && len(absorbed) == 0 {
		return nil
	}
	endChanged := !sameDay(merged.End, before.End)
	target.StartDate = merged.Start
	target.EndDate = merged.End
	if endChanged {
		target.EndReason = nil
		if merged.End != nil && contract.TerminationReason != nil {
			if last := contract.LastDay(); last != nil && last.Equal(*merged.End) {
				target.EndReason = contract.TerminationReason
			}
		}
	}
	if err := store.SaveEmploymentPeriod(ctx, target); err != nil {
		return err
	}
	r.logger.Info("employment period extended",
		zap.String("employee_id", target.EmployeeID.String()),
		zap.String("period_id", target.ID.String()),
		zap.String("from", before.String()),
		zap.String("to", merged.String()),
	)
	return nil
}

// EndCurrent closes the employee's open period on endDate. With no open
// period it does nothing and returns nil.
func (r *Resolver) EndCurrent(ctx context.Context, store Store, employeeID uuid.UUID, endDate time.Time, reason models.TerminationReason, note string) (*models.EmploymentPeriod, error) {
	if err := store.LockEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	periods, err := store.ListEmploymentPeriods(ctx, employeeID, true)
	if err != nil {
		return nil, err
	}
	var open *models.EmploymentPeriod
	for i := range periods {
		if periods[i].EndDate == nil {
			open = &periods[i]
			break
		}
	}
	if open == nil {
		return nil, nil
	}
	return r.closePeriod(ctx, store, open, interval.Day(endDate), reason, note)
}

// EndForContract ends the employment a contract carried on endDate. It
// works on the contract's own period, or the open one when the contract
// has none. A period ending before endDate is left alone and one ending on
// it only gets the reason recorded. The end never moves before the last day
// of another contract of the period; an open-ended one keeps it open.
func (r *Resolver) EndForContract(ctx context.Context, store Store, contract *models.Contract, endDate time.Time, reason models.TerminationReason, note string) (*models.EmploymentPeriod, error) {
	if err := store.LockEmployee(ctx, contract.EmployeeID); err != nil {
		return nil, err
	}
	periods, err := store.ListEmploymentPeriods(ctx, contract.EmployeeID, true)
	if err != nil {
		return nil, err
	}
	var target *models.EmploymentPeriod
	for i := range periods {
		if contract.EmploymentPeriodID != nil && periods[i].ID == *contract.EmploymentPeriodID {
			target = &periods[i]
			break
		}
	}
	if target == nil {
		for i := range periods {
			if periods[i].EndDate == nil {
				target = &periods[i]
				break
			}
		}
	}
	if target == nil {
		return nil, nil
	}

	end := interval.Day(endDate)
	if target.EndDate != nil && target.EndDate.Before(end) {
		return nil, nil
	}

	contracts, err := store.ListContractsForEmployee(ctx, contract.EmployeeID)
	if err != nil {
		return nil, err
	}
	keep := end
	for i := range contracts {
		other := &contracts[i]
		if other.ID == contract.ID || other.EmploymentPeriodID == nil || *other.EmploymentPeriodID != target.ID {
			continue
		}
		if !ShouldCreateEmployment(other) {
			continue
		}
		last := other.LastDay()
		if last == nil {
			r.logger.Debug("employment period kept open by another contract",
				zap.String("period_id", target.ID.String()),
				zap.String("contract_id", other.ID.String()),
			)
			return nil, nil
		}
		if last.After(keep) {
			keep = *last
		}
	}
	if !keep.Equal(end) {
		if target.EndDate != nil && !target.EndDate.After(keep) {
			return nil, nil
		}
		// the period now ends with a contract that is not being terminated
		return r.closePeriod(ctx, store, target, keep, models.ReasonContractExpiry, "")
	}
	if target.EndDate != nil && target.EndDate.Equal(end) && target.EndReason != nil {
		return nil, nil
	}
	return r.closePeriod(ctx, store, target, end, reason, note)
}

func (r *Resolver) closePeriod(ctx context.Context, store Store, p *models.EmploymentPeriod, end time.Time, reason models.TerminationReason, note string) (*models.EmploymentPeriod, error) {
	if end.Before(interval.Day(p.StartDate)) {
		return nil, fmt.Errorf("%w: employment period %s starts %s, cannot end on %s",
			e.ErrInvalidInput, p.ID, p.StartDate.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	p.EndDate = &end
	p.EndReason = &reason
	p.IsCurrent = false
	if note != "" {
		p.Note = note
	}
	if err := store.SaveEmploymentPeriod(ctx, p); err != nil {
		return nil, err
	}
	if err := reconcileCurrent(ctx, store, p.EmployeeID); err != nil {
		return nil, err
	}
	r.logger.Info("employment period ended",
		zap.String("employee_id", p.EmployeeID.String()),
		zap.String("period_id", p.ID.String()),
		zap.String("end_date", end.Format("2006-01-02")),
		zap.String("reason", string(reason)),
	)
	return p, nil
}

// pick chooses the period a contract belongs to: the one it already points
// at, else one covering its start (the open one first), else one it touches.
func pick(periods []models.EmploymentPeriod, contract *models.Contract, span interval.Range) *models.EmploymentPeriod {
	if contract.EmploymentPeriodID != nil {
		for i := range periods {
			if periods[i].ID == *contract.EmploymentPeriodID {
				return &periods[i]
			}
		}
	}
	var covering, touching *models.EmploymentPeriod
	for i := range periods {
		p := &periods[i]
		rng := p.Range()
		if rng.Covers(span.Start) {
			if covering == nil || p.EndDate == nil {
				covering = p
			}
			continue
		}
		if rng.Touches(span) && (touching == nil || p.EndDate == nil) {
			touching = p
		}
	}
	if covering != nil {
		return covering
	}
	return touching
}

// reconcileCurrent recomputes is_current for every period of the employee.
func reconcileCurrent(ctx context.Context, store Store, employeeID uuid.UUID) error {
	periods, err := store.ListEmploymentPeriods(ctx, employeeID, false)
	if err != nil {
		return err
	}
	for i := range periods {
		want := periods[i].EndDate == nil
		if periods[i].IsCurrent == want {
			continue
		}
		periods[i].IsCurrent = want
		if err := store.SaveEmploymentPeriod(ctx, &periods[i]); err != nil {
			return err
		}
	}
	return nil
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return interval.Day(*a).Equal(interval.Day(*b))
}

func contractLabel(c *models.Contract) string {
	if c.Number != "" {
		return c.Number
	}
	return c.ID.String()
}
