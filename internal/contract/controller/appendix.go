package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gartstein/hrm/internal/contract/db"
	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/events"
	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateAppendix stores a DRAFT amendment of an in-force contract.
func (s *ContractService) CreateAppendix(ctx context.Context, actor models.Actor, in CreateAppendixInput) (*models.ContractAppendix, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	appendix := &models.ContractAppendix{
		ID:              uuid.New(),
		ContractID:      in.ContractID,
		Number:          in.Number,
		Type:            in.Type,
		Status:          models.AppendixDraft,
		EffectiveDate:   interval.Day(in.EffectiveDate),
		EndDate:         interval.DayPtr(in.EndDate),
		BaseSalary:      nullDecimal(in.BaseSalary),
		InsuranceSalary: nullDecimal(in.InsuranceSalary),
		PositionID:      in.PositionID,
		DepartmentID:    in.DepartmentID,
		WorkingTerms:    in.WorkingTerms,
		Note:            in.Note,
	}
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		appendix.CreatedBy = &id
	}

	err := s.inTx(ctx, "create_appendix", func(tx *db.Repository, _ *outbox) error {
		c, err := tx.GetContract(ctx, appendix.ContractID)
		if err != nil {
			return err
		}
		if err := requireInForce(c, "amend"); err != nil {
			return err
		}
		if err := checkAppendix(appendix, c); err != nil {
			return err
		}
		return tx.CreateAppendix(ctx, appendix)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("appendix drafted",
		zap.String("appendix_id", appendix.ID.String()),
		zap.String("contract_id", appendix.ContractID.String()),
		zap.String("type", string(appendix.Type)),
	)
	return appendix, nil
}

// SubmitAppendix sends a DRAFT appendix for approval by the last level of
// the approval chain.
func (s *ContractService) SubmitAppendix(ctx context.Context, actor models.Actor, appendixID uuid.UUID) (*models.ContractAppendix, error) {
	var appendix *models.ContractAppendix
	err := s.inTx(ctx, "submit_appendix", func(tx *db.Repository, out *outbox) error {
		a, err := tx.GetAppendixForUpdate(ctx, appendixID)
		if err != nil {
			return err
		}
		if err := requireAppendixStatus(a, "submit", models.AppendixDraft); err != nil {
			return err
		}
		c, err := tx.GetContract(ctx, a.ContractID)
		if err != nil {
			return err
		}
		if err := requireInForce(c, "amend"); err != nil {
			return err
		}
		if err := checkAppendix(a, c); err != nil {
			return err
		}
		if err := s.pendAppendix(ctx, tx, a, c); err != nil {
			return err
		}
		out.add(events.NewAppendixEvent(events.AppendixSubmitted, actor, c, a))
		appendix = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appendix, nil
}

// ApproveAppendix activates a pending appendix and applies its effect: an
// extension moves the contract's end date, salary and position changes
// version the insurance profile, other types only change the terms overlay.
func (s *ContractService) ApproveAppendix(ctx context.Context, actor models.Actor, appendixID uuid.UUID, comments string) (*models.ContractAppendix, error) {
	var appendix *models.ContractAppendix
	err := s.inTx(ctx, "approve_appendix", func(tx *db.Repository, out *outbox) error {
		a, err := tx.GetAppendixForUpdate(ctx, appendixID)
		if err != nil {
			return err
		}
		if err := requireAppendixStatus(a, "approve", models.AppendixPendingApproval); err != nil {
			return err
		}
		c, err := tx.GetContractForUpdate(ctx, a.ContractID)
		if err != nil {
			return err
		}
		if err := requireInForce(c, "amend"); err != nil {
			return err
		}
		if err := s.authorize(ctx, tx, actor, s.appendixLevel(), a.ApproverID, c.DepartmentID); err != nil {
			return err
		}
		if err := tx.LockEmployee(ctx, c.EmployeeID); err != nil {
			return err
		}
		if err := checkProfileOrder(ctx, tx, c, a); err != nil {
			return err
		}

		signer := actor.UserID
		a.Status = models.AppendixActive
		a.ApprovedAt = s.stamp()
		a.ApproverID = &signer
		if comments != "" {
			a.Note = strings.TrimSpace(a.Note + "\n" + comments)
		}
		if err := tx.SaveAppendix(ctx, a); err != nil {
			return err
		}

		switch a.Type {
		case models.AppendixExtension:
			if err := s.extend(ctx, tx, c, a); err != nil {
				return err
			}
			if err := s.versionTerms(ctx, tx, c, a, actor); err != nil {
				return err
			}
			out.add(events.NewAppendixEvent(events.ContractRenewed, actor, c, a))
		case models.AppendixSalary, models.AppendixPosition:
			if err := s.versionTerms(ctx, tx, c, a, actor); err != nil {
				return err
			}
		case models.AppendixDepartmentTransfer, models.AppendixWorkingTerms, models.AppendixOther:
		default:
			return fmt.Errorf("%w: unknown appendix type %q", e.ErrInvalidInput, a.Type)
		}

		out.add(events.NewAppendixEvent(events.AppendixApproved, actor, c, a).WithReason(comments))
		appendix = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("appendix approved",
		zap.String("appendix_id", appendix.ID.String()),
		zap.String("type", string(appendix.Type)),
		zap.String("actor_id", actor.UserID.String()),
	)
	return appendix, nil
}

// RejectAppendix turns down a pending appendix.
func (s *ContractService) RejectAppendix(ctx context.Context, actor models.Actor, appendixID uuid.UUID, reason string) (*models.ContractAppendix, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a rejection needs a reason", e.ErrInvalidInput)
	}
	var appendix *models.ContractAppendix
	err := s.inTx(ctx, "reject_appendix", func(tx *db.Repository, out *outbox) error {
		a, err := tx.GetAppendixForUpdate(ctx, appendixID)
		if err != nil {
			return err
		}
		if err := requireAppendixStatus(a, "reject", models.AppendixPendingApproval); err != nil {
			return err
		}
		c, err := tx.GetContract(ctx, a.ContractID)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, tx, actor, s.appendixLevel(), a.ApproverID, c.DepartmentID); err != nil {
			return err
		}
		a.Status = models.AppendixRejected
		a.RejectedAt = s.stamp()
		a.RejectionReason = reason
		if err := tx.SaveAppendix(ctx, a); err != nil {
			return err
		}
		out.add(events.NewAppendixEvent(events.AppendixRejected, actor, c, a).WithReason(reason))
		appendix = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appendix, nil
}

// CancelAppendix withdraws a DRAFT or pending appendix. Only its author may
// cancel it.
func (s *ContractService) CancelAppendix(ctx context.Context, actor models.Actor, appendixID uuid.UUID) (*models.ContractAppendix, error) {
	var appendix *models.ContractAppendix
	err := s.inTx(ctx, "cancel_appendix", func(tx *db.Repository, out *outbox) error {
		a, err := tx.GetAppendixForUpdate(ctx, appendixID)
		if err != nil {
			return err
		}
		if err := requireAppendixStatus(a, "cancel", models.AppendixDraft, models.AppendixPendingApproval); err != nil {
			return err
		}
		if a.CreatedBy != nil && *a.CreatedBy != actor.UserID {
			return fmt.Errorf("%w: only the author can cancel appendix %s", e.ErrUnauthorized, a.ID)
		}
		c, err := tx.GetContract(ctx, a.ContractID)
		if err != nil {
			return err
		}
		a.Status = models.AppendixCancelled
		a.CancelledAt = s.stamp()
		if err := tx.SaveAppendix(ctx, a); err != nil {
			return err
		}
		out.add(events.NewAppendixEvent(events.AppendixCancelled, actor, c, a))
		appendix = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appendix, nil
}

// EffectiveTerms returns the contract's terms on a day, with every ACTIVE
// appendix in force on that day applied in effective-date order.
func (s *ContractService) EffectiveTerms(ctx context.Context, contractID uuid.UUID, on time.Time) (models.Terms, error) {
	c, err := s.repo.GetContract(ctx, contractID)
	if err != nil {
		return models.Terms{}, err
	}
	if !c.Range().Covers(on) {
		return models.Terms{}, fmt.Errorf("%w: %s is outside contract %s", e.ErrInvalidInput, interval.Day(on).Format("2006-01-02"), c.Range())
	}
	return effectiveTerms(ctx, s.repo, c, on)
}

type activeAppendixLister interface {
	ListActiveAppendices(ctx context.Context, contractID uuid.UUID, on time.Time) ([]models.ContractAppendix, error)
}

func effectiveTerms(ctx context.Context, store activeAppendixLister, c *models.Contract, on time.Time) (models.Terms, error) {
	terms := models.Terms{
		ContractID:      c.ID,
		On:              interval.Day(on),
		BaseSalary:      c.BaseSalary,
		InsuranceSalary: c.InsuranceSalary,
		PositionID:      c.PositionID,
		DepartmentID:    c.DepartmentID,
		WorkingTerms:    c.WorkingTerms,
		EndDate:         c.EndDate,
	}
	appendices, err := store.ListActiveAppendices(ctx, c.ID, on)
	if err != nil {
		return models.Terms{}, err
	}
	for _, a := range appendices {
		if a.BaseSalary.Valid {
			terms.BaseSalary = a.BaseSalary.Decimal
		}
		if a.InsuranceSalary.Valid {
			terms.InsuranceSalary = a.InsuranceSalary.Decimal
		}
		if a.PositionID != nil {
			terms.PositionID = *a.PositionID
		}
		if a.DepartmentID != nil {
			terms.DepartmentID = a.DepartmentID
		}
		if a.WorkingTerms != nil {
			terms.WorkingTerms = *a.WorkingTerms
		}
		if a.Type == models.AppendixExtension && a.EndDate != nil {
			terms.EndDate = a.EndDate
		}
	}
	return terms, nil
}

// extend moves the contract's end to the extension's end date.
func (s *ContractService) extend(ctx context.Context, tx *db.Repository, c *models.Contract, a *models.ContractAppendix) error {
	if a.EndDate == nil {
		return fmt.Errorf("%w: extension %s has no end date", e.ErrInvalidInput, a.ID)
	}
	newEnd := interval.Day(*a.EndDate)
	if c.EndDate == nil || !newEnd.After(*c.EndDate) {
		return fmt.Errorf("%w: extension to %s does not extend contract %s", e.ErrInvalidState, newEnd.Format("2006-01-02"), c.Range())
	}
	if err := checkOverlap(ctx, tx, c, interval.New(c.StartDate, &newEnd)); err != nil {
		return err
	}
	c.EndDate = &newEnd
	if err := tx.SaveContract(ctx, c); err != nil {
		return err
	}
	return s.attach(ctx, tx, c)
}

// versionTerms feeds a salary or position change into the insurance profile.
func (s *ContractService) versionTerms(ctx context.Context, tx *db.Repository, c *models.Contract, a *models.ContractAppendix, actor models.Actor) error {
	_, hasSalary := a.GradeSalary()
	if a.PositionID == nil && !hasSalary {
		return nil
	}
	terms, err := effectiveTerms(ctx, tx, c, a.EffectiveDate)
	if err != nil {
		return err
	}
	return s.bestEffort(ctx, tx, "insurance profile", c, func(tx *db.Repository) error {
		if a.PositionID != nil {
			_, err := s.versioner.UpdateFromPositionAppendix(ctx, tx, c, a, terms, &actor.UserID)
			return err
		}
		_, err := s.versioner.UpdateFromSalaryAppendix(ctx, tx, c, a, terms, &actor.UserID)
		return err
	})
}

// checkProfileOrder refuses a salary or position change dated before the
// employee's open insurance profile: the history after it is already
// versioned and would be overwritten.
func checkProfileOrder(ctx context.Context, tx *db.Repository, c *models.Contract, a *models.ContractAppendix) error {
	_, hasSalary := a.GradeSalary()
	if a.PositionID == nil && !hasSalary {
		return nil
	}
	open, err := tx.GetOpenProfile(ctx, c.EmployeeID)
	if errors.Is(err, e.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if interval.Day(a.EffectiveDate).Before(interval.Day(open.AppliedFrom)) {
		return fmt.Errorf("%w: appendix %s is effective %s, before the insurance profile applied from %s",
			e.ErrInvalidInput, label(a.Number, a.ID), a.EffectiveDate.Format("2006-01-02"), open.AppliedFrom.Format("2006-01-02"))
	}
	return nil
}

// pendAppendix moves a DRAFT appendix into PENDING_APPROVAL with its approver.
func (s *ContractService) pendAppendix(ctx context.Context, tx *db.Repository, a *models.ContractAppendix, c *models.Contract) error {
	approver, err := s.resolveApprover(ctx, tx, s.appendixLevel(), c.DepartmentID)
	if err != nil {
		return err
	}
	a.Status = models.AppendixPendingApproval
	a.ApproverID = &approver
	a.SubmittedAt = s.stamp()
	return tx.SaveAppendix(ctx, a)
}

func (s *ContractService) appendixLevel() models.ApprovalLevel {
	return s.levels[len(s.levels)-1]
}

// checkAppendix validates the fields an appendix type needs and that it
// falls inside the contract.
func checkAppendix(a *models.ContractAppendix, c *models.Contract) error {
	if a.BaseSalary.Valid && !a.BaseSalary.Decimal.IsPositive() {
		return fmt.Errorf("%w: base salary must be positive", e.ErrInvalidInput)
	}
	if a.InsuranceSalary.Valid && a.InsuranceSalary.Decimal.IsNegative() {
		return fmt.Errorf("%w: insurance salary must not be negative", e.ErrInvalidInput)
	}

	switch a.Type {
	case models.AppendixSalary:
		if _, ok := a.GradeSalary(); !ok {
			return fmt.Errorf("%w: salary change needs a salary", e.ErrInvalidInput)
		}
	case models.AppendixPosition:
		if a.PositionID == nil {
			return fmt.Errorf("%w: position change needs a position", e.ErrInvalidInput)
		}
	case models.AppendixDepartmentTransfer:
		if a.DepartmentID == nil {
			return fmt.Errorf("%w: department transfer needs a department", e.ErrInvalidInput)
		}
	case models.AppendixWorkingTerms:
		if a.WorkingTerms == nil || strings.TrimSpace(*a.WorkingTerms) == "" {
			return fmt.Errorf("%w: working terms change needs the new terms", e.ErrInvalidInput)
		}
	case models.AppendixExtension:
		if a.EndDate == nil {
			return fmt.Errorf("%w: extension needs a new end date", e.ErrInvalidInput)
		}
		if c.EndDate == nil {
			return fmt.Errorf("%w: contract %s is open-ended and cannot be extended", e.ErrInvalidInput, c.ID)
		}
		if !a.EndDate.After(*c.EndDate) {
			return fmt.Errorf("%w: new end date %s must be after %s", e.ErrInvalidInput, a.EndDate.Format("2006-01-02"), c.EndDate.Format("2006-01-02"))
		}
		if a.EffectiveDate.Before(c.StartDate) || a.EffectiveDate.After(interval.NextDay(*c.EndDate)) {
			return fmt.Errorf("%w: extension effective %s must fall within %s or the day after", e.ErrInvalidInput, a.EffectiveDate.Format("2006-01-02"), c.Range())
		}
		return nil
	case models.AppendixOther:
	default:
		return fmt.Errorf("%w: unknown appendix type %q", e.ErrInvalidInput, a.Type)
	}

	if !c.Range().Covers(a.EffectiveDate) {
		return fmt.Errorf("%w: effective date %s is outside contract %s", e.ErrInvalidInput, a.EffectiveDate.Format("2006-01-02"), c.Range())
	}
	if !interval.New(a.EffectiveDate, a.EndDate).Valid() {
		return fmt.Errorf("%w: appendix ends before it takes effect", e.ErrInvalidInput)
	}
	return nil
}

func requireInForce(c *models.Contract, op string) error {
	if c.Status.InForce() {
		return nil
	}
	return fmt.Errorf("%w: cannot %s contract %s in status %s", e.ErrInvalidState, op, c.ID, c.Status)
}

func requireAppendixStatus(a *models.ContractAppendix, op string, allowed ...models.AppendixStatus) error {
	for _, s := range allowed {
		if a.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s appendix %s in status %s", e.ErrInvalidState, op, a.ID, a.Status)
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}
