package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/gartstein/hrm/internal/contract/db"
	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/events"
	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Terminate ends a contract that took effect. Its appendices are closed,
// and employment and the insurance profile end on the termination date
// unless another in-force contract continues past it.
func (s *ContractService) Terminate(ctx context.Context, actor models.Actor, contractID uuid.UUID, in TerminationInput) (*models.Contract, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if !in.Reason.Valid() {
		return nil, fmt.Errorf("%w: unknown termination reason %q", e.ErrInvalidInput, in.Reason)
	}
	date := interval.Day(in.Date)

	var contract *models.Contract
	err := s.inTx(ctx, "terminate", func(tx *db.Repository, out *outbox) error {
		c, err := tx.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		switch c.Status {
		case models.ContractActive, models.ContractSuspended, models.ContractExpired:
		case models.ContractDraft, models.ContractPendingApproval, models.ContractRejected:
			return fmt.Errorf("%w: contract %s never took effect (%s)", e.ErrInvalidState, c.ID, c.Status)
		case models.ContractTerminated, models.ContractCancelled:
			return fmt.Errorf("%w: contract %s is already %s", e.ErrInvalidState, c.ID, c.Status)
		default:
			return fmt.Errorf("%w: contract %s has unknown status %q", e.ErrInvalidState, c.ID, c.Status)
		}
		if !c.Range().Covers(date) {
			return fmt.Errorf("%w: termination date %s is outside contract %s", e.ErrInvalidInput, date.Format("2006-01-02"), c.Range())
		}
		if err := tx.LockEmployee(ctx, c.EmployeeID); err != nil {
			return err
		}

		reason := in.Reason
		c.Status = models.ContractTerminated
		c.TerminationDate = &date
		c.TerminationReason = &reason
		c.TerminationNote = in.Note
		c.TerminatedAt = s.stamp()
		terminator := actor.UserID
		c.TerminatedBy = &terminator
		if err := tx.SaveContract(ctx, c); err != nil {
			return err
		}

		closed, err := s.closeAppendices(ctx, tx, c, date)
		if err != nil {
			return err
		}
		if err := s.endEmployment(ctx, tx, c, date, reason, in.Note); err != nil {
			return err
		}
		out.add(events.NewContractEvent(events.ContractTerminated, actor, c).WithReason(string(reason)))
		s.logger.Info("contract terminated",
			zap.String("contract_id", c.ID.String()),
			zap.String("date", date.Format("2006-01-02")),
			zap.String("reason", string(reason)),
			zap.Int("appendices_closed", closed),
		)
		contract = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// closeAppendices ends every open appendix of a terminated contract: ACTIVE
// ones are cancelled as of date, pending ones rejected, drafts cancelled.
func (s *ContractService) closeAppendices(ctx context.Context, tx *db.Repository, c *models.Contract, date time.Time) (int, error) {
	appendices, err := tx.ListAppendices(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	now := s.stamp()
	closed := 0
	for i := range appendices {
		a := &appendices[i]
		switch a.Status {
		case models.AppendixActive:
			a.Status = models.AppendixCancelled
			end := date
			a.EndDate = &end
			a.CancelledAt = now
		case models.AppendixPendingApproval:
			a.Status = models.AppendixRejected
			a.RejectedAt = now
			a.RejectionReason = "contract terminated"
		case models.AppendixDraft:
			a.Status = models.AppendixCancelled
			a.CancelledAt = now
		case models.AppendixRejected, models.AppendixCancelled:
			continue
		default:
			continue
		}
		if err := tx.SaveAppendix(ctx, a); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}
