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
	"go.uber.org/zap"
)

// CreateDraft stores a new contract in DRAFT.
func (s *ContractService) CreateDraft(ctx context.Context, actor models.Actor, in CreateContractInput) (*models.Contract, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	source := in.Source
	if source == "" {
		source = models.SourceRecruitment
	}
	contract := &models.Contract{
		ID:              uuid.New(),
		Number:          in.Number,
		EmployeeID:      in.EmployeeID,
		PositionID:      in.PositionID,
		DepartmentID:    in.DepartmentID,
		Source:          source,
		StartDate:       interval.Day(in.StartDate),
		EndDate:         interval.DayPtr(in.EndDate),
		BaseSalary:      in.BaseSalary,
		InsuranceSalary: in.InsuranceSalary,
		WorkingTerms:    in.WorkingTerms,
		Status:          models.ContractDraft,
	}
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		contract.CreatedBy = &id
	}
	if err := checkTerms(contract); err != nil {
		return nil, err
	}

	err := s.inTx(ctx, "create_draft", func(tx *db.Repository, _ *outbox) error {
		if _, err := tx.GetEmployee(ctx, contract.EmployeeID); err != nil {
			return err
		}
		return tx.CreateContract(ctx, contract)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("contract drafted",
		zap.String("contract_id", contract.ID.String()),
		zap.String("employee_id", contract.EmployeeID.String()),
	)
	return contract, nil
}

// Submit sends a DRAFT contract into approval, creating one step per
// configured level with its resolved approver.
func (s *ContractService) Submit(ctx context.Context, actor models.Actor, contractID uuid.UUID) (*models.Contract, error) {
	var contract *models.Contract
	err := s.inTx(ctx, "submit", func(tx *db.Repository, out *outbox) error {
		c, err := tx.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if err := requireStatus(c, "submit", models.ContractDraft); err != nil {
			return err
		}
		if err := checkTerms(c); err != nil {
			return err
		}

		if err := tx.DeleteApprovals(ctx, c.ID); err != nil {
			return err
		}
		steps := make([]models.ContractApproval, 0, len(s.levels))
		for i, level := range s.levels {
			approver, err := s.resolveApprover(ctx, tx, level, c.DepartmentID)
			if err != nil {
				return err
			}
			steps = append(steps, models.ContractApproval{
				ContractID: c.ID,
				Level:      level,
				StepOrder:  i + 1,
				ApproverID: &approver,
				Status:     models.ApprovalPending,
			})
		}
		if err := tx.CreateApprovals(ctx, steps); err != nil {
			return err
		}

		c.Status = models.ContractPendingApproval
		c.SubmittedAt = s.stamp()
		c.ApproverID = steps[0].ApproverID
		c.RejectedAt = nil
		c.RejectionReason = ""
		if err := tx.SaveContract(ctx, c); err != nil {
			return err
		}
		out.add(events.NewContractEvent(events.ContractSubmitted, actor, c))
		contract = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("contract submitted",
		zap.String("contract_id", contract.ID.String()),
		zap.Int("steps", len(s.levels)),
	)
	return contract, nil
}

// Approve signs the current step. Signing the last step re-checks overlap,
// activates the contract and triggers the employment and insurance records.
func (s *ContractService) Approve(ctx context.Context, actor models.Actor, contractID uuid.UUID, comments string) (*models.Contract, error) {
	var contract *models.Contract
	err := s.inTx(ctx, "approve", func(tx *db.Repository, out *outbox) error {
		c, err := tx.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if err := requireStatus(c, "approve", models.ContractPendingApproval); err != nil {
			return err
		}
		if err := tx.LockEmployee(ctx, c.EmployeeID); err != nil {
			return err
		}

		steps, err := tx.ListApprovals(ctx, c.ID)
		if err != nil {
			return err
		}
		step, next := currentStep(steps)
		if step == nil {
			return fmt.Errorf("%w: contract %s has no pending approval step", e.ErrInvalidState, c.ID)
		}
		if err := s.authorize(ctx, tx, actor, step.Level, step.ApproverID, c.DepartmentID); err != nil {
			return err
		}

		step.Status = models.ApprovalApproved
		step.ApprovedAt = s.stamp()
		step.Comments = comments
		signer := actor.UserID
		step.ApproverID = &signer
		if err := tx.SaveApproval(ctx, step); err != nil {
			return err
		}

		if next != nil {
			c.ApproverID = next.ApproverID
			if err := tx.SaveContract(ctx, c); err != nil {
				return err
			}
			out.add(events.NewContractEvent(events.ContractApprovalRecorded, actor, c).WithReason(comments))
			contract = c
			return nil
		}

		if err := checkOverlap(ctx, tx, c, c.Range()); err != nil {
			return err
		}
		c.Status = models.ContractActive
		c.ApprovedAt = s.stamp()
		c.ApproverID = &signer
		if err := tx.SaveContract(ctx, c); err != nil {
			return err
		}
		if err := s.onActivated(ctx, tx, c, actor); err != nil {
			return err
		}
		out.add(events.NewContractEvent(events.ContractApproved, actor, c).WithReason(comments))
		contract = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("contract approval recorded",
		zap.String("contract_id", contract.ID.String()),
		zap.String("status", string(contract.Status)),
		zap.String("actor_id", actor.UserID.String()),
	)
	return contract, nil
}

// Reject rejects the current step and every later pending step, and sends
// the contract back to DRAFT.
func (s *ContractService) Reject(ctx context.Context, actor models.Actor, contractID uuid.UUID, reason string) (*models.Contract, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a rejection needs a reason", e.ErrInvalidInput)
	}
	var contract *models.Contract
	err := s.inTx(ctx, "reject", func(tx *db.Repository, out *outbox) error {
		c, err := tx.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if err := requireStatus(c, "reject", models.ContractPendingApproval); err != nil {
			return err
		}
		steps, err := tx.ListApprovals(ctx, c.ID)
		if err != nil {
			return err
		}
		step, _ := currentStep(steps)
		if step == nil {
			return fmt.Errorf("%w: contract %s has no pending approval step", e.ErrInvalidState, c.ID)
		}
		if err := s.authorize(ctx, tx, actor, step.Level, step.ApproverID, c.DepartmentID); err != nil {
			return err
		}

		now := s.stamp()
		for i := range steps {
			if steps[i].Status != models.ApprovalPending {
				continue
			}
			steps[i].Status = models.ApprovalRejected
			steps[i].RejectedAt = now
			if steps[i].ID == step.ID {
				signer := actor.UserID
				steps[i].ApproverID = &signer
				steps[i].Comments = reason
			} else {
				steps[i].Comments = fmt.Sprintf("closed by rejection at step %d", step.StepOrder)
			}
			if err := tx.SaveApproval(ctx, &steps[i]); err != nil {
				return err
			}
		}

		c.Status = models.ContractDraft
		c.RejectedAt = now
		c.RejectionReason = reason
		c.ApproverID = nil
		if err := tx.SaveContract(ctx, c); err != nil {
			return err
		}
		out.add(events.NewContractEvent(events.ContractRejected, actor, c).WithReason(reason))
		contract = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("contract rejected",
		zap.String("contract_id", contract.ID.String()),
		zap.String("actor_id", actor.UserID.String()),
	)
	return contract, nil
}

// Recall withdraws a submission nobody has signed yet.
func (s *ContractService) Recall(ctx context.Context, actor models.Actor, contractID uuid.UUID) (*models.Contract, error) {
	var contract *models.Contract
	err := s.inTx(ctx, "recall", func(tx *db.Repository, out *outbox) error {
		c, err := tx.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if err := requireStatus(c, "recall", models.ContractPendingApproval); err != nil {
			return err
		}
		if c.CreatedBy != nil && *c.CreatedBy != actor.UserID {
			return fmt.Errorf("%w: only the author can recall contract %s", e.ErrUnauthorized, c.ID)
		}
		steps, err := tx.ListApprovals(ctx, c.ID)
		if err != nil {
			return err
		}
		for _, step := range steps {
			if step.Status == models.ApprovalApproved {
				return fmt.Errorf("%w: step %d (%s) is already approved", e.ErrInvalidState, step.StepOrder, step.Level)
			}
		}
		if err := tx.DeleteApprovals(ctx, c.ID); err != nil {
			return err
		}
		c.Status = models.ContractDraft
		c.SubmittedAt = nil
		c.ApproverID = nil
		if err := tx.SaveContract(ctx, c); err != nil {
			return err
		}
		out.add(events.NewContractEvent(events.ContractRecalled, actor, c))
		contract = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// CancelDraft abandons a DRAFT contract. Contracts are never deleted.
func (s *ContractService) CancelDraft(ctx context.Context, actor models.Actor, contractID uuid.UUID, note string) (*models.Contract, error) {
	return s.simpleTransition(ctx, actor, contractID, "cancel", models.ContractDraft, models.ContractCancelled, events.ContractCancelled, note)
}

// Suspend pauses an ACTIVE contract. Employment is not affected.
func (s *ContractService) Suspend(ctx context.Context, actor models.Actor, contractID uuid.UUID, note string) (*models.Contract, error) {
	return s.simpleTransition(ctx, actor, contractID, "suspend", models.ContractActive, models.ContractSuspended, events.ContractSuspended, note)
}

// Resume reactivates a SUSPENDED contract, provided no other in-force
// contract overlaps it.
func (s *ContractService) Resume(ctx context.Context, actor models.Actor, contractID uuid.UUID, note string) (*models.Contract, error) {
	return s.simpleTransition(ctx, actor, contractID, "resume", models.ContractSuspended, models.ContractActive, events.ContractResumed, note)
}

func (s *ContractService) simpleTransition(ctx context.Context, actor models.Actor, contractID uuid.UUID, op string, from, to models.ContractStatus, eventType events.EventType, note string) (*models.Contract, error) {
	var contract *models.Contract
	err := s.inTx(ctx, op, func(tx *db.Repository, out *outbox) error {
		c, err := tx.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if err := requireStatus(c, op, from); err != nil {
			return err
		}
		if to == models.ContractActive {
			if err := tx.LockEmployee(ctx, c.EmployeeID); err != nil {
				return err
			}
			if err := checkOverlap(ctx, tx, c, c.Range()); err != nil {
				return err
			}
		}
		c.Status = to
		if err := tx.SaveContract(ctx, c); err != nil {
			return err
		}
		out.add(events.NewContractEvent(eventType, actor, c).WithReason(note))
		contract = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("contract status changed",
		zap.String("contract_id", contract.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return contract, nil
}

// ExpireDue moves ACTIVE contracts whose end date passed before asOf to
// EXPIRED and closes the records they kept open. Each contract is handled
// in its own transaction; failures are reported together.
func (s *ContractService) ExpireDue(ctx context.Context, actor models.Actor, asOf time.Time) ([]models.Contract, error) {
	due, err := s.repo.ListDueForExpiry(ctx, asOf)
	if err != nil {
		return nil, err
	}
	var (
		expired []models.Contract
		errs    []error
	)
	for _, candidate := range due {
		var done *models.Contract
		err := s.inTx(ctx, "expire", func(tx *db.Repository, out *outbox) error {
			done = nil
			c, err := tx.GetContractForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if c.Status != models.ContractActive || c.EndDate == nil || !c.EndDate.Before(interval.Day(asOf)) {
				return nil
			}
			if err := tx.LockEmployee(ctx, c.EmployeeID); err != nil {
				return err
			}
			c.Status = models.ContractExpired
			if err := tx.SaveContract(ctx, c); err != nil {
				return err
			}
			if err := s.endEmployment(ctx, tx, c, *c.EndDate, models.ReasonContractExpiry, "contract expired"); err != nil {
				return err
			}
			out.add(events.NewContractEvent(events.ContractExpired, actor, c))
			done = c
			return nil
		})
		if err != nil {
			s.logger.Error("failed to expire contract",
				zap.String("contract_id", candidate.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("contract %s: %w", candidate.ID, err))
			continue
		}
		if done != nil {
			expired = append(expired, *done)
		}
	}
	s.logger.Info("expiry sweep finished",
		zap.String("as_of", interval.Day(asOf).Format("2006-01-02")),
		zap.Int("due", len(due)),
		zap.Int("expired", len(expired)),
	)
	return expired, errors.Join(errs...)
}

// currentStep returns the lowest pending step and the pending step after it.
func currentStep(steps []models.ContractApproval) (*models.ContractApproval, *models.ContractApproval) {
	var current, next *models.ContractApproval
	for i := range steps {
		if steps[i].Status != models.ApprovalPending {
			continue
		}
		switch {
		case current == nil:
			current = &steps[i]
		case next == nil:
			next = &steps[i]
		}
	}
	return current, next
}

// requireStatus rejects a transition from any state other than allowed.
func requireStatus(c *models.Contract, op string, allowed ...models.ContractStatus) error {
	for _, s := range allowed {
		if c.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s contract %s in status %s", e.ErrInvalidState, op, c.ID, c.Status)
}

// checkOverlap rejects rng when another in-force contract of the employee
// shares a day with it.
func checkOverlap(ctx context.Context, tx *db.Repository, c *models.Contract, rng interval.Range) error {
	clashes, err := tx.FindOverlappingContracts(ctx, c.EmployeeID, c.ID, rng)
	if err != nil {
		return err
	}
	if len(clashes) == 0 {
		return nil
	}
	other := clashes[0]
	return fmt.Errorf("%w: %s overlaps contract %s %s", e.ErrOverlap, rng, label(other.Number, other.ID), other.Range())
}

func checkTerms(c *models.Contract) error {
	if !c.Range().Valid() {
		return fmt.Errorf("%w: end date %s is before start date %s", e.ErrInvalidInput, interval.Format(c.EndDate), c.StartDate.Format("2006-01-02"))
	}
	if !c.BaseSalary.IsPositive() {
		return fmt.Errorf("%w: base salary must be positive", e.ErrInvalidInput)
	}
	if c.InsuranceSalary.IsNegative() {
		return fmt.Errorf("%w: insurance salary must not be negative", e.ErrInvalidInput)
	}
	return nil
}

func label(number string, id uuid.UUID) string {
	if number != "" {
		return number
	}
	return id.String()
}
