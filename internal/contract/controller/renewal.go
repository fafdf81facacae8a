package controller

import (
	"context"

	"github.com/gartstein/hrm/internal/contract/db"
	"github.com/gartstein/hrm/internal/contract/events"
	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Renew asks for an extension of an ACTIVE fixed-term contract. It creates
// an EXTENSION appendix straight in PENDING_APPROVAL; the contract's end
// date only moves once the appendix is approved.
func (s *ContractService) Renew(ctx context.Context, actor models.Actor, contractID uuid.UUID, in RenewalInput) (*models.ContractAppendix, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var appendix *models.ContractAppendix
	err := s.inTx(ctx, "renew", func(tx *db.Repository, out *outbox) error {
		c, err := tx.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if err := requireStatus(c, "renew", models.ContractActive); err != nil {
			return err
		}

		newEnd := interval.Day(in.NewEndDate)
		a := &models.ContractAppendix{
			ID:              uuid.New(),
			ContractID:      c.ID,
			Type:            models.AppendixExtension,
			Status:          models.AppendixDraft,
			EndDate:         &newEnd,
			BaseSalary:      nullDecimal(in.BaseSalary),
			InsuranceSalary: nullDecimal(in.InsuranceSalary),
			PositionID:      in.PositionID,
			Note:            in.Note,
		}
		switch {
		case in.EffectiveDate != nil:
			a.EffectiveDate = interval.Day(*in.EffectiveDate)
		case c.EndDate != nil:
			a.EffectiveDate = interval.NextDay(*c.EndDate)
		}
		if actor.UserID != uuid.Nil {
			author := actor.UserID
			a.CreatedBy = &author
		}
		if err := checkAppendix(a, c); err != nil {
			return err
		}
		if err := tx.CreateAppendix(ctx, a); err != nil {
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
	s.logger.Info("renewal requested",
		zap.String("contract_id", contractID.String()),
		zap.String("appendix_id", appendix.ID.String()),
		zap.String("new_end_date", appendix.EndDate.Format("2006-01-02")),
	)
	return appendix, nil
}
