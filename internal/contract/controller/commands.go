package controller

import (
	"context"
	"fmt"

	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/events"
	"github.com/gartstein/hrm/internal/pkg/utils"
)

// HandleCommand maps an inbound workflow command onto a transition.
func (s *ContractService) HandleCommand(ctx context.Context, cmd events.Command) error {
	var err error
	switch cmd.Type {
	case events.CommandSubmit:
		_, err = s.Submit(ctx, cmd.Actor, cmd.ContractID)
	case events.CommandApprove:
		_, err = s.Approve(ctx, cmd.Actor, cmd.ContractID, cmd.Comments)
	case events.CommandReject:
		_, err = s.Reject(ctx, cmd.Actor, cmd.ContractID, cmd.Comments)
	case events.CommandRecall:
		_, err = s.Recall(ctx, cmd.Actor, cmd.ContractID)
	case events.CommandCancel:
		_, err = s.CancelDraft(ctx, cmd.Actor, cmd.ContractID, cmd.Comments)
	case events.CommandSuspend:
		_, err = s.Suspend(ctx, cmd.Actor, cmd.ContractID, cmd.Comments)
	case events.CommandResume:
		_, err = s.Resume(ctx, cmd.Actor, cmd.ContractID, cmd.Comments)
	case events.CommandTerminate:
		if cmd.Date == nil {
			return fmt.Errorf("%w: terminate command without date", e.ErrInvalidInput)
		}
		_, err = s.Terminate(ctx, cmd.Actor, cmd.ContractID, TerminationInput{
			Date:   *cmd.Date,
			Reason: cmd.TerminationReason,
			Note:   cmd.Comments,
		})
	case events.CommandRenew:
		if cmd.NewEndDate == nil {
			return fmt.Errorf("%w: renew command without new end date", e.ErrInvalidInput)
		}
		_, err = s.Renew(ctx, cmd.Actor, cmd.ContractID, RenewalInput{
			NewEndDate:      *cmd.NewEndDate,
			EffectiveDate:   cmd.Date,
			BaseSalary:      cmd.BaseSalary,
			InsuranceSalary: cmd.InsuranceSalary,
			PositionID:      cmd.PositionID,
			Note:            cmd.Comments,
		})
	case events.CommandExpire:
		asOf := utils.Deref(cmd.Date)
		if asOf.IsZero() {
			asOf = s.now()
		}
		_, err = s.ExpireDue(ctx, cmd.Actor, asOf)
	case events.CommandSubmitAppendix:
		_, err = s.SubmitAppendix(ctx, cmd.Actor, cmd.AppendixID)
	case events.CommandApproveAppendix:
		_, err = s.ApproveAppendix(ctx, cmd.Actor, cmd.AppendixID, cmd.Comments)
	case events.CommandRejectAppendix:
		_, err = s.RejectAppendix(ctx, cmd.Actor, cmd.AppendixID, cmd.Comments)
	case events.CommandCancelAppendix:
		_, err = s.CancelAppendix(ctx, cmd.Actor, cmd.AppendixID)
	default:
		return fmt.Errorf("%w: unknown command type %q", e.ErrInvalidInput, cmd.Type)
	}
	return err
}
