package events

import (
	"time"

	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CommandType string

const (
	CommandSubmit          CommandType = "submit_contract"
	CommandApprove         CommandType = "approve_contract"
	CommandReject          CommandType = "reject_contract"
	CommandRecall          CommandType = "recall_contract"
	CommandCancel          CommandType = "cancel_contract"
	CommandTerminate       CommandType = "terminate_contract"
	CommandRenew           CommandType = "renew_contract"
	CommandSuspend         CommandType = "suspend_contract"
	CommandResume          CommandType = "resume_contract"
	CommandExpire          CommandType = "expire_contracts"
	CommandSubmitAppendix  CommandType = "submit_appendix"
	CommandApproveAppendix CommandType = "approve_appendix"
	CommandRejectAppendix  CommandType = "reject_appendix"
	CommandCancelAppendix  CommandType = "cancel_appendix"
)

// Command is an inbound trigger from the document workflow. Which fields are
// meaningful depends on Type.
type Command struct {
	ID         uuid.UUID    `json:"id"`
	Type       CommandType  `json:"type"`
	Actor      models.Actor `json:"actor"`
	ContractID uuid.UUID    `json:"contract_id,omitempty"`
	AppendixID uuid.UUID    `json:"appendix_id,omitempty"`
	Comments   string       `json:"comments,omitempty"`

	// Date is the termination date, the expiry cut-off or the renewal's
	// effective date.
	Date              *time.Time               `json:"date,omitempty"`
	TerminationReason models.TerminationReason `json:"termination_reason,omitempty"`
	NewEndDate        *time.Time               `json:"new_end_date,omitempty"`
	BaseSalary        *decimal.Decimal         `json:"base_salary,omitempty"`
	InsuranceSalary   *decimal.Decimal         `json:"insurance_salary,omitempty"`
	PositionID        *uuid.UUID               `json:"position_id,omitempty"`
}
