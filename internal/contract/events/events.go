package events

import (
	"time"

	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
)

type EventType string

const (
	ContractSubmitted        EventType = "contract_submitted"
	ContractApprovalRecorded EventType = "contract_approval_recorded"
	ContractApproved         EventType = "contract_approved"
	ContractRejected         EventType = "contract_rejected"
	ContractRecalled         EventType = "contract_recalled"
	ContractCancelled        EventType = "contract_cancelled"
	ContractTerminated       EventType = "contract_terminated"
	ContractRenewed          EventType = "contract_renewed"
	ContractSuspended        EventType = "contract_suspended"
	ContractResumed          EventType = "contract_resumed"
	ContractExpired          EventType = "contract_expired"
	AppendixSubmitted        EventType = "appendix_submitted"
	AppendixApproved         EventType = "appendix_approved"
	AppendixRejected         EventType = "appendix_rejected"
	AppendixCancelled        EventType = "appendix_cancelled"
)

// Event is a domain event published after the transaction that caused it
// has committed. Events of one employee share a partition key.
type Event struct {
	ID         uuid.UUID                `json:"id"`
	Type       EventType                `json:"type"`
	OccurredAt time.Time                `json:"occurred_at"`
	ActorID    uuid.UUID                `json:"actor_id"`
	EmployeeID uuid.UUID                `json:"employee_id"`
	Contract   *models.Contract         `json:"contract,omitempty"`
	Appendix   *models.ContractAppendix `json:"appendix,omitempty"`
	Reason     string                   `json:"reason,omitempty"`
}

// NewContractEvent snapshots the contract into an event.
func NewContractEvent(eventType EventType, actor models.Actor, contract *models.Contract) Event {
	snapshot := *contract
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		ActorID:    actor.UserID,
		EmployeeID: contract.EmployeeID,
		Contract:   &snapshot,
	}
}

// NewAppendixEvent snapshots the appendix and its contract into an event.
func NewAppendixEvent(eventType EventType, actor models.Actor, contract *models.Contract, appendix *models.ContractAppendix) Event {
	event := NewContractEvent(eventType, actor, contract)
	snapshot := *appendix
	event.Appendix = &snapshot
	return event
}

// WithReason attaches a human readable reason, e.g. a rejection comment.
func (e Event) WithReason(reason string) Event {
	e.Reason = reason
	return e
}
