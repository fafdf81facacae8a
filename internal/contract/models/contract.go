// Package models contains the persisted entities of the contract workflow
// and the temporal records derived from it, mapped with GORM.
package models

import (
	"time"

	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor identifies the user performing a state transition.
type Actor struct {
	UserID uuid.UUID
	Name   string
}

// Contract is a legal employment document for one employee.
type Contract struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Number     string         `gorm:"size:50;index"`
	EmployeeID uuid.UUID      `gorm:"type:uuid;not null;index"`
	PositionID uuid.UUID      `gorm:"type:uuid;not null"`
	Source     ContractSource `gorm:"size:20;not null"`
	// DepartmentID also selects the minimum-wage region for grade detection.
	DepartmentID *uuid.UUID `gorm:"type:uuid"`
	StartDate    time.Time  `gorm:"type:date;not null"`
	// EndDate is the last day of the contract; nil for an open-ended contract.
	EndDate         *time.Time      `gorm:"type:date"`
	BaseSalary      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	InsuranceSalary decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	WorkingTerms    string          `gorm:"size:1000"`
	Status          ContractStatus  `gorm:"size:20;not null;index"`

	EmploymentPeriodID *uuid.UUID `gorm:"type:uuid;index"`

	CreatedBy       *uuid.UUID `gorm:"type:uuid"`
	ApproverID      *uuid.UUID `gorm:"type:uuid"`
	SubmittedAt     *time.Time
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
	RejectionReason string `gorm:"size:1000"`

	TerminationDate   *time.Time         `gorm:"type:date"`
	TerminationReason *TerminationReason `gorm:"size:30"`
	TerminationNote   string             `gorm:"size:1000"`
	TerminatedAt      *time.Time
	TerminatedBy      *uuid.UUID `gorm:"type:uuid"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Range is the contract's span of validity.
func (c *Contract) Range() interval.Range {
	return interval.New(c.StartDate, c.EndDate)
}

// LastDay returns the date on which the contract stopped binding the
// employee: the termination date when terminated, else the end date.
func (c *Contract) LastDay() *time.Time {
	if c.TerminationDate != nil {
		return interval.DayPtr(c.TerminationDate)
	}
	return interval.DayPtr(c.EndDate)
}

// GradeSalary is the salary figure used to infer the statutory grade.
func (c *Contract) GradeSalary() decimal.Decimal {
	if c.InsuranceSalary.IsPositive() {
		return c.InsuranceSalary
	}
	return c.BaseSalary
}

// ContractApproval is one step of a contract's approval chain.
type ContractApproval struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ContractID uuid.UUID      `gorm:"type:uuid;not null;index"`
	Level      ApprovalLevel  `gorm:"size:30;not null"`
	StepOrder  int            `gorm:"not null"`
	ApproverID *uuid.UUID     `gorm:"type:uuid"`
	Status     ApprovalStatus `gorm:"size:20;not null"`
	Comments   string         `gorm:"size:1000"`
	ApprovedAt *time.Time
	RejectedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ContractAppendix amends one or more negotiated terms of a contract from
// EffectiveDate on. Only the fields relevant to Type are set.
type ContractAppendix struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ContractID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Number        string         `gorm:"size:50"`
	Type          AppendixType   `gorm:"size:30;not null"`
	Status        AppendixStatus `gorm:"size:20;not null;index"`
	EffectiveDate time.Time      `gorm:"type:date;not null"`
	// EndDate bounds the amendment. For EXTENSION it is the contract's new end date.
	EndDate *time.Time `gorm:"type:date"`

	BaseSalary      decimal.NullDecimal `gorm:"type:numeric(18,2)"`
	InsuranceSalary decimal.NullDecimal `gorm:"type:numeric(18,2)"`
	PositionID      *uuid.UUID          `gorm:"type:uuid"`
	DepartmentID    *uuid.UUID          `gorm:"type:uuid"`
	WorkingTerms    *string             `gorm:"size:1000"`
	Note            string              `gorm:"size:1000"`

	CreatedBy       *uuid.UUID `gorm:"type:uuid"`
	ApproverID      *uuid.UUID `gorm:"type:uuid"`
	SubmittedAt     *time.Time
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
	RejectionReason string `gorm:"size:1000"`
	CancelledAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ContractAppendix) TableName() string { return "contract_appendices" }

// GradeSalary returns the salary figure carried by the appendix, if any.
func (a *ContractAppendix) GradeSalary() (decimal.Decimal, bool) {
	if a.InsuranceSalary.Valid && a.InsuranceSalary.Decimal.IsPositive() {
		return a.InsuranceSalary.Decimal, true
	}
	if a.BaseSalary.Valid && a.BaseSalary.Decimal.IsPositive() {
		return a.BaseSalary.Decimal, true
	}
	return decimal.Zero, false
}

// Terms is the effective view of a contract's negotiated terms on a given day.
type Terms struct {
	ContractID      uuid.UUID
	On              time.Time
	BaseSalary      decimal.Decimal
	InsuranceSalary decimal.Decimal
	PositionID      uuid.UUID
	DepartmentID    *uuid.UUID
	WorkingTerms    string
	EndDate         *time.Time
}

// GradeSalary mirrors Contract.GradeSalary for the overlaid terms.
func (t Terms) GradeSalary() decimal.Decimal {
	if t.InsuranceSalary.IsPositive() {
		return t.InsuranceSalary
	}
	return t.BaseSalary
}
