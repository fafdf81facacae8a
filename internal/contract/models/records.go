package models

import (
	"time"

	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/google/uuid"
)

// EmploymentPeriod is a continuous span of employment, independent of the
// contracts that cover it.
type EmploymentPeriod struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;index"`
	StartDate  time.Time `gorm:"type:date;not null"`
	// EndDate is nil while the employee is still employed.
	EndDate   *time.Time         `gorm:"type:date"`
	EndReason *TerminationReason `gorm:"size:30"`
	// IsCurrent always equals EndDate == nil.
	IsCurrent bool   `gorm:"not null"`
	Note      string `gorm:"size:1000"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *EmploymentPeriod) Range() interval.Range {
	return interval.New(p.StartDate, p.EndDate)
}

// EmployeeInsuranceProfile is a time slice recording which position and
// grade determine the employee's statutory insurance salary.
type EmployeeInsuranceProfile struct {
	ID               uuid.UUID     `gorm:"type:uuid;primaryKey"`
	EmployeeID       uuid.UUID     `gorm:"type:uuid;not null;index"`
	PositionID       uuid.UUID     `gorm:"type:uuid;not null"`
	Grade            int           `gorm:"not null;check:grade >= 1 AND grade <= 7"`
	AppliedFrom      time.Time     `gorm:"type:date;not null"`
	AppliedTo        *time.Time    `gorm:"type:date"`
	Reason           ProfileReason `gorm:"size:30;not null"`
	SourceContractID *uuid.UUID    `gorm:"type:uuid"`
	SourceAppendixID *uuid.UUID    `gorm:"type:uuid"`
	Note             string        `gorm:"size:1000"`
	CreatedBy        *uuid.UUID    `gorm:"type:uuid"`
	// Version is bumped on every write and checked when closing a slice.
	Version   int `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *EmployeeInsuranceProfile) Range() interval.Range {
	return interval.New(p.AppliedFrom, p.AppliedTo)
}
