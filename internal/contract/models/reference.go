package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinimumWage is the statutory regional minimum wage over an effective window.
type MinimumWage struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Region        int             `gorm:"not null;index"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	EffectiveFrom time.Time       `gorm:"type:date;not null"`
	EffectiveTo   *time.Time      `gorm:"type:date"`
	CreatedAt     time.Time
}

// PositionSalaryGrade is the minimum-wage coefficient of one grade of a position.
type PositionSalaryGrade struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PositionID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Grade         int             `gorm:"not null"`
	Coefficient   decimal.Decimal `gorm:"type:numeric(8,4);not null"`
	IsActive      bool            `gorm:"not null"`
	EffectiveFrom time.Time       `gorm:"type:date;not null"`
	EffectiveTo   *time.Time      `gorm:"type:date"`
	CreatedAt     time.Time
}

type Employee struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code         string     `gorm:"size:30;uniqueIndex"`
	FullName     string     `gorm:"size:200"`
	DepartmentID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Position struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code      string    `gorm:"size:30;uniqueIndex"`
	Name      string    `gorm:"size:200"`
	CreatedAt time.Time
}

type Department struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code string    `gorm:"size:30;uniqueIndex"`
	Name string    `gorm:"size:200"`
	// Region selects the applicable minimum wage.
	Region     int        `gorm:"not null"`
	HeadUserID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt  time.Time
}

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:200"`
	Email     string    `gorm:"size:200"`
	CreatedAt time.Time
}

type UserRole struct {
	UserID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role   Role      `gorm:"size:30;primaryKey"`
}

// ApproverAssignment explicitly assigns a user to an approval level, either
// for one department or, with a nil DepartmentID, for the whole organisation.
type ApproverAssignment struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Level        ApprovalLevel `gorm:"size:30;not null;index"`
	DepartmentID *uuid.UUID    `gorm:"type:uuid"`
	UserID       uuid.UUID     `gorm:"type:uuid;not null"`
	CreatedAt    time.Time
}
