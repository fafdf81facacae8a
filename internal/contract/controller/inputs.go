package controller

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// CreateContractInput is a new draft contract.
type CreateContractInput struct {
	Number          string                `validate:"max=50"`
	EmployeeID      uuid.UUID             `validate:"required"`
	PositionID      uuid.UUID             `validate:"required"`
	DepartmentID    *uuid.UUID            `validate:"omitempty"`
	Source          models.ContractSource `validate:"omitempty,oneof=RECRUITMENT LEGACY"`
	StartDate       time.Time             `validate:"required"`
	EndDate         *time.Time            `validate:"omitempty"`
	BaseSalary      decimal.Decimal
	InsuranceSalary decimal.Decimal
	WorkingTerms    string `validate:"max=1000"`
}

// TerminationInput ends an in-force contract early.
type TerminationInput struct {
	Date   time.Time                `validate:"required"`
	Reason models.TerminationReason `validate:"required"`
	Note   string                   `validate:"max=1000"`
}

// RenewalInput extends a fixed-term contract. EffectiveDate defaults to the
// day after the current end date.
type RenewalInput struct {
	NewEndDate      time.Time `validate:"required"`
	EffectiveDate   *time.Time
	BaseSalary      *decimal.Decimal
	InsuranceSalary *decimal.Decimal
	PositionID      *uuid.UUID
	Note            string `validate:"max=1000"`
}

// CreateAppendixInput is a new draft appendix. Which change fields are
// required depends on Type.
type CreateAppendixInput struct {
	ContractID      uuid.UUID           `validate:"required"`
	Number          string              `validate:"max=50"`
	Type            models.AppendixType `validate:"required"`
	EffectiveDate   time.Time           `validate:"required"`
	EndDate         *time.Time
	BaseSalary      *decimal.Decimal
	InsuranceSalary *decimal.Decimal
	PositionID      *uuid.UUID
	DepartmentID    *uuid.UUID
	WorkingTerms    *string `validate:"omitempty,max=1000"`
	Note            string  `validate:"max=1000"`
}

// validateInput runs the struct tags and reports every failing field.
func validateInput(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", e.ErrInvalidInput, strings.Join(msgs, ", "))
}
