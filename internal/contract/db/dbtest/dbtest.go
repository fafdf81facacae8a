// Package dbtest opens throwaway in-memory stores and seeds the reference
// data shared by the package tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/gartstein/hrm/internal/contract/db"
	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a migrated Repository over an in-memory SQLite database. The
// pool is pinned to one connection so every statement sees the same database.
func Open(t testing.TB) *db.Repository {
	t.Helper()
	g, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open test database")

	sqlDB, err := g.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(g), "failed to migrate test database")
	return db.New(g)
}

// Org is the fixture seeded by SeedOrg.
type Org struct {
	Department     models.Department
	Position       models.Position
	SeniorPosition models.Position
	Employee       models.Employee
	Director       models.User
	HR             models.User
}

// MinimumWage is the region 1 minimum wage seeded by SeedOrg.
var MinimumWage = decimal.NewFromInt(4_680_000)

// Coefficients are the seeded grade coefficients of Org.Position.
var Coefficients = []string{"2.34", "2.50", "2.68", "2.86", "3.04", "3.22", "3.40"}

// SeniorCoefficients are the seeded grade coefficients of Org.SeniorPosition.
var SeniorCoefficients = []string{"3.00", "3.20", "3.40", "3.60", "3.80", "4.00", "4.20"}

// SeedOrg creates one department in region 1, two positions with a full
// grade table, one employee, a director and an HR user.
func SeedOrg(t testing.TB, repo *db.Repository) Org {
	t.Helper()
	ctx := context.Background()
	var org Org

	org.Director = models.User{Name: "Dana Director", Email: "director@example.com"}
	require.NoError(t, repo.CreateUser(ctx, &org.Director, models.RoleDirector))
	org.HR = models.User{Name: "Harper HR", Email: "hr@example.com"}
	require.NoError(t, repo.CreateUser(ctx, &org.HR, models.RoleHR))

	org.Department = models.Department{Code: "OPS", Name: "Operations", Region: 1}
	require.NoError(t, repo.CreateDepartment(ctx, &org.Department))

	org.Position = models.Position{Code: "ENG", Name: "Engineer"}
	require.NoError(t, repo.CreatePosition(ctx, &org.Position))
	org.SeniorPosition = models.Position{Code: "SENG", Name: "Senior Engineer"}
	require.NoError(t, repo.CreatePosition(ctx, &org.SeniorPosition))

	org.Employee = NewEmployee(t, repo, "E001", &org.Department.ID)

	require.NoError(t, repo.CreateMinimumWage(ctx, &models.MinimumWage{
		Region:        1,
		Amount:        MinimumWage,
		EffectiveFrom: interval.Date(2020, 1, 1),
	}))
	SeedGrades(t, repo, org.Position.ID, Coefficients...)
	SeedGrades(t, repo, org.SeniorPosition.ID, SeniorCoefficients...)
	return org
}

// NewEmployee creates another employee in the given department.
func NewEmployee(t testing.TB, repo *db.Repository, code string, departmentID *uuid.UUID) models.Employee {
	t.Helper()
	employee := models.Employee{Code: code, FullName: "Employee " + code, DepartmentID: departmentID}
	require.NoError(t, repo.CreateEmployee(context.Background(), &employee))
	return employee
}

// SeedGrades stores coefficients for grades 1..n of a position, effective from 2020.
func SeedGrades(t testing.TB, repo *db.Repository, positionID uuid.UUID, coefficients ...string) {
	t.Helper()
	for i, c := range coefficients {
		require.NoError(t, repo.CreateSalaryGrade(context.Background(), &models.PositionSalaryGrade{
			PositionID:    positionID,
			Grade:         i + 1,
			Coefficient:   decimal.RequireFromString(c),
			IsActive:      true,
			EffectiveFrom: interval.Date(2020, 1, 1),
		}))
	}
}

// Reference returns minimum wage x coefficient for a grade of Org.Position.
func Reference(grade int) decimal.Decimal {
	return MinimumWage.Mul(decimal.RequireFromString(Coefficients[grade-1]))
}
