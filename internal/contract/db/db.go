// Package db implements the transactional record store of the contract
// workflow on top of GORM.
package db

import (
	"context"
	"errors"
	"fmt"

	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewRepository connects to Postgres and migrates the schema.
func NewRepository(cfg *Config) (*Repository, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

// New wraps an already opened connection.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the tables and the partial unique indexes that keep at
// most one open employment period and one open insurance profile per employee.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Employee{},
		&models.Position{},
		&models.Department{},
		&models.User{},
		&models.UserRole{},
		&models.ApproverAssignment{},
		&models.Contract{},
		&models.ContractApproval{},
		&models.ContractAppendix{},
		&models.EmploymentPeriod{},
		&models.EmployeeInsuranceProfile{},
		&models.MinimumWage{},
		&models.PositionSalaryGrade{},
	); err != nil {
		return err
	}
	for _, stmt := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_employment_periods_open ON employment_periods (employee_id) WHERE end_date IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_insurance_profiles_open ON employee_insurance_profiles (employee_id) WHERE applied_to IS NULL`,
		`CREATE INDEX IF NOT EXISTS ix_contracts_employee_status ON contracts (employee_id, status)`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// WithTransaction runs fn inside a transaction bound to a fresh Repository.
// Called on a Repository that is already inside a transaction, it opens a
// savepoint instead, so fn can fail without aborting the outer transaction.
func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// LockEmployee takes a row lock on the employee, serializing every temporal
// write for that employee until the surrounding transaction ends.
func (r *Repository) LockEmployee(ctx context.Context, employeeID uuid.UUID) error {
	var employee models.Employee
	result := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&employee, "id = ?", employeeID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: employee %s", e.ErrNotFound, employeeID)
		}
		return result.Error
	}
	return nil
}

func (r *Repository) Exec(ctx context.Context, query string, params ...interface{}) error {
	result := r.db.WithContext(ctx).Exec(query, params...)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// translate maps driver errors onto the package sentinels.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", e.ErrNotFound, what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s", e.ErrConflict, what)
	}
	return err
}
