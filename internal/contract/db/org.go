package db

import (
	"context"
	"errors"

	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *Repository) CreateEmployee(ctx context.Context, employee *models.Employee) error {
	if employee.ID == uuid.Nil {
		employee.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(employee).Error, "employee "+employee.Code)
}

func (r *Repository) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	var employee models.Employee
	if err := r.db.WithContext(ctx).First(&employee, "id = ?", id).Error; err != nil {
		return nil, translate(err, "employee "+id.String())
	}
	return &employee, nil
}

func (r *Repository) GetEmployeeByCode(ctx context.Context, code string) (*models.Employee, error) {
	var employee models.Employee
	if err := r.db.WithContext(ctx).First(&employee, "code = ?", code).Error; err != nil {
		return nil, translate(err, "employee "+code)
	}
	return &employee, nil
}

func (r *Repository) CreatePosition(ctx context.Context, position *models.Position) error {
	if position.ID == uuid.Nil {
		position.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(position).Error, "position "+position.Code)
}

func (r *Repository) GetPositionByCode(ctx context.Context, code string) (*models.Position, error) {
	var position models.Position
	if err := r.db.WithContext(ctx).First(&position, "code = ?", code).Error; err != nil {
		return nil, translate(err, "position "+code)
	}
	return &position, nil
}

func (r *Repository) CreateDepartment(ctx context.Context, department *models.Department) error {
	if department.ID == uuid.Nil {
		department.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(department).Error, "department "+department.Code)
}

func (r *Repository) GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	var department models.Department
	if err := r.db.WithContext(ctx).First(&department, "id = ?", id).Error; err != nil {
		return nil, translate(err, "department "+id.String())
	}
	return &department, nil
}

func (r *Repository) GetDepartmentByCode(ctx context.Context, code string) (*models.Department, error) {
	var department models.Department
	if err := r.db.WithContext(ctx).First(&department, "code = ?", code).Error; err != nil {
		return nil, translate(err, "department "+code)
	}
	return &department, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User, roles ...models.Role) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		for _, role := range roles {
			if err := tx.Create(&models.UserRole{UserID: user.ID, Role: role}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) CreateApproverAssignment(ctx context.Context, assignment *models.ApproverAssignment) error {
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(assignment).Error
}

// FindApproverAssignment returns the explicit assignment for a level, scoped
// to departmentID when given, otherwise organisation wide. A nil result
// means no assignment exists.
func (r *Repository) FindApproverAssignment(ctx context.Context, level models.ApprovalLevel, departmentID *uuid.UUID) (*models.ApproverAssignment, error) {
	q := r.db.WithContext(ctx).Where("level = ?", level)
	if departmentID != nil {
		q = q.Where("department_id = ?", *departmentID)
	} else {
		q = q.Where("department_id IS NULL")
	}
	var assignment models.ApproverAssignment
	if err := q.Order("created_at ASC").First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// ListUsersWithRole returns the users holding role, ordered by name.
func (r *Repository) ListUsersWithRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_roles ON user_roles.user_id = users.id").
		Where("user_roles.role = ?", role).
		Order("users.name ASC").Order("users.id ASC").
		Find(&users).Error
	return users, err
}

// UserHasRole reports whether the user holds role.
func (r *Repository) UserHasRole(ctx context.Context, userID uuid.UUID, role models.Role) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserRole{}).
		Where("user_id = ? AND role = ?", userID, role).
		Count(&count).Error
	return count > 0, err
}
