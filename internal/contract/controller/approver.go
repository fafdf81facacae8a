package controller

import (
	"context"
	"fmt"

	"github.com/gartstein/hrm/internal/contract/db"
	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// resolveApprover finds who signs a level for a department: an assignment
// scoped to the department, then an organisation wide one, then the
// department head, then the first holder of the level's role.
func (s *ContractService) resolveApprover(ctx context.Context, tx *db.Repository, level models.ApprovalLevel, departmentID *uuid.UUID) (uuid.UUID, error) {
	if departmentID != nil {
		a, err := tx.FindApproverAssignment(ctx, level, departmentID)
		if err != nil {
			return uuid.Nil, err
		}
		if a != nil {
			return a.UserID, nil
		}
	}
	a, err := tx.FindApproverAssignment(ctx, level, nil)
	if err != nil {
		return uuid.Nil, err
	}
	if a != nil {
		return a.UserID, nil
	}

	var role models.Role
	switch level {
	case models.LevelDepartmentHead, models.LevelDirector:
		head, err := s.departmentHead(ctx, tx, departmentID)
		if err != nil {
			return uuid.Nil, err
		}
		if head != nil {
			return *head, nil
		}
		if level == models.LevelDepartmentHead {
			return uuid.Nil, fmt.Errorf("%w: department has no head for level %s", e.ErrNoApprover, level)
		}
		role = models.RoleDirector
	case models.LevelHR:
		role = models.RoleHR
	default:
		return uuid.Nil, fmt.Errorf("%w: unknown approval level %q", e.ErrInvalidInput, level)
	}

	users, err := tx.ListUsersWithRole(ctx, role)
	if err != nil {
		return uuid.Nil, err
	}
	if len(users) == 0 {
		return uuid.Nil, fmt.Errorf("%w: nobody holds role %s for level %s", e.ErrNoApprover, role, level)
	}
	if len(users) > 1 {
		s.logger.Debug("several approvers hold role, picking first",
			zap.String("role", string(role)),
			zap.String("user_id", users[0].ID.String()),
		)
	}
	return users[0].ID, nil
}

func (s *ContractService) departmentHead(ctx context.Context, tx *db.Repository, departmentID *uuid.UUID) (*uuid.UUID, error) {
	if departmentID == nil {
		return nil, nil
	}
	dept, err := tx.GetDepartment(ctx, *departmentID)
	if err != nil {
		return nil, err
	}
	return dept.HeadUserID, nil
}

// authorize checks that actor may sign a step assigned to approverID. An
// unassigned step may be signed by any holder of the level's role, or for
// DEPARTMENT_HEAD by the department's head.
func (s *ContractService) authorize(ctx context.Context, tx *db.Repository, actor models.Actor, level models.ApprovalLevel, approverID *uuid.UUID, departmentID *uuid.UUID) error {
	if actor.UserID == uuid.Nil {
		return fmt.Errorf("%w: missing actor", e.ErrUnauthorized)
	}
	if approverID != nil {
		if *approverID != actor.UserID {
			return fmt.Errorf("%w: step %s is assigned to %s, not %s", e.ErrUnauthorized, level, approverID, actor.UserID)
		}
		return nil
	}

	var role models.Role
	switch level {
	case models.LevelDirector:
		role = models.RoleDirector
	case models.LevelHR:
		role = models.RoleHR
	case models.LevelDepartmentHead:
		head, err := s.departmentHead(ctx, tx, departmentID)
		if err != nil {
			return err
		}
		if head == nil || *head != actor.UserID {
			return fmt.Errorf("%w: %s is not the department head", e.ErrUnauthorized, actor.UserID)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown approval level %q", e.ErrInvalidInput, level)
	}
	ok, err := tx.UserHasRole(ctx, actor.UserID, role)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s does not hold role %s", e.ErrUnauthorized, actor.UserID, role)
	}
	return nil
}
