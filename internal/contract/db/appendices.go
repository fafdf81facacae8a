package db

import (
	"context"
	"time"

	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

func (r *Repository) CreateAppendix(ctx context.Context, appendix *models.ContractAppendix) error {
	if appendix.ID == uuid.Nil {
		appendix.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(appendix).Error, "appendix "+appendix.ID.String())
}

func (r *Repository) GetAppendix(ctx context.Context, id uuid.UUID) (*models.ContractAppendix, error) {
	var appendix models.ContractAppendix
	if err := r.db.WithContext(ctx).First(&appendix, "id = ?", id).Error; err != nil {
		return nil, translate(err, "appendix "+id.String())
	}
	return &appendix, nil
}

func (r *Repository) GetAppendixForUpdate(ctx context.Context, id uuid.UUID) (*models.ContractAppendix, error) {
	var appendix models.ContractAppendix
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&appendix, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "appendix "+id.String())
	}
	return &appendix, nil
}

func (r *Repository) SaveAppendix(ctx context.Context, appendix *models.ContractAppendix) error {
	return translate(r.db.WithContext(ctx).Save(appendix).Error, "appendix "+appendix.ID.String())
}

func (r *Repository) ListAppendices(ctx context.Context, contractID uuid.UUID) ([]models.ContractAppendix, error) {
	var appendices []models.ContractAppendix
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("effective_date ASC").Order("created_at ASC").
		Find(&appendices).Error
	return appendices, err
}

// ListActiveAppendices returns the ACTIVE appendices of a contract that are
// in force on the given day, in the order they take effect.
func (r *Repository) ListActiveAppendices(ctx context.Context, contractID uuid.UUID, on time.Time) ([]models.ContractAppendix, error) {
	day := interval.Day(on)
	var appendices []models.ContractAppendix
	err := r.db.WithContext(ctx).
		Where("contract_id = ? AND status = ?", contractID, models.AppendixActive).
		Where("effective_date <= ?", day).
		Order("effective_date ASC").Order("approved_at ASC").
		Find(&appendices).Error
	if err != nil {
		return nil, err
	}
	out := appendices[:0]
	for _, a := range appendices {
		// An extension's end date is the contract's new end, not the appendix's.
		if a.Type != models.AppendixExtension && a.EndDate != nil && interval.Day(*a.EndDate).Before(day) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
