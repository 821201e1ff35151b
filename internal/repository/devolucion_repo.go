package repository

import (
	"context"

	"cimbrasys/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DevolucionFilter defines filters for listing the returns history.
type DevolucionFilter struct {
	ContratoID *uuid.UUID
	Page       int
	Limit      int
}

type DevolucionRepository interface {
	Create(ctx context.Context, d *model.Devolucion) error
	List(ctx context.Context, filter DevolucionFilter) ([]model.Devolucion, int64, error)
}

type devolucionRepo struct{ db *gorm.DB }

func NewDevolucionRepository(db *gorm.DB) DevolucionRepository { return &devolucionRepo{db: db} }

func (r *devolucionRepo) Create(ctx context.Context, d *model.Devolucion) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *devolucionRepo) List(ctx context.Context, filter DevolucionFilter) ([]model.Devolucion, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Devolucion{})
	if filter.ContratoID != nil {
		q = q.Where("contrato_id = ?", *filter.ContratoID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	var out []model.Devolucion
	err := q.Order("fecha_devolucion DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&out).Error
	return out, total, err
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return page, limit
}
