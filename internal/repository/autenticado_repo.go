package repository

import (
	"context"
	"strings"

	"cimbrasys/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutenticadoRepository reads and maintains the access allow-list.
// Lookups return gorm.ErrRecordNotFound for emails that are not listed.
type AutenticadoRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.Autenticado, error)
	Add(ctx context.Context, email string) error
	Remove(ctx context.Context, email string) error
	List(ctx context.Context) ([]model.Autenticado, error)
}

type autenticadoRepo struct{ db *gorm.DB }

func NewAutenticadoRepository(db *gorm.DB) AutenticadoRepository {
	return &autenticadoRepo{db: db}
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (r *autenticadoRepo) FindByEmail(ctx context.Context, email string) (*model.Autenticado, error) {
	var a model.Autenticado
	err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *autenticadoRepo) Add(ctx context.Context, email string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Autenticado{Email: normalizeEmail(email)}).Error
}

func (r *autenticadoRepo) Remove(ctx context.Context, email string) error {
	return r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Delete(&model.Autenticado{}).Error
}

func (r *autenticadoRepo) List(ctx context.Context) ([]model.Autenticado, error) {
	var out []model.Autenticado
	err := r.db.WithContext(ctx).Order("email ASC").Find(&out).Error
	return out, err
}
