package repository

import (
	"context"
	"fmt"
	"time"

	"cimbrasys/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContratoFilter narrows List. Desde and Hasta bound fecha_inicio inclusively
// (Hasta covers the whole day).
type ContratoFilter struct {
	Estado string
	Desde  *time.Time
	Hasta  *time.Time
}

type ContratoRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Contrato, error)
	// List returns contracts with their lines, newest first.
	List(ctx context.Context, filter ContratoFilter) ([]model.Contrato, error)

	CreateTx(tx *gorm.DB, c *model.Contrato) error
	// FindByIDForUpdateTx locks the contract row and loads its lines.
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Contrato, error)
	UpdateEstadoTx(tx *gorm.DB, id uuid.UUID, estado string, ultimaReversion *time.Time) error
	// NextNumeroTx returns the next CIM-<year>-NNN contract number.
	NextNumeroTx(tx *gorm.DB, year int) (string, error)
}

type contratoRepo struct{ db *gorm.DB }

func NewContratoRepository(db *gorm.DB) ContratoRepository { return &contratoRepo{db: db} }

func ordenMateriales(db *gorm.DB) *gorm.DB { return db.Order("orden ASC") }

func (r *contratoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Contrato, error) {
	var c model.Contrato
	err := r.db.WithContext(ctx).Preload("Materiales", ordenMateriales).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *contratoRepo) List(ctx context.Context, filter ContratoFilter) ([]model.Contrato, error) {
	q := r.db.WithContext(ctx).Model(&model.Contrato{})
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}
	if filter.Desde != nil {
		q = q.Where("fecha_inicio >= ?", *filter.Desde)
	}
	if filter.Hasta != nil {
		q = q.Where("fecha_inicio < ?", filter.Hasta.AddDate(0, 0, 1))
	}
	var out []model.Contrato
	err := q.Preload("Materiales", ordenMateriales).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *contratoRepo) CreateTx(tx *gorm.DB, c *model.Contrato) error {
	return tx.Create(c).Error
}

func (r *contratoRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Contrato, error) {
	var c model.Contrato
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("contrato_id = ?", id).Order("orden ASC").Find(&c.Materiales).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *contratoRepo) UpdateEstadoTx(tx *gorm.DB, id uuid.UUID, estado string, ultimaReversion *time.Time) error {
	updates := map[string]interface{}{"estado": estado}
	if ultimaReversion != nil {
		updates["ultima_reversion"] = *ultimaReversion
	}
	return tx.Model(&model.Contrato{}).Where("id = ?", id).Updates(updates).Error
}

func (r *contratoRepo) NextNumeroTx(tx *gorm.DB, year int) (string, error) {
	// PostgreSQL sequence: gapless is not required, uniqueness is.
	var n int64
	if err := tx.Raw("SELECT nextval('contratos_numero_seq')").Scan(&n).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("CIM-%d-%03d", year, n), nil
}
