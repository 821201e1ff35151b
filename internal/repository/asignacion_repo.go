package repository

import (
	"context"

	"cimbrasys/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AsignacionRepository is the contract <-> lot allocation relation.
type AsignacionRepository interface {
	ListByContrato(ctx context.Context, contratoID uuid.UUID) ([]model.Asignacion, error)

	// ExistsByLoteTx reports whether any allocation still draws from the lot.
	ExistsByLoteTx(tx *gorm.DB, loteID uuid.UUID) (bool, error)
	CreateTx(tx *gorm.DB, rows []model.Asignacion) error
	// ListByContratoNumeroForUpdateTx locks the allocation rows of a contract.
	ListByContratoNumeroForUpdateTx(tx *gorm.DB, numero string) ([]model.Asignacion, error)
	DeleteByContratoNumeroTx(tx *gorm.DB, numero string) error
}

type asignacionRepo struct{ db *gorm.DB }

func NewAsignacionRepository(db *gorm.DB) AsignacionRepository { return &asignacionRepo{db: db} }

func (r *asignacionRepo) ListByContrato(ctx context.Context, contratoID uuid.UUID) ([]model.Asignacion, error) {
	var out []model.Asignacion
	err := r.db.WithContext(ctx).Where("contrato_id = ?", contratoID).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *asignacionRepo) ExistsByLoteTx(tx *gorm.DB, loteID uuid.UUID) (bool, error) {
	var n int64
	err := tx.Model(&model.Asignacion{}).Where("lote_id = ?", loteID).Limit(1).Count(&n).Error
	return n > 0, err
}

func (r *asignacionRepo) CreateTx(tx *gorm.DB, rows []model.Asignacion) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func (r *asignacionRepo) ListByContratoNumeroForUpdateTx(tx *gorm.DB, numero string) ([]model.Asignacion, error) {
	var out []model.Asignacion
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("contrato_numero = ?", numero).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *asignacionRepo) DeleteByContratoNumeroTx(tx *gorm.DB, numero string) error {
	return tx.Where("contrato_numero = ?", numero).Delete(&model.Asignacion{}).Error
}
