package repository

import (
	"context"
	"fmt"

	"cimbrasys/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventarioFilter narrows List by exact type and status; empty means any.
type InventarioFilter struct {
	Tipo   string
	Estado string
}

// InventarioRepository defines the data access contract for material lots.
// The ...Tx methods run inside a transaction opened by a TxRunner and must be
// passed its tx handle.
type InventarioRepository interface {
	Create(ctx context.Context, l *model.LoteMaterial) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.LoteMaterial, error)
	List(ctx context.Context, filter InventarioFilter) ([]model.LoteMaterial, error)
	NextCodigo(ctx context.Context) (string, error)

	// FindByIDForUpdateTx reads a lot and holds its row lock until commit.
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.LoteMaterial, error)
	// ListDisponiblesForUpdateTx locks every Disponible lot of a type, oldest first.
	ListDisponiblesForUpdateTx(tx *gorm.DB, tipo string) ([]model.LoteMaterial, error)
	// UpdateCantidadTx adds delta (possibly negative) to cantidad.
	UpdateCantidadTx(tx *gorm.DB, id uuid.UUID, delta int) error
	// ActualizarTx writes only the columns named in c. Quantities move by
	// delta, never by overwrite, so a concurrent return is not lost.
	ActualizarTx(tx *gorm.DB, id uuid.UUID, c CambiosLote) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
}

// CambiosLote is a partial lot edit. Nil fields are left untouched.
// DeltaCantidad moves cantidad and cantidad_registrada together.
type CambiosLote struct {
	TipoMaterial  *string
	Estado        *string
	DeltaCantidad int
}

// Vacio reports whether c would change nothing.
func (c CambiosLote) Vacio() bool {
	return c.TipoMaterial == nil && c.Estado == nil && c.DeltaCantidad == 0
}

type inventarioRepo struct{ db *gorm.DB }

func NewInventarioRepository(db *gorm.DB) InventarioRepository { return &inventarioRepo{db: db} }

func (r *inventarioRepo) Create(ctx context.Context, l *model.LoteMaterial) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *inventarioRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.LoteMaterial, error) {
	var l model.LoteMaterial
	err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error
	return &l, err
}

func (r *inventarioRepo) List(ctx context.Context, filter InventarioFilter) ([]model.LoteMaterial, error) {
	q := r.db.WithContext(ctx).Model(&model.LoteMaterial{})
	if filter.Tipo != "" {
		q = q.Where("tipo_material = ?", filter.Tipo)
	}
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}
	var out []model.LoteMaterial
	err := q.Order("codigo ASC").Find(&out).Error
	return out, err
}

func (r *inventarioRepo) NextCodigo(ctx context.Context) (string, error) {
	var n int64
	if err := r.db.WithContext(ctx).Raw("SELECT nextval('inventario_codigo_seq')").Scan(&n).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("CIM-%04d", n), nil
}

func (r *inventarioRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.LoteMaterial, error) {
	var l model.LoteMaterial
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *inventarioRepo) ListDisponiblesForUpdateTx(tx *gorm.DB, tipo string) ([]model.LoteMaterial, error) {
	var out []model.LoteMaterial
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tipo_material = ? AND estado = ? AND cantidad > 0", tipo, model.LoteDisponible).
		Order("fecha_registro ASC, codigo ASC").
		Find(&out).Error
	return out, err
}

func (r *inventarioRepo) UpdateCantidadTx(tx *gorm.DB, id uuid.UUID, delta int) error {
	res := tx.Model(&model.LoteMaterial{}).
		Where("id = ?", id).
		Update("cantidad", gorm.Expr("cantidad + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *inventarioRepo) ActualizarTx(tx *gorm.DB, id uuid.UUID, c CambiosLote) error {
	if c.Vacio() {
		return nil
	}
	cols := map[string]interface{}{}
	if c.TipoMaterial != nil {
		cols["tipo_material"] = *c.TipoMaterial
	}
	if c.Estado != nil {
		cols["estado"] = *c.Estado
	}
	if c.DeltaCantidad != 0 {
		cols["cantidad"] = gorm.Expr("cantidad + ?", c.DeltaCantidad)
		cols["cantidad_registrada"] = gorm.Expr("cantidad_registrada + ?", c.DeltaCantidad)
	}
	res := tx.Model(&model.LoteMaterial{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *inventarioRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	res := tx.Delete(&model.LoteMaterial{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
