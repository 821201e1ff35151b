package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contract statuses. The only transitions are Rentado -> Devuelto (return)
// and Devuelto -> Rentado (revert).
const (
	ContratoRentado  = "Rentado"
	ContratoDevuelto = "Devuelto"
)

// Contrato is a rental contract. Client fields are copied at creation time
// and are not kept in sync with the clientes table.
type Contrato struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Numero          string          `gorm:"type:varchar(20);uniqueIndex;not null"`
	ClienteID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ClienteNombre   string          `gorm:"not null"`
	ClienteTelefono string          `gorm:"type:varchar(30)"`
	Proyecto        string          `gorm:"not null"`
	FechaInicio     time.Time       `gorm:"not null;index"`
	FechaDevolucion time.Time       `gorm:"not null"`
	Estado          string          `gorm:"type:varchar(20);not null;default:'Rentado';index"`
	CostoTotal      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	UltimaReversion *time.Time
	Materiales      []ContratoMaterial `gorm:"foreignKey:ContratoID"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Contrato) TableName() string { return "contratos" }

// ContratoMaterial is one ordered line of a contract.
type ContratoMaterial struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ContratoID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Orden          int             `gorm:"not null"`
	TipoMaterial   string          `gorm:"type:varchar(40);not null"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	LoteOrigenID   *uuid.UUID      `gorm:"type:uuid;index"`
}

func (ContratoMaterial) TableName() string { return "contrato_materiales" }

func (m ContratoMaterial) Subtotal() decimal.Decimal {
	return m.PrecioUnitario.Mul(decimal.NewFromInt(int64(m.Cantidad)))
}
