package model

import (
	"time"

	"github.com/google/uuid"
)

// Asignacion links a Rentado contract line to the lot it was taken from.
// Rows exist only while the contract is Rentado.
type Asignacion struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ContratoID         uuid.UUID `gorm:"type:uuid;not null;index"`
	ContratoNumero     string    `gorm:"type:varchar(20);not null;index"`
	ContratoMaterialID uuid.UUID `gorm:"type:uuid;not null"`
	LoteID             uuid.UUID `gorm:"type:uuid;not null;index"`
	TipoMaterial       string    `gorm:"type:varchar(40);not null"`
	Cantidad           int       `gorm:"not null"`
	CreatedAt          time.Time
}

func (Asignacion) TableName() string { return "asignaciones" }
