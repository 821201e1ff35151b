package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Devolucion is an append-only entry of the returns history.
type Devolucion struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ContratoID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ContratoNumero string    `gorm:"type:varchar(20);not null"`
	ClienteNombre  string    `gorm:"not null"`
	// Materiales is a human readable summary, e.g. "25 Tabla, 10 Barrote".
	Materiales      string         `gorm:"not null"`
	Detalle         datatypes.JSON `gorm:"type:jsonb"`
	FechaDevolucion time.Time      `gorm:"not null;default:now();index"`
}

func (Devolucion) TableName() string { return "devoluciones" }

// DetalleDevolucion is one element of Devolucion.Detalle.
type DetalleDevolucion struct {
	LoteID       string `json:"lote_id"`
	TipoMaterial string `json:"tipo_material"`
	Cantidad     int    `json:"cantidad"`
	Restituido   bool   `json:"restituido"`
}
