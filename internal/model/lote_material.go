package model

import (
	"time"

	"github.com/google/uuid"
)

// Material types rented out.
const (
	TipoTabla   = "Tabla"
	TipoBarrote = "Barrote"
	TipoPedazo  = "Pedazo de barrote"
)

// Lot statuses.
const (
	LoteDisponible = "Disponible"
	LoteRentado    = "Rentado"
	LoteDanado     = "Dañado"
	LoteExtraviado = "Extraviado"
)

var TiposMaterial = []string{TipoTabla, TipoBarrote, TipoPedazo}

var EstadosLote = []string{LoteDisponible, LoteRentado, LoteDanado, LoteExtraviado}

// LoteMaterial is one inventory lot. Cantidad is what is on hand right now;
// CantidadRegistrada is the registered total, so that
// Cantidad + outstanding asignaciones == CantidadRegistrada.
type LoteMaterial struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Codigo             string    `gorm:"type:varchar(20);uniqueIndex;not null"`
	TipoMaterial       string    `gorm:"type:varchar(40);not null;index"`
	Estado             string    `gorm:"type:varchar(20);not null;default:'Disponible'"`
	Cantidad           int       `gorm:"not null;default:0;check:chk_inventario_cantidad,cantidad >= 0"`
	CantidadRegistrada int       `gorm:"not null;default:0"`
	FechaRegistro      time.Time `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (LoteMaterial) TableName() string { return "inventario" }

func TipoMaterialValido(tipo string) bool {
	for _, t := range TiposMaterial {
		if t == tipo {
			return true
		}
	}
	return false
}

func EstadoLoteValido(estado string) bool {
	for _, e := range EstadosLote {
		if e == estado {
			return true
		}
	}
	return false
}
