package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineaContratoRequest is one material line. PrecioUnitario defaults to the
// configured price when omitted. LoteID pins the line to a specific lot.
type LineaContratoRequest struct {
	TipoMaterial   string           `json:"tipo_material"   validate:"required"`
	Cantidad       int              `json:"cantidad"        validate:"required,min=1"`
	PrecioUnitario *decimal.Decimal `json:"precio_unitario"`
	LoteID         *string          `json:"lote_id"         validate:"omitempty,uuid"`
}

type CrearContratoRequest struct {
	ClienteID   string                 `json:"cliente_id"   validate:"required,uuid"`
	FechaInicio *time.Time             `json:"fecha_inicio"`
	Materiales  []LineaContratoRequest `json:"materiales"   validate:"required,min=1,dive"`
}

// ContratoFilter holds query params for GET /v1/contratos and its exports.
// Desde/Hasta are YYYY-MM-DD, inclusive, applied to fecha_inicio.
type ContratoFilter struct {
	Q      string `form:"q"`
	Estado string `form:"estado"`
	Desde  string `form:"desde"`
	Hasta  string `form:"hasta"`
}

type LineaContratoResponse struct {
	TipoMaterial   string          `json:"tipo_material"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	LoteOrigenID   *string         `json:"lote_origen_id"`
}

type ContratoResponse struct {
	ID              string                  `json:"id"`
	Numero          string                  `json:"numero"`
	ClienteID       string                  `json:"cliente_id"`
	ClienteNombre   string                  `json:"cliente_nombre"`
	ClienteTelefono string                  `json:"cliente_telefono"`
	Proyecto        string                  `json:"proyecto"`
	FechaInicio     time.Time               `json:"fecha_inicio"`
	FechaDevolucion time.Time               `json:"fecha_devolucion"`
	Estado          string                  `json:"estado"`
	CostoTotal      decimal.Decimal         `json:"costo_total"`
	UltimaReversion *time.Time              `json:"ultima_reversion,omitempty"`
	Materiales      []LineaContratoResponse `json:"materiales"`
	CreatedAt       time.Time               `json:"created_at"`
}

type DevolucionResponse struct {
	ID              string    `json:"id"`
	ContratoID      string    `json:"contrato_id"`
	ContratoNumero  string    `json:"contrato_numero"`
	ClienteNombre   string    `json:"cliente_nombre"`
	Materiales      string    `json:"materiales"`
	FechaDevolucion time.Time `json:"fecha_devolucion"`
}
