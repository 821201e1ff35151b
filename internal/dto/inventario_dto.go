package dto

import "time"

type CrearLoteRequest struct {
	TipoMaterial  string     `json:"tipo_material"  validate:"required"`
	Estado        string     `json:"estado"`
	Cantidad      int        `json:"cantidad"       validate:"min=0"`
	FechaRegistro *time.Time `json:"fecha_registro"`
}

// ActualizarLoteRequest is a partial update; nil fields are left untouched.
type ActualizarLoteRequest struct {
	TipoMaterial *string `json:"tipo_material"`
	Estado       *string `json:"estado"`
	Cantidad     *int    `json:"cantidad" validate:"omitempty,min=0"`
}

// InventarioFilter holds query params for GET /v1/inventario.
type InventarioFilter struct {
	Q      string `form:"q"`
	Tipo   string `form:"tipo"`
	Estado string `form:"estado"`
}

type LoteResponse struct {
	ID                 string    `json:"id"`
	Codigo             string    `json:"codigo"`
	TipoMaterial       string    `json:"tipo_material"`
	Estado             string    `json:"estado"`
	Cantidad           int       `json:"cantidad"`
	CantidadRegistrada int       `json:"cantidad_registrada"`
	FechaRegistro      time.Time `json:"fecha_registro"`
}
