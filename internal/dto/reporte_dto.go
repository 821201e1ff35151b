package dto

import "github.com/shopspring/decimal"

type ReporteFilter struct {
	Desde string `form:"desde"`
	Hasta string `form:"hasta"`
}

// ReporteResponse is the income summary. Mensual is indexed January..December
// regardless of year.
type ReporteResponse struct {
	IngresoTotal     decimal.Decimal     `json:"ingreso_total"`
	ContratosActivos int                 `json:"contratos_activos"`
	UnidadesRentadas int                 `json:"unidades_rentadas"`
	TotalContratos   int                 `json:"total_contratos"`
	Mensual          [12]decimal.Decimal `json:"mensual"`
	Desde            string              `json:"desde,omitempty"`
	Hasta            string              `json:"hasta,omitempty"`
}

type EnviarReporteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Desde string `json:"desde" validate:"omitempty,datetime=2006-01-02"`
	Hasta string `json:"hasta" validate:"omitempty,datetime=2006-01-02"`
}
