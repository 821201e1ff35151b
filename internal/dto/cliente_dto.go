package dto

import "time"

type ClienteRequest struct {
	Nombre    string  `json:"nombre"    validate:"required,max=200"`
	Telefono  string  `json:"telefono"  validate:"required,max=30"`
	Direccion *string `json:"direccion" validate:"omitempty,max=300"`
	Proyecto  string  `json:"proyecto"  validate:"required,max=200"`
}

type ClienteResponse struct {
	ID        string    `json:"id"`
	Nombre    string    `json:"nombre"`
	Telefono  string    `json:"telefono"`
	Direccion *string   `json:"direccion"`
	Proyecto  string    `json:"proyecto"`
	CreatedAt time.Time `json:"created_at"`
}
