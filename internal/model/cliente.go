package model

import (
	"time"

	"github.com/google/uuid"
)

type Cliente struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre    string    `gorm:"not null"`
	Telefono  string    `gorm:"type:varchar(30);not null"`
	Direccion *string
	Proyecto  string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Cliente) TableName() string { return "clientes" }
