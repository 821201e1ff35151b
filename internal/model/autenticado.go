package model

import "time"

// Autenticado is one entry of the access allow-list. Emails are stored lower-cased.
type Autenticado struct {
	Email     string `gorm:"type:varchar(254);primaryKey"`
	CreatedAt time.Time
}

func (Autenticado) TableName() string { return "autenticados" }
