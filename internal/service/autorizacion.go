package service

import (
	"context"
	"errors"
	"strings"

	"cimbrasys/internal/repository"

	"gorm.io/gorm"
)

// Veredicto is the outcome of an allow-list check.
type Veredicto int

const (
	// Autorizado: the email is on the allow-list.
	Autorizado Veredicto = iota
	// Denegado: the email is not listed. Hard deny; the session must end.
	Denegado
	// ConsultaFallida: the lookup itself failed. The caller may retry.
	ConsultaFallida
)

func (v Veredicto) String() string {
	switch v {
	case Autorizado:
		return "autorizado"
	case Denegado:
		return "denegado"
	case ConsultaFallida:
		return "consulta_fallida"
	default:
		return "desconocido"
	}
}

// AutorizacionGate checks an authenticated email against the allow-list.
// It only reads: nothing is created, cached or logged per email.
type AutorizacionGate interface {
	Verificar(ctx context.Context, email string) (Veredicto, error)
}

type autorizacionGate struct {
	repo repository.AutenticadoRepository
}

func NewAutorizacionGate(repo repository.AutenticadoRepository) AutorizacionGate {
	return &autorizacionGate{repo: repo}
}

// Verificar returns the error only together with ConsultaFallida.
func (g *autorizacionGate) Verificar(ctx context.Context, email string) (Veredicto, error) {
	if strings.TrimSpace(email) == "" {
		return Denegado, nil
	}
	_, err := g.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return Autorizado, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Denegado, nil
	default:
		return ConsultaFallida, err
	}
}
