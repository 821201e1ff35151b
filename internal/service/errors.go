package service

import (
	"errors"
	"fmt"

	"cimbrasys/internal/repository"

	"gorm.io/gorm"
)

// Domain errors. Handlers map them to HTTP status codes; services wrap them
// with context using %w.
var (
	ErrValidation              = errors.New("datos invalidos")
	ErrAuthenticationFailed    = errors.New("credenciales invalidas")
	ErrNotAuthorized           = errors.New("acceso denegado: el correo no esta autorizado")
	ErrLookupFailed            = errors.New("no se pudo verificar la autorizacion, intente de nuevo")
	ErrReferenceNotFound       = errors.New("referencia no encontrada")
	ErrInvalidStateTransition  = errors.New("transicion de estado invalida")
	ErrInsufficientSourceStock = errors.New("stock insuficiente en el lote de origen")
	ErrConcurrentModification  = errors.New("el registro fue modificado por otra operacion, intente de nuevo")
)

// StockInsuficienteError names the material that could not be covered.
type StockInsuficienteError struct {
	Material   string
	Lote       string
	Disponible int
	Requerido  int
}

func (e *StockInsuficienteError) Error() string {
	if e.Lote == "" {
		return fmt.Sprintf("stock insuficiente de %s: se requieren %d, disponibles %d", e.Material, e.Requerido, e.Disponible)
	}
	return fmt.Sprintf("stock insuficiente de %s en el lote %s: se requieren %d, disponibles %d",
		e.Material, e.Lote, e.Requerido, e.Disponible)
}

func (e *StockInsuficienteError) Is(target error) bool { return target == ErrInsufficientSourceStock }

func validacion(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func noEncontrado(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrReferenceNotFound, fmt.Sprintf(format, args...))
}

func estadoInvalido(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidStateTransition, fmt.Sprintf(format, args...))
}

// traducirTx converts storage errors escaping a transaction into domain errors.
func traducirTx(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrConflict):
		return ErrConcurrentModification
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrReferenceNotFound, err)
	}
	return err
}

// resultadoMetrica classifies an outcome for the resultado metric label.
func resultadoMetrica(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalido"
	case errors.Is(err, ErrInsufficientSourceStock):
		return "stock_insuficiente"
	case errors.Is(err, ErrInvalidStateTransition):
		return "estado_invalido"
	case errors.Is(err, ErrConcurrentModification):
		return "conflicto"
	case errors.Is(err, ErrReferenceNotFound):
		return "no_encontrado"
	}
	return "error"
}
