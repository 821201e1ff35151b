package service

import (
	"context"
	"errors"
	"time"

	"cimbrasys/internal/dto"
	"cimbrasys/internal/model"
	"cimbrasys/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventarioService manages material lots. Quantities change here only by
// direct edit; rentals move them through AsignacionService and ContratoService.
type InventarioService interface {
	Registrar(ctx context.Context, req dto.CrearLoteRequest) (*dto.LoteResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.LoteResponse, error)
	Listar(ctx context.Context, filter dto.InventarioFilter) ([]dto.LoteResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarLoteRequest) (*dto.LoteResponse, error)
	Eliminar(ctx context.Context, id uuid.UUID) error
}

type inventarioService struct {
	repo         repository.InventarioRepository
	asignaciones repository.AsignacionRepository
	tx           repository.TxRunner
}

func NewInventarioService(repo repository.InventarioRepository, asignaciones repository.AsignacionRepository, tx repository.TxRunner) InventarioService {
	return &inventarioService{repo: repo, asignaciones: asignaciones, tx: tx}
}

func (s *inventarioService) Registrar(ctx context.Context, req dto.CrearLoteRequest) (*dto.LoteResponse, error) {
	if !model.TipoMaterialValido(req.TipoMaterial) {
		return nil, validacion("tipo de material desconocido: %q", req.TipoMaterial)
	}
	estado := req.Estado
	if estado == "" {
		estado = model.LoteDisponible
	}
	if !model.EstadoLoteValido(estado) {
		return nil, validacion("estado desconocido: %q", estado)
	}
	if req.Cantidad < 0 {
		return nil, validacion("la cantidad no puede ser negativa")
	}

	codigo, err := s.repo.NextCodigo(ctx)
	if err != nil {
		return nil, err
	}
	fecha := time.Now()
	if req.FechaRegistro != nil {
		fecha = *req.FechaRegistro
	}
	l := &model.LoteMaterial{
		Codigo:             codigo,
		TipoMaterial:       req.TipoMaterial,
		Estado:             estado,
		Cantidad:           req.Cantidad,
		CantidadRegistrada: req.Cantidad,
		FechaRegistro:      fecha,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return loteToResponse(l), nil
}

func (s *inventarioService) Obtener(ctx context.Context, id uuid.UUID) (*dto.LoteResponse, error) {
	l, err := s.buscar(ctx, id)
	if err != nil {
		return nil, err
	}
	return loteToResponse(l), nil
}

// Listar applies exact tipo/estado filters, then matches q against code,
// type and status ignoring case and accents.
func (s *inventarioService) Listar(ctx context.Context, filter dto.InventarioFilter) ([]dto.LoteResponse, error) {
	lotes, err := s.repo.List(ctx, repository.InventarioFilter{Tipo: filter.Tipo, Estado: filter.Estado})
	if err != nil {
		return nil, err
	}
	out := make([]dto.LoteResponse, 0, len(lotes))
	for i := range lotes {
		l := &lotes[i]
		if coincide(filter.Q, l.Codigo, l.TipoMaterial, l.Estado) {
			out = append(out, *loteToResponse(l))
		}
	}
	return out, nil
}

// Actualizar edits a lot under its row lock. Only the requested columns are
// written. A quantity edit moves CantidadRegistrada by the same delta so
// outstanding allocations stay accounted for, and the type of a lot that
// still backs a rental cannot change.
func (s *inventarioService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarLoteRequest) (*dto.LoteResponse, error) {
	if req.TipoMaterial != nil && !model.TipoMaterialValido(*req.TipoMaterial) {
		return nil, validacion("tipo de material desconocido: %q", *req.TipoMaterial)
	}
	if req.Estado != nil && !model.EstadoLoteValido(*req.Estado) {
		return nil, validacion("estado desconocido: %q", *req.Estado)
	}
	if req.Cantidad != nil && *req.Cantidad < 0 {
		return nil, validacion("la cantidad no puede ser negativa")
	}

	var out *model.LoteMaterial
	err := s.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		l, err := s.bloquear(tx, id)
		if err != nil {
			return err
		}
		var c repository.CambiosLote
		if req.TipoMaterial != nil && *req.TipoMaterial != l.TipoMaterial {
			enUso, err := s.asignaciones.ExistsByLoteTx(tx, id)
			if err != nil {
				return err
			}
			if enUso {
				return estadoInvalido("el lote %s esta asignado a un contrato rentado, no puede cambiar de tipo", l.Codigo)
			}
			c.TipoMaterial = req.TipoMaterial
		}
		if req.Estado != nil && *req.Estado != l.Estado {
			c.Estado = req.Estado
		}
		if req.Cantidad != nil {
			c.DeltaCantidad = *req.Cantidad - l.Cantidad
		}
		if err := s.repo.ActualizarTx(tx, id, c); err != nil {
			return err
		}
		if out, err = s.repo.FindByIDForUpdateTx(tx, id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, traducirTx(err)
	}
	return loteToResponse(out), nil
}

// Eliminar refuses to delete a lot that still backs a rented contract line.
func (s *inventarioService) Eliminar(ctx context.Context, id uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.bloquear(tx, id); err != nil {
			return err
		}
		enUso, err := s.asignaciones.ExistsByLoteTx(tx, id)
		if err != nil {
			return err
		}
		if enUso {
			return estadoInvalido("el lote esta asignado a un contrato rentado")
		}
		if err := s.repo.DeleteTx(tx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return noEncontrado("lote %s", id)
			}
			return err
		}
		return nil
	})
	return traducirTx(err)
}

func (s *inventarioService) bloquear(tx *gorm.DB, id uuid.UUID) (*model.LoteMaterial, error) {
	l, err := s.repo.FindByIDForUpdateTx(tx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noEncontrado("lote %s", id)
		}
		return nil, err
	}
	return l, nil
}

func (s *inventarioService) buscar(ctx context.Context, id uuid.UUID) (*model.LoteMaterial, error) {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noEncontrado("lote %s", id)
		}
		return nil, err
	}
	return l, nil
}

func loteToResponse(l *model.LoteMaterial) *dto.LoteResponse {
	return &dto.LoteResponse{
		ID:                 l.ID.String(),
		Codigo:             l.Codigo,
		TipoMaterial:       l.TipoMaterial,
		Estado:             l.Estado,
		Cantidad:           l.Cantidad,
		CantidadRegistrada: l.CantidadRegistrada,
		FechaRegistro:      l.FechaRegistro,
	}
}
