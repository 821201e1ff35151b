package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cimbrasys/internal/dto"
	"cimbrasys/internal/metrics"
	"cimbrasys/internal/model"
	"cimbrasys/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AsignacionService moves material between lots and contracts. Each
// operation reads everything it needs before its first write, inside one
// transaction that the TxRunner replays on serialization conflicts.
type AsignacionService interface {
	RegistrarDevolucion(ctx context.Context, contratoID uuid.UUID) (*dto.ContratoResponse, error)
	RevertirDevolucion(ctx context.Context, contratoID uuid.UUID) (*dto.ContratoResponse, error)
	ListarDevoluciones(ctx context.Context, page, limit int) ([]dto.DevolucionResponse, int64, error)
}

type asignacionService struct {
	contratos    repository.ContratoRepository
	inventario   repository.InventarioRepository
	asignaciones repository.AsignacionRepository
	devoluciones repository.DevolucionRepository
	tx           repository.TxRunner
	cache        *ReporteCache
	now          func() time.Time
}

func NewAsignacionService(
	contratos repository.ContratoRepository,
	inventario repository.InventarioRepository,
	asignaciones repository.AsignacionRepository,
	devoluciones repository.DevolucionRepository,
	tx repository.TxRunner,
	cache *ReporteCache,
) AsignacionService {
	return &asignacionService{
		contratos:    contratos,
		inventario:   inventario,
		asignaciones: asignaciones,
		devoluciones: devoluciones,
		tx:           tx,
		cache:        cache,
		now:          time.Now,
	}
}

// ── Registrar devolución ──────────────────────────────────────────────────────

func (s *asignacionService) RegistrarDevolucion(ctx context.Context, contratoID uuid.UUID) (*dto.ContratoResponse, error) {
	var (
		contrato *model.Contrato
		detalle  []model.DetalleDevolucion
	)
	err := s.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		detalle = nil

		// read phase
		c, err := s.contratos.FindByIDForUpdateTx(tx, contratoID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return noEncontrado("contrato %s", contratoID)
			}
			return err
		}
		if c.Estado != model.ContratoRentado {
			return estadoInvalido("el contrato %s ya esta %s", c.Numero, c.Estado)
		}
		filas, err := s.asignaciones.ListByContratoNumeroForUpdateTx(tx, c.Numero)
		if err != nil {
			return err
		}
		lotes, err := s.bloquearLotes(tx, lotesDe(filas))
		if err != nil {
			return err
		}

		// decision
		restituir := make(map[uuid.UUID]int)
		for _, f := range filas {
			_, existe := lotes[f.LoteID]
			if !existe {
				log.Warn().
					Str("contrato", c.Numero).
					Str("lote_id", f.LoteID.String()).
					Int("cantidad", f.Cantidad).
					Msg("devolucion: lote de origen inexistente, se omite la linea")
			} else {
				restituir[f.LoteID] += f.Cantidad
			}
			detalle = append(detalle, model.DetalleDevolucion{
				LoteID:       f.LoteID.String(),
				TipoMaterial: f.TipoMaterial,
				Cantidad:     f.Cantidad,
				Restituido:   existe,
			})
		}

		// write phase
		if err := s.contratos.UpdateEstadoTx(tx, c.ID, model.ContratoDevuelto, nil); err != nil {
			return err
		}
		for _, id := range idsOrdenados(restituir) {
			if err := s.inventario.UpdateCantidadTx(tx, id, restituir[id]); err != nil {
				return err
			}
		}
		if err := s.asignaciones.DeleteByContratoNumeroTx(tx, c.Numero); err != nil {
			return err
		}
		c.Estado = model.ContratoDevuelto
		contrato = c
		return nil
	})
	metrics.Devoluciones.WithLabelValues("registrar", resultadoMetrica(traducirTx(err))).Inc()
	if err != nil {
		return nil, traducirTx(err)
	}

	s.cache.Invalidar(ctx)
	s.registrarHistorial(ctx, contrato, detalle)
	return contratoToResponse(contrato), nil
}

// registrarHistorial appends the returns history entry. The return itself is
// already committed, so a failure here is only logged. FechaDevolucion is left
// to the column default.
func (s *asignacionService) registrarHistorial(ctx context.Context, c *model.Contrato, detalle []model.DetalleDevolucion) {
	raw, err := json.Marshal(detalle)
	if err != nil {
		log.Error().Err(err).Str("contrato", c.Numero).Msg("devolucion: detalle no serializable")
		raw = []byte("[]")
	}
	d := &model.Devolucion{
		ContratoID:      c.ID,
		ContratoNumero:  c.Numero,
		ClienteNombre:   c.ClienteNombre,
		Materiales:      resumenMateriales(c.Materiales),
		Detalle:         raw,
	}
	if err := s.devoluciones.Create(ctx, d); err != nil {
		log.Error().Err(err).Str("contrato", c.Numero).Msg("devolucion: no se pudo registrar en el historial")
	}
}

// ── Revertir devolución ───────────────────────────────────────────────────────

func (s *asignacionService) RevertirDevolucion(ctx context.Context, contratoID uuid.UUID) (*dto.ContratoResponse, error) {
	var contrato *model.Contrato
	err := s.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		// read phase
		c, err := s.contratos.FindByIDForUpdateTx(tx, contratoID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return noEncontrado("contrato %s", contratoID)
			}
			return err
		}
		if c.Estado != model.ContratoDevuelto {
			return estadoInvalido("el contrato %s esta %s, no Devuelto", c.Numero, c.Estado)
		}

		requerido := make(map[uuid.UUID]int)
		var ids []uuid.UUID
		for _, m := range c.Materiales {
			if m.LoteOrigenID == nil {
				return noEncontrado("la linea %d de %s no tiene lote de origen", m.Orden, c.Numero)
			}
			if _, ok := requerido[*m.LoteOrigenID]; !ok {
				ids = append(ids, *m.LoteOrigenID)
			}
			requerido[*m.LoteOrigenID] += m.Cantidad
		}
		lotes, err := s.bloquearLotes(tx, ids)
		if err != nil {
			return err
		}

		// validation: every lot must exist and cover the full amount
		for _, id := range ids {
			lote, ok := lotes[id]
			if !ok {
				return noEncontrado("lote de origen %s", id)
			}
			if lote.Cantidad < requerido[id] {
				return &StockInsuficienteError{
					Material:   lote.TipoMaterial,
					Lote:       lote.Codigo,
					Disponible: lote.Cantidad,
					Requerido:  requerido[id],
				}
			}
		}

		// write phase
		ahora := s.now()
		if err := s.contratos.UpdateEstadoTx(tx, c.ID, model.ContratoRentado, &ahora); err != nil {
			return err
		}
		for _, id := range idsOrdenados(requerido) {
			if err := s.inventario.UpdateCantidadTx(tx, id, -requerido[id]); err != nil {
				return err
			}
		}
		if err := s.asignaciones.CreateTx(tx, asignacionesDe(c)); err != nil {
			return err
		}
		c.Estado = model.ContratoRentado
		c.UltimaReversion = &ahora
		contrato = c
		return nil
	})
	metrics.Devoluciones.WithLabelValues("revertir", resultadoMetrica(traducirTx(err))).Inc()
	if err != nil {
		return nil, traducirTx(err)
	}

	s.cache.Invalidar(ctx)
	return contratoToResponse(contrato), nil
}

func (s *asignacionService) ListarDevoluciones(ctx context.Context, page, limit int) ([]dto.DevolucionResponse, int64, error) {
	rows, total, err := s.devoluciones.List(ctx, repository.DevolucionFilter{Page: page, Limit: limit})
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.DevolucionResponse, 0, len(rows))
	for _, d := range rows {
		out = append(out, dto.DevolucionResponse{
			ID:              d.ID.String(),
			ContratoID:      d.ContratoID.String(),
			ContratoNumero:  d.ContratoNumero,
			ClienteNombre:   d.ClienteNombre,
			Materiales:      d.Materiales,
			FechaDevolucion: d.FechaDevolucion,
		})
	}
	return out, total, nil
}

// bloquearLotes locks each lot in ascending id order. Missing lots are
// absent from the result.
func (s *asignacionService) bloquearLotes(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*model.LoteMaterial, error) {
	orden := append([]uuid.UUID(nil), ids...)
	sort.Slice(orden, func(i, j int) bool { return orden[i].String() < orden[j].String() })

	out := make(map[uuid.UUID]*model.LoteMaterial, len(orden))
	for _, id := range orden {
		lote, err := s.inventario.FindByIDForUpdateTx(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		out[id] = lote
	}
	return out, nil
}

func lotesDe(filas []model.Asignacion) []uuid.UUID {
	vistos := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, f := range filas {
		if !vistos[f.LoteID] {
			vistos[f.LoteID] = true
			out = append(out, f.LoteID)
		}
	}
	return out
}

func idsOrdenados(m map[uuid.UUID]int) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// resumenMateriales renders "25 Tabla, 10 Barrote", one entry per type in
// line order.
func resumenMateriales(lineas []model.ContratoMaterial) string {
	totales := make(map[string]int)
	var tipos []string
	for _, l := range lineas {
		if _, ok := totales[l.TipoMaterial]; !ok {
			tipos = append(tipos, l.TipoMaterial)
		}
		totales[l.TipoMaterial] += l.Cantidad
	}
	partes := make([]string, 0, len(tipos))
	for _, t := range tipos {
		partes = append(partes, fmt.Sprintf("%d %s", totales[t], t))
	}
	return strings.Join(partes, ", ")
}
