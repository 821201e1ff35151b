package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"cimbrasys/internal/config"
	"cimbrasys/internal/dto"
	"cimbrasys/internal/infra"
	"cimbrasys/internal/metrics"
	"cimbrasys/internal/model"
	"cimbrasys/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const fechaLayout = "2006-01-02"

type ContratoService interface {
	Crear(ctx context.Context, req dto.CrearContratoRequest) (*dto.ContratoResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.ContratoResponse, error)
	Buscar(ctx context.Context, filter dto.ContratoFilter) ([]dto.ContratoResponse, error)
	// ContratoPDF renders the printable contract; the string is its number.
	ContratoPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error)
	ExportarPDF(ctx context.Context, filter dto.ContratoFilter) ([]byte, error)
	ExportarCSV(ctx context.Context, filter dto.ContratoFilter) ([]byte, error)
}

type contratoService struct {
	contratos     repository.ContratoRepository
	clientes      repository.ClienteRepository
	inventario    repository.InventarioRepository
	asignaciones  repository.AsignacionRepository
	tx            repository.TxRunner
	cache         *ReporteCache
	diasRenta     int
	precioDefault decimal.Decimal
	now           func() time.Time
}

func NewContratoService(
	contratos repository.ContratoRepository,
	clientes repository.ClienteRepository,
	inventario repository.InventarioRepository,
	asignaciones repository.AsignacionRepository,
	tx repository.TxRunner,
	cache *ReporteCache,
	cfg *config.Config,
) ContratoService {
	return &contratoService{
		contratos:     contratos,
		clientes:      clientes,
		inventario:    inventario,
		asignaciones:  asignaciones,
		tx:            tx,
		cache:         cache,
		diasRenta:     cfg.DiasRenta,
		precioDefault: decimal.NewFromInt(int64(cfg.PrecioUnitarioDefault)),
		now:           time.Now,
	}
}

// lineaValidada is a request line after validation, before lot selection.
type lineaValidada struct {
	tipo     string
	cantidad int
	precio   decimal.Decimal
	loteID   *uuid.UUID
}

// ── Crear ─────────────────────────────────────────────────────────────────────
// Creation reserves stock in the same transaction that writes the contract:
//   1. validate lines and resolve the client (outside the tx)
//   2. read phase: lock the pinned lots and the Disponible lots of every
//      requested type, then bind each line to one source lot
//   3. write phase: contract + lines, lot decrements, allocation rows
// A line that no single lot can cover aborts the whole contract.

func (s *contratoService) Crear(ctx context.Context, req dto.CrearContratoRequest) (*dto.ContratoResponse, error) {
	resp, err := s.crear(ctx, req)
	metrics.ContratosCreados.WithLabelValues(resultadoMetrica(err)).Inc()
	return resp, err
}

func (s *contratoService) crear(ctx context.Context, req dto.CrearContratoRequest) (*dto.ContratoResponse, error) {
	clienteID, err := uuid.Parse(req.ClienteID)
	if err != nil {
		return nil, validacion("cliente_id invalido")
	}
	lineas, err := s.validarLineas(req.Materiales)
	if err != nil {
		return nil, err
	}
	cliente, err := s.clientes.FindByID(ctx, clienteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noEncontrado("cliente %s", clienteID)
		}
		return nil, err
	}

	inicio := s.now()
	if req.FechaInicio != nil {
		inicio = *req.FechaInicio
	}

	var contrato model.Contrato
	txErr := s.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		origenes, lotes, err := s.seleccionarLotes(tx, lineas)
		if err != nil {
			return err
		}

		numero, err := s.contratos.NextNumeroTx(tx, inicio.Year())
		if err != nil {
			return err
		}
		contrato = model.Contrato{
			ID:              uuid.New(),
			Numero:          numero,
			ClienteID:       cliente.ID,
			ClienteNombre:   cliente.Nombre,
			ClienteTelefono: cliente.Telefono,
			Proyecto:        cliente.Proyecto,
			FechaInicio:     inicio,
			FechaDevolucion: inicio.AddDate(0, 0, s.diasRenta),
			Estado:          model.ContratoRentado,
		}
		total := decimal.Zero
		for i, l := range lineas {
			origen := origenes[i]
			m := model.ContratoMaterial{
				ID:             uuid.New(),
				ContratoID:     contrato.ID,
				Orden:          i + 1,
				TipoMaterial:   l.tipo,
				Cantidad:       l.cantidad,
				PrecioUnitario: l.precio,
				LoteOrigenID:   &origen,
			}
			total = total.Add(m.Subtotal())
			contrato.Materiales = append(contrato.Materiales, m)
		}
		contrato.CostoTotal = total

		if err := s.contratos.CreateTx(tx, &contrato); err != nil {
			return err
		}
		for _, id := range lotes {
			if err := s.inventario.UpdateCantidadTx(tx, id.id, -id.cantidad); err != nil {
				return err
			}
		}
		return s.asignaciones.CreateTx(tx, asignacionesDe(&contrato))
	})
	if txErr != nil {
		return nil, traducirTx(txErr)
	}

	s.cache.Invalidar(ctx)
	return contratoToResponse(&contrato), nil
}

func (s *contratoService) validarLineas(reqs []dto.LineaContratoRequest) ([]lineaValidada, error) {
	if len(reqs) == 0 {
		return nil, validacion("el contrato debe incluir al menos un material")
	}
	uno := decimal.NewFromInt(1)
	out := make([]lineaValidada, 0, len(reqs))
	for i, r := range reqs {
		if !model.TipoMaterialValido(r.TipoMaterial) {
			return nil, validacion("linea %d: tipo de material desconocido %q", i+1, r.TipoMaterial)
		}
		if r.Cantidad < 1 {
			return nil, validacion("linea %d: la cantidad debe ser al menos 1", i+1)
		}
		precio := s.precioDefault
		if r.PrecioUnitario != nil {
			precio = *r.PrecioUnitario
		}
		if precio.LessThan(uno) {
			return nil, validacion("linea %d: el precio unitario debe ser al menos 1", i+1)
		}
		l := lineaValidada{tipo: r.TipoMaterial, cantidad: r.Cantidad, precio: precio}
		if r.LoteID != nil && *r.LoteID != "" {
			id, err := uuid.Parse(*r.LoteID)
			if err != nil {
				return nil, validacion("linea %d: lote_id invalido", i+1)
			}
			l.loteID = &id
		}
		out = append(out, l)
	}
	return out, nil
}

type reserva struct {
	id       uuid.UUID
	cantidad int
}

// seleccionarLotes performs every read of Crear. It returns the source lot
// of each line and the per-lot totals to subtract, in first-use order.
// Each lot is read once, but a pinned lot is checked against every line
// that names it.
func (s *contratoService) seleccionarLotes(tx *gorm.DB, lineas []lineaValidada) ([]uuid.UUID, []reserva, error) {
	restante := make(map[uuid.UUID]int)
	leidos := make(map[uuid.UUID]model.LoteMaterial)
	candidatos := make(map[string][]uuid.UUID)

	for i, l := range lineas {
		if l.loteID != nil {
			lote, ok := leidos[*l.loteID]
			if !ok {
				encontrado, err := s.inventario.FindByIDForUpdateTx(tx, *l.loteID)
				if err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return nil, nil, noEncontrado("lote %s", *l.loteID)
					}
					return nil, nil, err
				}
				lote = *encontrado
				leidos[lote.ID] = lote
				restante[lote.ID] = lote.Cantidad
			}
			if lote.TipoMaterial != l.tipo {
				return nil, nil, validacion("linea %d: el lote %s es de %s, no de %s", i+1, lote.Codigo, lote.TipoMaterial, l.tipo)
			}
			if lote.Estado != model.LoteDisponible {
				return nil, nil, estadoInvalido("linea %d: el lote %s esta %s", i+1, lote.Codigo, lote.Estado)
			}
			continue
		}
		if _, ok := candidatos[l.tipo]; ok {
			continue
		}
		disponibles, err := s.inventario.ListDisponiblesForUpdateTx(tx, l.tipo)
		if err != nil {
			return nil, nil, err
		}
		ids := make([]uuid.UUID, 0, len(disponibles))
		for _, d := range disponibles {
			ids = append(ids, d.ID)
			if _, ok := leidos[d.ID]; !ok {
				leidos[d.ID] = d
				restante[d.ID] = d.Cantidad
			}
		}
		candidatos[l.tipo] = ids
	}

	origenes := make([]uuid.UUID, len(lineas))
	var reservas []reserva
	indice := make(map[uuid.UUID]int)
	for i, l := range lineas {
		var elegido uuid.UUID
		if l.loteID != nil {
			if restante[*l.loteID] < l.cantidad {
				return nil, nil, &StockInsuficienteError{
					Material: l.tipo, Lote: leidos[*l.loteID].Codigo,
					Disponible: restante[*l.loteID], Requerido: l.cantidad,
				}
			}
			elegido = *l.loteID
		} else {
			mejor := 0
			for _, id := range candidatos[l.tipo] {
				if restante[id] >= l.cantidad {
					elegido = id
					break
				}
				if restante[id] > mejor {
					mejor = restante[id]
				}
			}
			if elegido == uuid.Nil {
				return nil, nil, &StockInsuficienteError{Material: l.tipo, Disponible: mejor, Requerido: l.cantidad}
			}
		}
		restante[elegido] -= l.cantidad
		origenes[i] = elegido
		if j, ok := indice[elegido]; ok {
			reservas[j].cantidad += l.cantidad
		} else {
			indice[elegido] = len(reservas)
			reservas = append(reservas, reserva{id: elegido, cantidad: l.cantidad})
		}
	}
	return origenes, reservas, nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *contratoService) Obtener(ctx context.Context, id uuid.UUID) (*dto.ContratoResponse, error) {
	c, err := s.contratos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noEncontrado("contrato %s", id)
		}
		return nil, err
	}
	return contratoToResponse(c), nil
}

// Buscar matches q against number, client name and project, ignoring case
// and accents. Results are newest first.
func (s *contratoService) Buscar(ctx context.Context, filter dto.ContratoFilter) ([]dto.ContratoResponse, error) {
	contratos, err := s.buscarModelos(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ContratoResponse, 0, len(contratos))
	for i := range contratos {
		out = append(out, *contratoToResponse(&contratos[i]))
	}
	return out, nil
}

func (s *contratoService) buscarModelos(ctx context.Context, filter dto.ContratoFilter) ([]model.Contrato, error) {
	if filter.Estado != "" && filter.Estado != model.ContratoRentado && filter.Estado != model.ContratoDevuelto {
		return nil, validacion("estado desconocido: %q", filter.Estado)
	}
	desde, hasta, err := parseRango(filter.Desde, filter.Hasta)
	if err != nil {
		return nil, err
	}
	contratos, err := s.contratos.List(ctx, repository.ContratoFilter{Estado: filter.Estado, Desde: desde, Hasta: hasta})
	if err != nil {
		return nil, err
	}
	out := contratos[:0]
	for _, c := range contratos {
		if coincide(filter.Q, c.Numero, c.ClienteNombre, c.Proyecto) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *contratoService) ContratoPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	c, err := s.contratos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", noEncontrado("contrato %s", id)
		}
		return nil, "", err
	}
	pdf, err := infra.GenerarContratoPDF(c)
	return pdf, c.Numero, err
}

func (s *contratoService) ExportarPDF(ctx context.Context, filter dto.ContratoFilter) ([]byte, error) {
	contratos, err := s.buscarModelos(ctx, filter)
	if err != nil {
		return nil, err
	}
	return infra.GenerarListadoPDF(tituloListado(filter), contratos)
}

func (s *contratoService) ExportarCSV(ctx context.Context, filter dto.ContratoFilter) ([]byte, error) {
	contratos, err := s.buscarModelos(ctx, filter)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := infra.ExportarContratosCSV(&buf, contratos); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func tituloListado(f dto.ContratoFilter) string {
	partes := []string{"Contratos"}
	if f.Estado != "" {
		partes = append(partes, f.Estado)
	}
	if f.Desde != "" || f.Hasta != "" {
		partes = append(partes, strings.TrimSpace(f.Desde+" a "+f.Hasta))
	}
	if f.Q != "" {
		partes = append(partes, "\""+f.Q+"\"")
	}
	return strings.Join(partes, " - ")
}

// parseRango parses optional YYYY-MM-DD bounds in local time.
func parseRango(desde, hasta string) (*time.Time, *time.Time, error) {
	var d, h *time.Time
	if desde != "" {
		t, err := time.ParseInLocation(fechaLayout, desde, time.Local)
		if err != nil {
			return nil, nil, validacion("fecha desde invalida: %q", desde)
		}
		d = &t
	}
	if hasta != "" {
		t, err := time.ParseInLocation(fechaLayout, hasta, time.Local)
		if err != nil {
			return nil, nil, validacion("fecha hasta invalida: %q", hasta)
		}
		h = &t
	}
	if d != nil && h != nil && h.Before(*d) {
		return nil, nil, validacion("el rango de fechas esta invertido")
	}
	return d, h, nil
}

func asignacionesDe(c *model.Contrato) []model.Asignacion {
	var out []model.Asignacion
	for _, m := range c.Materiales {
		if m.LoteOrigenID == nil {
			continue
		}
		out = append(out, model.Asignacion{
			ContratoID:         c.ID,
			ContratoNumero:     c.Numero,
			ContratoMaterialID: m.ID,
			LoteID:             *m.LoteOrigenID,
			TipoMaterial:       m.TipoMaterial,
			Cantidad:           m.Cantidad,
		})
	}
	return out
}

func contratoToResponse(c *model.Contrato) *dto.ContratoResponse {
	resp := &dto.ContratoResponse{
		ID:              c.ID.String(),
		Numero:          c.Numero,
		ClienteID:       c.ClienteID.String(),
		ClienteNombre:   c.ClienteNombre,
		ClienteTelefono: c.ClienteTelefono,
		Proyecto:        c.Proyecto,
		FechaInicio:     c.FechaInicio,
		FechaDevolucion: c.FechaDevolucion,
		Estado:          c.Estado,
		CostoTotal:      c.CostoTotal,
		UltimaReversion: c.UltimaReversion,
		CreatedAt:       c.CreatedAt,
		Materiales:      make([]dto.LineaContratoResponse, 0, len(c.Materiales)),
	}
	for _, m := range c.Materiales {
		linea := dto.LineaContratoResponse{
			TipoMaterial:   m.TipoMaterial,
			Cantidad:       m.Cantidad,
			PrecioUnitario: m.PrecioUnitario,
			Subtotal:       m.Subtotal(),
		}
		if m.LoteOrigenID != nil {
			id := m.LoteOrigenID.String()
			linea.LoteOrigenID = &id
		}
		resp.Materiales = append(resp.Materiales, linea)
	}
	return resp
}
