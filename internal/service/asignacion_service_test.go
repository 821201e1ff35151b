package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cimbrasys/internal/model"
	"cimbrasys/internal/repository"
	"cimbrasys/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevolucion_IdaYVuelta(t *testing.T) {
	f := newFixture(t)
	tablas := f.store.SeedLote("CIM-01", model.TipoTabla, 100)
	barrotes := f.store.SeedLote("CIM-02", model.TipoBarrote, 40)
	c := f.rentar(t, linea(model.TipoTabla, 25), linea(model.TipoBarrote, 10))
	id := mustParse(t, c.ID)
	ctx := context.Background()

	antes := forma(f.store.Asignaciones(c.Numero))
	require.Len(t, antes, 2)

	dev, err := f.asignaciones.RegistrarDevolucion(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ContratoDevuelto, dev.Estado)
	assert.Equal(t, 100, f.store.Lote(tablas.ID).Cantidad)
	assert.Equal(t, 40, f.store.Lote(barrotes.ID).Cantidad)
	assert.Empty(t, f.store.Asignaciones(c.Numero))

	historial := f.store.Devoluciones()
	require.Len(t, historial, 1)
	assert.Equal(t, "25 Tabla, 10 Barrote", historial[0].Materiales)
	assert.Equal(t, c.Numero, historial[0].ContratoNumero)

	rev, err := f.asignaciones.RevertirDevolucion(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ContratoRentado, rev.Estado)
	assert.NotNil(t, rev.UltimaReversion)
	assert.Equal(t, 75, f.store.Lote(tablas.ID).Cantidad)
	assert.Equal(t, 30, f.store.Lote(barrotes.ID).Cantidad)
	assert.Equal(t, antes, forma(f.store.Asignaciones(c.Numero)))

	// A second return after the revert conserves stock again.
	_, err = f.asignaciones.RegistrarDevolucion(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 100, f.store.Lote(tablas.ID).Cantidad)
	assert.NotNil(t, f.store.Contrato(id).UltimaReversion)
}

func TestRegistrarDevolucion_EstadoInvalido(t *testing.T) {
	f := newFixture(t)
	f.store.SeedLote("CIM-01", model.TipoTabla, 10)
	c := f.rentar(t, linea(model.TipoTabla, 5))
	id := mustParse(t, c.ID)

	_, err := f.asignaciones.RegistrarDevolucion(context.Background(), id)
	require.NoError(t, err)
	_, err = f.asignaciones.RegistrarDevolucion(context.Background(), id)
	assert.ErrorIs(t, err, service.ErrInvalidStateTransition)

	_, err = f.asignaciones.RegistrarDevolucion(context.Background(), uuid.New())
	assert.ErrorIs(t, err, service.ErrReferenceNotFound)
}

func TestRegistrarDevolucion_LoteHuerfanoSeOmite(t *testing.T) {
	f := newFixture(t)
	tablas := f.store.SeedLote("CIM-01", model.TipoTabla, 50)
	barrotes := f.store.SeedLote("CIM-02", model.TipoBarrote, 50)
	c := f.rentar(t, linea(model.TipoTabla, 20), linea(model.TipoBarrote, 5))
	f.store.DeleteLote(barrotes.ID)

	dev, err := f.asignaciones.RegistrarDevolucion(context.Background(), mustParse(t, c.ID))
	require.NoError(t, err)
	assert.Equal(t, model.ContratoDevuelto, dev.Estado)
	assert.Equal(t, 50, f.store.Lote(tablas.ID).Cantidad)
	assert.Empty(t, f.store.Asignaciones(c.Numero))

	historial := f.store.Devoluciones()
	require.Len(t, historial, 1)
	var detalle []model.DetalleDevolucion
	require.NoError(t, json.Unmarshal(historial[0].Detalle, &detalle))
	require.Len(t, detalle, 2)
	restituidos := map[string]bool{}
	for _, d := range detalle {
		restituidos[d.TipoMaterial] = d.Restituido
	}
	assert.True(t, restituidos[model.TipoTabla])
	assert.False(t, restituidos[model.TipoBarrote])
}

func TestRegistrarDevolucion_HistorialFallidoNoRevierte(t *testing.T) {
	f := newFixture(t)
	lote := f.store.SeedLote("CIM-01", model.TipoTabla, 10)
	c := f.rentar(t, linea(model.TipoTabla, 4))

	repo := f.store.DevolucionesRepo()
	repo.Fail = errors.New("disco lleno")
	svc := service.NewAsignacionService(f.store.Contratos(), f.store.Inventario(), f.store.AsignacionesRepo(),
		repo, f.store.TxRunner(3), service.NewReporteCache(nil, 0))

	_, err := svc.RegistrarDevolucion(context.Background(), mustParse(t, c.ID))
	require.NoError(t, err)
	assert.Equal(t, 10, f.store.Lote(lote.ID).Cantidad)
	assert.Empty(t, f.store.Devoluciones())
}

// historialCapturado records what the service hands to the history store.
type historialCapturado struct {
	repository.DevolucionRepository
	enviados []model.Devolucion
}

func (h *historialCapturado) Create(ctx context.Context, d *model.Devolucion) error {
	h.enviados = append(h.enviados, *d)
	return h.DevolucionRepository.Create(ctx, d)
}

func TestRegistrarDevolucion_FechaLaPoneElAlmacen(t *testing.T) {
	f := newFixture(t)
	f.store.SeedLote("CIM-01", model.TipoTabla, 10)
	c := f.rentar(t, linea(model.TipoTabla, 4))

	repo := &historialCapturado{DevolucionRepository: f.store.DevolucionesRepo()}
	svc := service.NewAsignacionService(f.store.Contratos(), f.store.Inventario(), f.store.AsignacionesRepo(),
		repo, f.store.TxRunner(3), service.NewReporteCache(nil, 0))

	antes := time.Now()
	_, err := svc.RegistrarDevolucion(context.Background(), mustParse(t, c.ID))
	require.NoError(t, err)

	require.Len(t, repo.enviados, 1)
	assert.True(t, repo.enviados[0].FechaDevolucion.IsZero())

	historial := f.store.Devoluciones()
	require.Len(t, historial, 1)
	assert.False(t, historial[0].FechaDevolucion.Before(antes))
}

func TestRegistrarDevolucion_Concurrente(t *testing.T) {
	f := newFixture(t)
	lote := f.store.SeedLote("CIM-01", model.TipoTabla, 30)
	c := f.rentar(t, linea(model.TipoTabla, 12))
	id := mustParse(t, c.ID)

	const n = 2
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.asignaciones.RegistrarDevolucion(context.Background(), id)
		}(i)
	}
	wg.Wait()

	var ok, invalidas int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, service.ErrInvalidStateTransition):
			invalidas++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, invalidas)
	assert.Equal(t, 30, f.store.Lote(lote.ID).Cantidad)
	assert.Len(t, f.store.Devoluciones(), 1)
}

func TestRegistrarDevolucion_ConflictoAgotado(t *testing.T) {
	f := newFixture(t)
	lote := f.store.SeedLote("CIM-01", model.TipoTabla, 30)
	c := f.rentar(t, linea(model.TipoTabla, 12))
	id := mustParse(t, c.ID)
	f.store.Conflicts = 10

	_, err := f.asignaciones.RegistrarDevolucion(context.Background(), id)
	require.ErrorIs(t, err, service.ErrConcurrentModification)

	assert.Equal(t, model.ContratoRentado, f.store.Contrato(id).Estado)
	assert.Equal(t, 18, f.store.Lote(lote.ID).Cantidad)
	assert.Len(t, f.store.Asignaciones(c.Numero), 1)
	assert.Empty(t, f.store.Devoluciones())
}

func TestRevertirDevolucion_StockInsuficiente(t *testing.T) {
	f := newFixture(t)
	lote := f.store.SeedLote("CIM-01", model.TipoTabla, 10)
	c := f.rentar(t, linea(model.TipoTabla, 5))
	id := mustParse(t, c.ID)
	_, err := f.asignaciones.RegistrarDevolucion(context.Background(), id)
	require.NoError(t, err)

	// Part of the lot was lent again elsewhere.
	f.store.SetCantidad(lote.ID, 2)
	antes := f.store.Writes()

	_, err = f.asignaciones.RevertirDevolucion(context.Background(), id)
	require.ErrorIs(t, err, service.ErrInsufficientSourceStock)
	var stockErr *service.StockInsuficienteError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "CIM-01", stockErr.Lote)
	assert.Equal(t, 2, stockErr.Disponible)
	assert.Equal(t, 5, stockErr.Requerido)

	assert.Equal(t, antes, f.store.Writes())
	assert.Equal(t, 2, f.store.Lote(lote.ID).Cantidad)
	assert.Equal(t, model.ContratoDevuelto, f.store.Contrato(id).Estado)
	assert.Empty(t, f.store.Asignaciones(c.Numero))
}

func TestRevertirDevolucion_AgregaPorLote(t *testing.T) {
	f := newFixture(t)
	lote := f.store.SeedLote("CIM-01", model.TipoTabla, 10)
	c := f.rentar(t, linea(model.TipoTabla, 4), linea(model.TipoTabla, 4))
	id := mustParse(t, c.ID)
	_, err := f.asignaciones.RegistrarDevolucion(context.Background(), id)
	require.NoError(t, err)

	// Each line alone fits in 7, both together do not.
	f.store.SetCantidad(lote.ID, 7)
	_, err = f.asignaciones.RevertirDevolucion(context.Background(), id)
	var stockErr *service.StockInsuficienteError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 8, stockErr.Requerido)
	assert.Equal(t, 7, f.store.Lote(lote.ID).Cantidad)
}

func TestRevertirDevolucion_Errores(t *testing.T) {
	f := newFixture(t)
	lote := f.store.SeedLote("CIM-01", model.TipoTabla, 10)
	c := f.rentar(t, linea(model.TipoTabla, 5))
	id := mustParse(t, c.ID)
	ctx := context.Background()

	_, err := f.asignaciones.RevertirDevolucion(ctx, id)
	assert.ErrorIs(t, err, service.ErrInvalidStateTransition)

	_, err = f.asignaciones.RegistrarDevolucion(ctx, id)
	require.NoError(t, err)
	f.store.DeleteLote(lote.ID)
	_, err = f.asignaciones.RevertirDevolucion(ctx, id)
	assert.ErrorIs(t, err, service.ErrReferenceNotFound)
	assert.Equal(t, model.ContratoDevuelto, f.store.Contrato(id).Estado)

	sinLote := f.store.SeedContrato(model.Contrato{
		Numero: "CIM-2024-009", Estado: model.ContratoDevuelto,
		Materiales: []model.ContratoMaterial{{Orden: 1, TipoMaterial: model.TipoTabla, Cantidad: 3}},
	})
	_, err = f.asignaciones.RevertirDevolucion(ctx, sinLote.ID)
	assert.ErrorIs(t, err, service.ErrReferenceNotFound)
}

func TestListarDevoluciones(t *testing.T) {
	f := newFixture(t)
	f.store.SeedLote("CIM-01", model.TipoTabla, 10)
	c := f.rentar(t, linea(model.TipoTabla, 5))
	_, err := f.asignaciones.RegistrarDevolucion(context.Background(), mustParse(t, c.ID))
	require.NoError(t, err)

	rows, total, err := f.asignaciones.ListarDevoluciones(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, c.Numero, rows[0].ContratoNumero)
	assert.Equal(t, "5 Tabla", rows[0].Materiales)
}
