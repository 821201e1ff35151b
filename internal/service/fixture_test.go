package service_test

import (
	"context"
	"testing"
	"time"

	"cimbrasys/internal/config"
	"cimbrasys/internal/dto"
	"cimbrasys/internal/model"
	"cimbrasys/internal/repository/memstore"
	"cimbrasys/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// ── Fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	store        *memstore.Store
	cliente      model.Cliente
	contratos    service.ContratoService
	asignaciones service.AsignacionService
	inventario   service.InventarioService
	reportes     service.ReporteService
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:             "secreto-de-prueba",
		JWTExpirationHours:    1,
		JWTRefreshHours:       24,
		PasswordResetTTL:      time.Hour,
		PublicURL:             "http://localhost:5173",
		TxMaxRetries:          3,
		DiasRenta:             20,
		PrecioUnitarioDefault: 17,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	cfg := testConfig()
	cache := service.NewReporteCache(nil, 0)
	tx := store.TxRunner(cfg.TxMaxRetries)
	return &fixture{
		store:   store,
		cliente: store.SeedCliente("Constructora Obrera", "555-0101", "Torre Norte"),
		contratos: service.NewContratoService(store.Contratos(), store.Clientes(), store.Inventario(),
			store.AsignacionesRepo(), tx, cache, cfg),
		asignaciones: service.NewAsignacionService(store.Contratos(), store.Inventario(),
			store.AsignacionesRepo(), store.DevolucionesRepo(), tx, cache),
		inventario: service.NewInventarioService(store.Inventario(), store.AsignacionesRepo(), tx),
		reportes:   service.NewReporteService(store.Contratos(), cache, &memstore.Cola{}),
	}
}

func linea(tipo string, cantidad int) dto.LineaContratoRequest {
	return dto.LineaContratoRequest{TipoMaterial: tipo, Cantidad: cantidad}
}

// rentar creates a contract for the fixture client and fails the test on error.
func (f *fixture) rentar(t *testing.T, lineas ...dto.LineaContratoRequest) *dto.ContratoResponse {
	t.Helper()
	c, err := f.contratos.Crear(context.Background(), dto.CrearContratoRequest{
		ClienteID:  f.cliente.ID.String(),
		Materiales: lineas,
	})
	require.NoError(t, err)
	return c
}

func mustParse(t *testing.T, id string) uuid.UUID {
	t.Helper()
	u, err := uuid.Parse(id)
	require.NoError(t, err)
	return u
}

// forma drops the generated columns of allocation rows so two snapshots
// taken across a return/revert cycle can be compared.
func forma(rows []model.Asignacion) []model.Asignacion {
	out := make([]model.Asignacion, len(rows))
	for i, r := range rows {
		r.ID = uuid.Nil
		r.CreatedAt = time.Time{}
		out[i] = r
	}
	return out
}
