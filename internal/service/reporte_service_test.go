package service_test

import (
	"context"
	"testing"
	"time"

	"cimbrasys/internal/dto"
	"cimbrasys/internal/model"
	"cimbrasys/internal/repository/memstore"
	"cimbrasys/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contratoDe(numero, estado string, inicio time.Time, total int64, unidades int) model.Contrato {
	return model.Contrato{
		Numero:      numero,
		Estado:      estado,
		FechaInicio: inicio,
		CostoTotal:  decimal.NewFromInt(total),
		Materiales: []model.ContratoMaterial{{
			Orden: 1, TipoMaterial: model.TipoTabla, Cantidad: unidades, PrecioUnitario: decimal.NewFromInt(17),
		}},
	}
}

func TestAgregarReporte(t *testing.T) {
	contratos := []model.Contrato{
		contratoDe("CIM-2025-001", model.ContratoRentado, time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local), 10000, 300),
		contratoDe("CIM-2025-002", model.ContratoRentado, time.Date(2025, 3, 2, 10, 0, 0, 0, time.Local), 5000, 120),
		contratoDe("CIM-2025-003", model.ContratoDevuelto, time.Date(2025, 3, 20, 10, 0, 0, 0, time.Local), 2300, 50),
	}

	r := service.AgregarReporte(contratos, nil, nil)
	assert.True(t, decimal.NewFromInt(17300).Equal(r.IngresoTotal), "ingreso_total = %s", r.IngresoTotal)
	assert.Equal(t, 3, r.TotalContratos)
	assert.Equal(t, 2, r.ContratosActivos)
	assert.Equal(t, 420, r.UnidadesRentadas)
	assert.True(t, decimal.NewFromInt(10000).Equal(r.Mensual[0]))
	assert.True(t, decimal.NewFromInt(7300).Equal(r.Mensual[2]))
	assert.True(t, r.Mensual[11].IsZero())
}

func TestAgregarReporte_RangoInclusivo(t *testing.T) {
	contratos := []model.Contrato{
		contratoDe("A", model.ContratoRentado, time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local), 100, 1),
		contratoDe("B", model.ContratoRentado, time.Date(2025, 3, 31, 23, 59, 0, 0, time.Local), 200, 1),
		contratoDe("C", model.ContratoRentado, time.Date(2025, 4, 1, 0, 0, 0, 0, time.Local), 400, 1),
	}
	desde := time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local)
	hasta := time.Date(2025, 3, 31, 0, 0, 0, 0, time.Local)

	r := service.AgregarReporte(contratos, &desde, &hasta)
	assert.Equal(t, 2, r.TotalContratos)
	assert.True(t, decimal.NewFromInt(300).Equal(r.IngresoTotal))
}

func TestAgregarReporte_MesesIgnoranElAnio(t *testing.T) {
	contratos := []model.Contrato{
		contratoDe("A", model.ContratoDevuelto, time.Date(2024, 5, 10, 0, 0, 0, 0, time.Local), 100, 1),
		contratoDe("B", model.ContratoDevuelto, time.Date(2025, 5, 10, 0, 0, 0, 0, time.Local), 50, 1),
	}
	r := service.AgregarReporte(contratos, nil, nil)
	assert.True(t, decimal.NewFromInt(150).Equal(r.Mensual[4]))
	assert.Zero(t, r.ContratosActivos)
}

func TestReporteService_Resumen(t *testing.T) {
	f := newFixture(t)
	f.store.SeedContrato(contratoDe("CIM-2025-001", model.ContratoRentado, time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local), 10000, 300))
	f.store.SeedContrato(contratoDe("CIM-2025-002", model.ContratoRentado, time.Date(2025, 3, 2, 10, 0, 0, 0, time.Local), 5000, 120))
	f.store.SeedContrato(contratoDe("CIM-2025-003", model.ContratoDevuelto, time.Date(2025, 3, 20, 10, 0, 0, 0, time.Local), 2300, 50))
	ctx := context.Background()

	r, err := f.reportes.Resumen(ctx, dto.ReporteFilter{})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(17300).Equal(r.IngresoTotal))
	assert.Equal(t, 2, r.ContratosActivos)

	r, err = f.reportes.Resumen(ctx, dto.ReporteFilter{Desde: "2025-03-01", Hasta: "2025-03-31"})
	require.NoError(t, err)
	assert.Equal(t, 2, r.TotalContratos)
	assert.Equal(t, "2025-03-01", r.Desde)

	_, err = f.reportes.Resumen(ctx, dto.ReporteFilter{Desde: "marzo"})
	assert.ErrorIs(t, err, service.ErrValidation)

	pdf, err := f.reportes.RenderReportePDF(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(pdf[:5]))
}

func TestReporteService_Enviar(t *testing.T) {
	store := memstore.New()
	cola := &memstore.Cola{}
	svc := service.NewReporteService(store.Contratos(), service.NewReporteCache(nil, 0), cola)

	err := svc.Enviar(context.Background(), dto.EnviarReporteRequest{Email: "duena@cimbra.test", Desde: "2025-01-01"})
	require.NoError(t, err)
	require.Len(t, cola.Reportes, 1)
	assert.Equal(t, "duena@cimbra.test", cola.Reportes[0].Email)
	assert.Equal(t, "2025-01-01", cola.Reportes[0].Desde)

	err = svc.Enviar(context.Background(), dto.EnviarReporteRequest{Email: "x@y.z", Desde: "2025-02-01", Hasta: "2025-01-01"})
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Len(t, cola.Reportes, 1)
}
