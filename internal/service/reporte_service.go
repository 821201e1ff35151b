package service

import (
	"context"
	"time"

	"cimbrasys/internal/dto"
	"cimbrasys/internal/infra"
	"cimbrasys/internal/model"
	"cimbrasys/internal/repository"
	"cimbrasys/internal/worker"

	"github.com/shopspring/decimal"
)

type ReporteService interface {
	Resumen(ctx context.Context, filter dto.ReporteFilter) (*dto.ReporteResponse, error)
	// Enviar queues the report PDF for delivery by email.
	Enviar(ctx context.Context, req dto.EnviarReporteRequest) error
	// RenderReportePDF is used by the report worker.
	RenderReportePDF(ctx context.Context, desde, hasta string) ([]byte, error)
}

type reporteService struct {
	contratos repository.ContratoRepository
	cache     *ReporteCache
	encolador Encolador
}

func NewReporteService(contratos repository.ContratoRepository, cache *ReporteCache, encolador Encolador) ReporteService {
	return &reporteService{contratos: contratos, cache: cache, encolador: encolador}
}

var _ worker.ReporteRenderer = (*reporteService)(nil)

func (s *reporteService) Resumen(ctx context.Context, filter dto.ReporteFilter) (*dto.ReporteResponse, error) {
	desde, hasta, err := parseRango(filter.Desde, filter.Hasta)
	if err != nil {
		return nil, err
	}
	cached, key := s.cache.Obtener(ctx, filter.Desde, filter.Hasta)
	if cached != nil {
		return cached, nil
	}

	// Range filtering happens in AgregarReporte so the repository and the
	// aggregate agree on the inclusive bounds.
	contratos, err := s.contratos.List(ctx, repository.ContratoFilter{})
	if err != nil {
		return nil, err
	}
	r := AgregarReporte(contratos, desde, hasta)
	r.Desde, r.Hasta = filter.Desde, filter.Hasta

	s.cache.Guardar(ctx, key, &r)
	return &r, nil
}

func (s *reporteService) Enviar(ctx context.Context, req dto.EnviarReporteRequest) error {
	if _, _, err := parseRango(req.Desde, req.Hasta); err != nil {
		return err
	}
	return s.encolador.EnqueueReporte(ctx, worker.ReporteJobPayload{
		Email: req.Email,
		Desde: req.Desde,
		Hasta: req.Hasta,
	})
}

func (s *reporteService) RenderReportePDF(ctx context.Context, desde, hasta string) ([]byte, error) {
	r, err := s.Resumen(ctx, dto.ReporteFilter{Desde: desde, Hasta: hasta})
	if err != nil {
		return nil, err
	}
	return infra.GenerarReportePDF(r)
}

// AgregarReporte summarizes contracts whose fecha_inicio falls in
// [desde, hasta] (whole days, nil bounds are open). Monthly buckets are
// keyed by calendar month only, so two years in one range share buckets.
func AgregarReporte(contratos []model.Contrato, desde, hasta *time.Time) dto.ReporteResponse {
	var r dto.ReporteResponse
	r.IngresoTotal = decimal.Zero
	for i := range r.Mensual {
		r.Mensual[i] = decimal.Zero
	}

	var limite time.Time
	if hasta != nil {
		limite = hasta.AddDate(0, 0, 1)
	}
	for _, c := range contratos {
		if desde != nil && c.FechaInicio.Before(*desde) {
			continue
		}
		if hasta != nil && !c.FechaInicio.Before(limite) {
			continue
		}
		r.TotalContratos++
		r.IngresoTotal = r.IngresoTotal.Add(c.CostoTotal)
		mes := c.FechaInicio.Month() - 1
		r.Mensual[mes] = r.Mensual[mes].Add(c.CostoTotal)
		if c.Estado == model.ContratoRentado {
			r.ContratosActivos++
			for _, m := range c.Materiales {
				r.UnidadesRentadas += m.Cantidad
			}
		}
	}
	return r
}
