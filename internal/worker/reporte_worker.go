package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// ReporteJobPayload asks for the income report of a date range to be mailed.
type ReporteJobPayload struct {
	Email string `json:"email"`
	Desde string `json:"desde,omitempty"`
	Hasta string `json:"hasta,omitempty"`
}

// ReporteRenderer renders the report PDF for a YYYY-MM-DD range.
type ReporteRenderer interface {
	RenderReportePDF(ctx context.Context, desde, hasta string) ([]byte, error)
}

// ReporteWorker renders the report, archives the PDF under storagePath and
// mails it as an attachment.
type ReporteWorker struct {
	renderer    ReporteRenderer
	mailer      Enviador
	storagePath string
	now         func() time.Time
}

func NewReporteWorker(renderer ReporteRenderer, mailer Enviador, storagePath string) *ReporteWorker {
	return &ReporteWorker{renderer: renderer, mailer: mailer, storagePath: storagePath, now: time.Now}
}

func (w *ReporteWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ReporteJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("reporte_worker: invalid payload")
		return nil
	}
	if payload.Email == "" {
		log.Warn().Msg("reporte_worker: empty email, skipping")
		return nil
	}

	pdf, err := w.renderer.RenderReportePDF(ctx, payload.Desde, payload.Hasta)
	if err != nil {
		return fmt.Errorf("reporte_worker: render: %w", err)
	}

	if err := os.MkdirAll(w.storagePath, 0o755); err != nil {
		return fmt.Errorf("reporte_worker: storage: %w", err)
	}
	path := filepath.Join(w.storagePath, fmt.Sprintf("reporte_%s.pdf", w.now().Format("20060102_150405")))
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return fmt.Errorf("reporte_worker: write pdf: %w", err)
	}

	subject := "Reporte de ingresos CIMBRA-SYS"
	body := "Adjuntamos el reporte de ingresos" + rangoTexto(payload.Desde, payload.Hasta) + "."
	if err := w.mailer.Send(payload.Email, subject, body, path); err != nil {
		return fmt.Errorf("reporte_worker: envio a %s: %w", payload.Email, err)
	}
	log.Info().Str("to", payload.Email).Str("pdf", path).Msg("reporte_worker: report sent")
	return nil
}

func rangoTexto(desde, hasta string) string {
	switch {
	case desde != "" && hasta != "":
		return " del " + desde + " al " + hasta
	case desde != "":
		return " desde el " + desde
	case hasta != "":
		return " hasta el " + hasta
	}
	return " de todos los contratos"
}
