package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMailer struct {
	err      error
	to       []string
	subject  string
	adjuntos []string
}

func (m *stubMailer) Send(to, subject, _ string, adjuntos ...string) error {
	m.to = append(m.to, to)
	m.subject = subject
	m.adjuntos = adjuntos
	return m.err
}

type stubRenderer struct {
	desde, hasta string
	err          error
}

func (r *stubRenderer) RenderReportePDF(_ context.Context, desde, hasta string) ([]byte, error) {
	r.desde, r.hasta = desde, hasta
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3 test"), nil
}

func TestDecidir(t *testing.T) {
	job := &Job{Type: "email"}

	assert.Equal(t, accionOK, decidir(job, nil))
	assert.Equal(t, 0, job.Attempts)

	fallo := errors.New("smtp caido")
	assert.Equal(t, accionReintentar, decidir(job, fallo))
	assert.Equal(t, accionReintentar, decidir(job, fallo))
	assert.Equal(t, accionDLQ, decidir(job, fallo))
	assert.Equal(t, MaxAttempts, job.Attempts)
}

func TestDecidir_TipoDesconocidoVaDirectoAlDLQ(t *testing.T) {
	job := &Job{Type: "factura"}
	p := NewPool(nil, map[string]Handler{})
	err := p.dispatch(context.Background(), *job)
	require.Error(t, err)
	assert.Equal(t, accionDLQ, decidir(job, err))
}

func TestEmailWorker_Process(t *testing.T) {
	m := &stubMailer{}
	w := NewEmailWorker(m)
	raw, _ := json.Marshal(EmailJobPayload{ToEmail: "ana@example.com", Subject: "Hola", Body: "x"})

	require.NoError(t, w.Process(context.Background(), raw))
	assert.Equal(t, []string{"ana@example.com"}, m.to)
	assert.Empty(t, m.adjuntos)
}

func TestEmailWorker_FalloDeEnvioSeReintenta(t *testing.T) {
	m := &stubMailer{err: errors.New("circuit breaker is open")}
	w := NewEmailWorker(m)
	raw, _ := json.Marshal(EmailJobPayload{ToEmail: "ana@example.com"})

	assert.Error(t, w.Process(context.Background(), raw))
}

func TestEmailWorker_PayloadInvalidoSeDescarta(t *testing.T) {
	m := &stubMailer{}
	w := NewEmailWorker(m)

	assert.NoError(t, w.Process(context.Background(), json.RawMessage(`{nope`)))
	assert.NoError(t, w.Process(context.Background(), json.RawMessage(`{"to_email":""}`)))
	assert.Empty(t, m.to)
}

func TestReporteWorker_Process(t *testing.T) {
	dir := t.TempDir()
	r := &stubRenderer{}
	m := &stubMailer{}
	w := NewReporteWorker(r, m, dir)
	w.now = func() time.Time { return time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC) }

	raw, _ := json.Marshal(ReporteJobPayload{Email: "dueno@example.com", Desde: "2025-01-01", Hasta: "2025-03-31"})
	require.NoError(t, w.Process(context.Background(), raw))

	assert.Equal(t, "2025-01-01", r.desde)
	assert.Equal(t, "2025-03-31", r.hasta)
	want := filepath.Join(dir, "reporte_20250304_100000.pdf")
	assert.Equal(t, []string{want}, m.adjuntos)
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 test", string(data))
}

func TestReporteWorker_ErrorDeRenderSeReintenta(t *testing.T) {
	w := NewReporteWorker(&stubRenderer{err: errors.New("db")}, &stubMailer{}, t.TempDir())
	raw, _ := json.Marshal(ReporteJobPayload{Email: "dueno@example.com"})
	assert.Error(t, w.Process(context.Background(), raw))
}

func TestRangoTexto(t *testing.T) {
	assert.Equal(t, " del 2025-01-01 al 2025-02-01", rangoTexto("2025-01-01", "2025-02-01"))
	assert.Equal(t, " desde el 2025-01-01", rangoTexto("2025-01-01", ""))
	assert.Equal(t, " de todos los contratos", rangoTexto("", ""))
}

// redisCaido fails every command without touching the network.
type redisCaido struct{ llamadas atomic.Int32 }

func (h *redisCaido) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *redisCaido) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		h.llamadas.Add(1)
		err := errors.New("dial tcp: connection refused")
		cmd.SetErr(err)
		return err
	}
}

func (h *redisCaido) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestPool_EsperaSiLaColaFalla(t *testing.T) {
	hook := &redisCaido{}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	rdb.AddHook(hook)
	t.Cleanup(func() { _ = rdb.Close() })

	p := NewPool(rdb, nil)
	p.espera = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	p.run(ctx, 0)

	n := hook.llamadas.Load()
	assert.GreaterOrEqual(t, n, int32(2))
	assert.LessOrEqual(t, n, int32(10))
}
