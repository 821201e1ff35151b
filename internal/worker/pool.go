package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cimbrasys/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueEmail   = "jobs:email"
	QueueReporte = "jobs:reporte"

	// MaxAttempts is how many times a job runs before it goes to the DLQ.
	MaxAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Handler processes the payload of one job type. A returned error makes the
// pool retry the job.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, "email", payload)
}

// EnqueueReporte pushes a report delivery job to Redis.
func (d *Dispatcher) EnqueueReporte(ctx context.Context, payload ReporteJobPayload) error {
	return d.enqueue(ctx, QueueReporte, "reporte", payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return push(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func push(ctx context.Context, rdb *redis.Client, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// esperaTrasError is how long a worker sleeps after the queue itself fails.
const esperaTrasError = 2 * time.Second

// Pool consumes the job queues and routes each job to its handler by type.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]Handler
	espera   time.Duration
}

func NewPool(rdb *redis.Client, handlers map[string]Handler) *Pool {
	return &Pool{rdb: rdb, handlers: handlers, espera: esperaTrasError}
}

// Start launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	queues := []string{QueueEmail, QueueReporte}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop, waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue // timeout or context cancelled
				}
				log.Warn().Err(err).Int("worker", id).Dur("espera", p.espera).Msg("worker: queue unavailable, backing off")
				select {
				case <-ctx.Done():
				case <-time.After(p.espera):
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, p.rdb, queue, "", json.RawMessage(raw), "payload ilegible", 0)
		metrics.JobsProcesados.WithLabelValues(queue, "dlq").Inc()
		return
	}

	err := p.dispatch(ctx, job)
	accion := decidir(&job, err)
	metrics.JobsProcesados.WithLabelValues(queue, string(accion)).Inc()

	switch accion {
	case accionReintentar:
		log.Warn().Err(err).Str("queue", queue).Str("type", job.Type).Int("attempts", job.Attempts).Msg("job failed, retrying")
		if err := push(ctx, p.rdb, queue, job); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("failed to re-enqueue job")
		}
	case accionDLQ:
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
	}
}

func (p *Pool) dispatch(ctx context.Context, job Job) error {
	h, ok := p.handlers[job.Type]
	if !ok {
		return errTipoDesconocido{job.Type}
	}
	return h.Process(ctx, job.Payload)
}

type accion string

const (
	accionOK         accion = "ok"
	accionReintentar accion = "reintento"
	accionDLQ        accion = "dlq"
)

type errTipoDesconocido struct{ tipo string }

func (e errTipoDesconocido) Error() string { return "tipo de job desconocido: " + e.tipo }

// decidir records the attempt on job and chooses what happens next.
// Unknown job types go straight to the DLQ.
func decidir(job *Job, err error) accion {
	if err == nil {
		return accionOK
	}
	job.Attempts++
	if _, ok := err.(errTipoDesconocido); ok {
		return accionDLQ
	}
	if job.Attempts >= MaxAttempts {
		return accionDLQ
	}
	return accionReintentar
}
