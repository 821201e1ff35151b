package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ErrConflict is returned by RunInTx when the transaction kept losing
// serialization conflicts and the retry budget is exhausted.
var ErrConflict = errors.New("conflicto de transaccion concurrente")

// ErrSinBaseDeDatos is returned by a TxRunner built without a database.
var ErrSinBaseDeDatos = errors.New("repository: TxRunner sin base de datos")

// TxRunner executes fn inside one SERIALIZABLE transaction. fn may be run
// more than once: on a serialization failure the whole closure, reads
// included, is replayed. fn must therefore do all its reads through tx and
// keep no state across attempts other than what it rebuilds.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TxOption customizes a TxRunner.
type TxOption func(*gormTxRunner)

// WithOnRetry registers a callback invoked before every replay.
func WithOnRetry(fn func(attempt int, err error)) TxOption {
	return func(r *gormTxRunner) { r.onRetry = fn }
}

type gormTxRunner struct {
	db         *gorm.DB
	maxRetries int
	onRetry    func(attempt int, err error)
}

func NewTxRunner(db *gorm.DB, maxRetries int, opts ...TxOption) TxRunner {
	if maxRetries < 1 {
		maxRetries = 1
	}
	r := &gormTxRunner{db: db, maxRetries: maxRetries}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *gormTxRunner) RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.db == nil {
		return ErrSinBaseDeDatos
	}
	return withRetry(ctx, r.maxRetries, r.onRetry, func() error {
		return r.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
	})
}

// withRetry replays attempt while it fails with a serialization failure,
// sleeping attempt²×20ms plus jitter between tries.
func withRetry(ctx context.Context, maxRetries int, onRetry func(int, error), attempt func() error) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			if onRetry != nil {
				onRetry(i, lastErr)
			}
			delay := time.Duration(i*i)*20*time.Millisecond + time.Duration(rand.Intn(50))*time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrConflict, ctx.Err())
			case <-time.After(delay):
			}
		}

		err := attempt()
		if err == nil {
			return nil
		}
		if !IsSerializationFailure(err) {
			return err
		}
		lastErr = err
		log.Debug().Int("attempt", i+1).Err(err).Msg("tx: serialization failure, retrying")
	}
	return fmt.Errorf("%w: %d intentos: %v", ErrConflict, maxRetries, lastErr)
}

// IsSerializationFailure reports whether err is a PostgreSQL
// serialization_failure (40001) or deadlock_detected (40P01).
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
