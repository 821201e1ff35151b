package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revocadoPrefix = "auth:revocado:"
	resetPrefix    = "auth:reset:"
	cortePrefix    = "auth:corte:"
)

// SesionStore keeps short-lived auth state: revoked token ids, per-user
// session cut-offs and single-use password reset tokens.
type SesionStore interface {
	Revocar(ctx context.Context, jti string, expira time.Time) error
	Revocado(ctx context.Context, jti string) (bool, error)
	// CerrarSesiones invalidates every refresh token of userID issued up to
	// desde. The mark is kept for ttl, the longest refresh token lifetime.
	CerrarSesiones(ctx context.Context, userID string, desde time.Time, ttl time.Duration) error
	// CorteSesiones returns the last cut-off of userID, zero if none.
	CorteSesiones(ctx context.Context, userID string) (time.Time, error)
	GuardarReset(ctx context.Context, token, email string, ttl time.Duration) error
	// ConsumirReset returns the email bound to token and deletes it.
	ConsumirReset(ctx context.Context, token string) (string, error)
}

type redisSesionStore struct{ rdb *redis.Client }

func NewSesionStore(rdb *redis.Client) SesionStore { return &redisSesionStore{rdb: rdb} }

func (s *redisSesionStore) Revocar(ctx context.Context, jti string, expira time.Time) error {
	ttl := time.Until(expira)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, revocadoPrefix+jti, 1, ttl).Err()
}

func (s *redisSesionStore) Revocado(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revocadoPrefix+jti).Result()
	return n > 0, err
}

func (s *redisSesionStore) CerrarSesiones(ctx context.Context, userID string, desde time.Time, ttl time.Duration) error {
	return s.rdb.Set(ctx, cortePrefix+userID, desde.Unix(), ttl).Err()
}

func (s *redisSesionStore) CorteSesiones(ctx context.Context, userID string) (time.Time, error) {
	v, err := s.rdb.Get(ctx, cortePrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}

// emitidoAntesDelCorte reports whether a token of userID issued at iat
// predates the user's last cut-off. iat has one second resolution, so a
// token issued in the cut-off second is treated as older.
func emitidoAntesDelCorte(ctx context.Context, s SesionStore, userID string, iat time.Time) (bool, error) {
	corte, err := s.CorteSesiones(ctx, userID)
	if err != nil || corte.IsZero() {
		return false, err
	}
	return !iat.After(corte.Truncate(time.Second)), nil
}

func (s *redisSesionStore) GuardarReset(ctx context.Context, token, email string, ttl time.Duration) error {
	return s.rdb.Set(ctx, resetPrefix+token, email, ttl).Err()
}

func (s *redisSesionStore) ConsumirReset(ctx context.Context, token string) (string, error) {
	email, err := s.rdb.GetDel(ctx, resetPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", noEncontrado("token de recuperacion invalido o expirado")
	}
	return email, err
}
