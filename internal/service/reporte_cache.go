package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cimbrasys/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const reporteVersionKey = "reportes:version"

// ReporteCache caches report summaries in Redis. Keys embed a version
// counter that every contract write bumps, so a summary computed before a
// write is never served after it. A nil client disables caching.
type ReporteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewReporteCache(rdb *redis.Client, ttl time.Duration) *ReporteCache {
	return &ReporteCache{rdb: rdb, ttl: ttl}
}

func (c *ReporteCache) activo() bool { return c != nil && c.rdb != nil }

// Invalidar bumps the version. Failures are logged only: the TTL bounds
// staleness if Redis is briefly unreachable.
func (c *ReporteCache) Invalidar(ctx context.Context) {
	if !c.activo() {
		return
	}
	if err := c.rdb.Incr(ctx, reporteVersionKey).Err(); err != nil {
		log.Warn().Err(err).Msg("reportes: no se pudo invalidar cache")
	}
}

func (c *ReporteCache) clave(ctx context.Context, desde, hasta string) (string, error) {
	v, err := c.rdb.Get(ctx, reporteVersionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("reportes:v%d:%s:%s", v, desde, hasta), nil
}

// Obtener returns the cached summary, or the key under which the caller
// should store the summary it computes. The key is fixed before computing so
// a write landing mid-computation makes the stored entry unreachable.
func (c *ReporteCache) Obtener(ctx context.Context, desde, hasta string) (*dto.ReporteResponse, string) {
	if !c.activo() {
		return nil, ""
	}
	key, err := c.clave(ctx, desde, hasta)
	if err != nil {
		return nil, ""
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, key
	}
	var r dto.ReporteResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, key
	}
	return &r, key
}

func (c *ReporteCache) Guardar(ctx context.Context, key string, r *dto.ReporteResponse) {
	if !c.activo() || key == "" {
		return
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("reportes: no se pudo guardar cache")
	}
}
