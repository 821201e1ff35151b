package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cimbrasys/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// limitador is a fixed-window counter per client IP.
type limitador struct {
	mu      sync.Mutex
	limite  int
	ventana time.Duration
	ips     map[string]*ventanaIP
	now     func() time.Time
}

type ventanaIP struct {
	count int
	fin   time.Time
}

func nuevoLimitador(limite int, ventana time.Duration) *limitador {
	return &limitador{limite: limite, ventana: ventana, ips: make(map[string]*ventanaIP), now: time.Now}
}

// permitir counts one hit and returns false once the window is exhausted,
// together with the window end.
func (l *limitador) permitir(ip string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ahora := l.now()
	v, ok := l.ips[ip]
	if !ok || ahora.After(v.fin) {
		v = &ventanaIP{fin: ahora.Add(l.ventana)}
		l.ips[ip] = v
	}
	v.count++
	return v.count <= l.limite, v.fin
}

func (l *limitador) purgar() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	ahora := l.now()
	n := 0
	for ip, v := range l.ips {
		if ahora.After(v.fin) {
			delete(l.ips, ip)
			n++
		}
	}
	return n
}

const purgeInterval = 5 * time.Minute

// purgarPeriodicamente drops expired windows every interval until ctx ends.
func (l *limitador) purgarPeriodicamente(ctx context.Context, nombre string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.purgar(); n > 0 {
				log.Debug().Str("limiter", nombre).Int("purged", n).Msg("rate limiter entries purged")
			}
		}
	}
}

func (l *limitador) handler(mensaje string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, fin := l.permitir(c.ClientIP())
		if !ok {
			c.Header("Retry-After", fin.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(mensaje))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter limits credential endpoints to 20 attempts per minute per IP.
// Expired entries are purged until ctx ends.
func LoginRateLimiter(ctx context.Context) gin.HandlerFunc {
	l := nuevoLimitador(20, time.Minute)
	go l.purgarPeriodicamente(ctx, "login", purgeInterval)
	return l.handler("Demasiados intentos de inicio de sesion. Intente en 1 minuto.")
}

// RateLimiter limits any route group to limit requests per window per IP.
func RateLimiter(ctx context.Context, limit int, window time.Duration) gin.HandlerFunc {
	l := nuevoLimitador(limit, window)
	go l.purgarPeriodicamente(ctx, "api", purgeInterval)
	return l.handler("Demasiadas solicitudes. Intente nuevamente en un momento.")
}
