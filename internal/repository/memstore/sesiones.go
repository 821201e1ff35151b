package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cimbrasys/internal/service"
	"cimbrasys/internal/worker"
)

// Sesiones is an in-memory service.SesionStore. Expiry is ignored.
type Sesiones struct {
	mu        sync.Mutex
	revocados map[string]time.Time
	cortes    map[string]time.Time
	resets    map[string]string
	// Fail makes every call return this error.
	Fail error
}

func NewSesiones() *Sesiones {
	return &Sesiones{
		revocados: make(map[string]time.Time),
		cortes:    make(map[string]time.Time),
		resets:    make(map[string]string),
	}
}

var _ service.SesionStore = (*Sesiones)(nil)

func (s *Sesiones) Revocar(_ context.Context, jti string, expira time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	s.revocados[jti] = expira
	return nil
}

func (s *Sesiones) Revocado(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return false, s.Fail
	}
	_, ok := s.revocados[jti]
	return ok, nil
}

func (s *Sesiones) CerrarSesiones(_ context.Context, userID string, desde time.Time, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	s.cortes[userID] = desde
	return nil
}

func (s *Sesiones) CorteSesiones(_ context.Context, userID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return time.Time{}, s.Fail
	}
	return s.cortes[userID], nil
}

func (s *Sesiones) GuardarReset(_ context.Context, token, email string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	s.resets[token] = email
	return nil
}

func (s *Sesiones) ConsumirReset(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return "", s.Fail
	}
	email, ok := s.resets[token]
	if !ok {
		return "", fmt.Errorf("%w: token de recuperacion invalido o expirado", service.ErrReferenceNotFound)
	}
	delete(s.resets, token)
	return email, nil
}

// Revocados returns how many token ids have been revoked.
func (s *Sesiones) Revocados() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.revocados)
}

// ResetPara returns the pending reset token of email, if any.
func (s *Sesiones) ResetPara(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, e := range s.resets {
		if e == email {
			return tok
		}
	}
	return ""
}

// Cola records enqueued jobs instead of pushing them to Redis.
type Cola struct {
	mu       sync.Mutex
	Emails   []worker.EmailJobPayload
	Reportes []worker.ReporteJobPayload
	Fail     error
}

var _ service.Encolador = (*Cola)(nil)

func (c *Cola) EnqueueEmail(_ context.Context, p worker.EmailJobPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail != nil {
		return c.Fail
	}
	c.Emails = append(c.Emails, p)
	return nil
}

func (c *Cola) EnqueueReporte(_ context.Context, p worker.ReporteJobPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail != nil {
		return c.Fail
	}
	c.Reportes = append(c.Reportes, p)
	return nil
}
