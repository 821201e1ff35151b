// Package memstore is an in-memory implementation of the repository
// interfaces used by service and handler tests. Transactions are serialized
// and roll back to a snapshot when the closure fails, which gives tests the
// same all-or-nothing behaviour as PostgreSQL.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cimbrasys/internal/model"
	"cimbrasys/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store holds every table. Tests may seed and inspect it through the
// exported helpers; all access is guarded by mu.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	usuarios     map[uuid.UUID]model.Usuario
	autenticados map[string]model.Autenticado
	clientes     map[uuid.UUID]model.Cliente
	lotes        map[uuid.UUID]model.LoteMaterial
	contratos    map[uuid.UUID]model.Contrato
	asignaciones map[uuid.UUID]model.Asignacion
	devoluciones []model.Devolucion

	codigoSeq   int64
	contratoSeq int64
	writes      int

	// Conflicts makes the next N transactions fail as if PostgreSQL had
	// aborted them with a serialization failure.
	Conflicts int
	// FailLookups makes allow-list lookups fail with a non not-found error.
	FailLookups error
}

func New() *Store {
	return &Store{
		usuarios:     make(map[uuid.UUID]model.Usuario),
		autenticados: make(map[string]model.Autenticado),
		clientes:     make(map[uuid.UUID]model.Cliente),
		lotes:        make(map[uuid.UUID]model.LoteMaterial),
		contratos:    make(map[uuid.UUID]model.Contrato),
		asignaciones: make(map[uuid.UUID]model.Asignacion),
	}
}

type snapshot struct {
	lotes        map[uuid.UUID]model.LoteMaterial
	contratos    map[uuid.UUID]model.Contrato
	asignaciones map[uuid.UUID]model.Asignacion
	contratoSeq  int64
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		lotes:        make(map[uuid.UUID]model.LoteMaterial, len(s.lotes)),
		contratos:    make(map[uuid.UUID]model.Contrato, len(s.contratos)),
		asignaciones: make(map[uuid.UUID]model.Asignacion, len(s.asignaciones)),
		contratoSeq:  s.contratoSeq,
	}
	for k, v := range s.lotes {
		snap.lotes[k] = v
	}
	for k, v := range s.contratos {
		v.Materiales = append([]model.ContratoMaterial(nil), v.Materiales...)
		snap.contratos[k] = v
	}
	for k, v := range s.asignaciones {
		snap.asignaciones[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lotes = snap.lotes
	s.contratos = snap.contratos
	s.asignaciones = snap.asignaciones
	s.contratoSeq = snap.contratoSeq
}

// ── TxRunner ─────────────────────────────────────────────────────────────────

type conflictError struct{}

func (conflictError) Error() string { return "memstore: serialization failure" }

// TxRunner returns a repository.TxRunner over the store that replays the
// closure up to maxRetries times on injected conflicts.
func (s *Store) TxRunner(maxRetries int) repository.TxRunner {
	return &txRunner{s: s, maxRetries: maxRetries}
}

type txRunner struct {
	s          *Store
	maxRetries int
}

func (r *txRunner) RunInTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		snap := r.s.snapshot()
		err := fn(nil)
		if err == nil {
			r.s.mu.Lock()
			conflict := r.s.Conflicts > 0
			if conflict {
				r.s.Conflicts--
			}
			r.s.mu.Unlock()
			if !conflict {
				return nil
			}
			err = conflictError{}
		}
		r.s.restore(snap)
		if _, ok := err.(conflictError); !ok {
			return err
		}
	}
	return fmt.Errorf("%w: %d intentos", repository.ErrConflict, r.maxRetries)
}

// ── Inspection helpers ───────────────────────────────────────────────────────

// Writes counts mutating calls issued through the repositories, including
// calls later rolled back.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) Lote(id uuid.UUID) model.LoteMaterial {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lotes[id]
}

func (s *Store) Contrato(id uuid.UUID) model.Contrato {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contratos[id]
}

// Asignaciones returns the allocation rows of a contract number sorted by
// contract line then lot, so two snapshots can be compared.
func (s *Store) Asignaciones(numero string) []model.Asignacion {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Asignacion
	for _, a := range s.asignaciones {
		if a.ContratoNumero == numero {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ContratoMaterialID != out[j].ContratoMaterialID {
			return out[i].ContratoMaterialID.String() < out[j].ContratoMaterialID.String()
		}
		return out[i].LoteID.String() < out[j].LoteID.String()
	})
	return out
}

func (s *Store) Devoluciones() []model.Devolucion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Devolucion(nil), s.devoluciones...)
}

// SeedLote inserts a lot directly, bypassing services.
func (s *Store) SeedLote(codigo, tipo string, cantidad int) model.LoteMaterial {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := model.LoteMaterial{
		ID:                 uuid.New(),
		Codigo:             codigo,
		TipoMaterial:       tipo,
		Estado:             model.LoteDisponible,
		Cantidad:           cantidad,
		CantidadRegistrada: cantidad,
		FechaRegistro:      time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(len(s.lotes)) * time.Hour),
	}
	s.lotes[l.ID] = l
	return l
}

// DeleteLote removes a lot behind the services' back, as an external
// process would.
func (s *Store) DeleteLote(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lotes, id)
}

// SetCantidad overwrites a lot quantity behind the services' back.
func (s *Store) SetCantidad(id uuid.UUID, cantidad int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lotes[id]
	l.Cantidad = cantidad
	s.lotes[id] = l
}

// SetEstado overwrites a lot status behind the services' back.
func (s *Store) SetEstado(id uuid.UUID, estado string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lotes[id]
	l.Estado = estado
	s.lotes[id] = l
}

// SeedCliente inserts a client directly.
func (s *Store) SeedCliente(nombre, telefono, proyecto string) model.Cliente {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := model.Cliente{ID: uuid.New(), Nombre: nombre, Telefono: telefono, Proyecto: proyecto, CreatedAt: time.Now()}
	s.clientes[c.ID] = c
	return c
}

// SeedContrato inserts a contract as-is (no allocation side effects).
func (s *Store) SeedContrato(c model.Contrato) model.Contrato {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.FechaInicio
	}
	for i := range c.Materiales {
		if c.Materiales[i].ID == uuid.Nil {
			c.Materiales[i].ID = uuid.New()
		}
		c.Materiales[i].ContratoID = c.ID
	}
	s.contratos[c.ID] = c
	return c
}

// Allow adds an email to the allow-list.
func (s *Store) Allow(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := strings.ToLower(strings.TrimSpace(email))
	s.autenticados[e] = model.Autenticado{Email: e, CreatedAt: time.Now()}
}

func (s *Store) touch() { s.writes++ }
