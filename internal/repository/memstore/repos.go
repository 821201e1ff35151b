package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cimbrasys/internal/model"
	"cimbrasys/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── Usuarios ─────────────────────────────────────────────────────────────────

type UsuarioRepo struct{ s *Store }

func (s *Store) Usuarios() *UsuarioRepo { return &UsuarioRepo{s: s} }

var _ repository.UsuarioRepository = (*UsuarioRepo)(nil)

func (r *UsuarioRepo) Create(_ context.Context, u *model.Usuario) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.s.usuarios {
		if existing.Email == u.Email {
			return fmt.Errorf("usuario %s ya existe", u.Email)
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	r.s.usuarios[u.ID] = *u
	return nil
}

func (r *UsuarioRepo) FindByEmail(_ context.Context, email string) (*model.Usuario, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.usuarios {
		if u.Email == email && u.Activo {
			u := u
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *UsuarioRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Usuario, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.usuarios[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *UsuarioRepo) Update(_ context.Context, u *model.Usuario) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.usuarios[u.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.s.usuarios[u.ID] = *u
	return nil
}

// ── Allow-list ───────────────────────────────────────────────────────────────

type AutenticadoRepo struct {
	s *Store
	// Lookups counts FindByEmail calls.
	Lookups int
}

func (s *Store) Autenticados() *AutenticadoRepo { return &AutenticadoRepo{s: s} }

var _ repository.AutenticadoRepository = (*AutenticadoRepo)(nil)

func (r *AutenticadoRepo) FindByEmail(_ context.Context, email string) (*model.Autenticado, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.Lookups++
	if r.s.FailLookups != nil {
		return nil, r.s.FailLookups
	}
	a, ok := r.s.autenticados[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (r *AutenticadoRepo) Add(_ context.Context, email string) error {
	r.s.Allow(email)
	return nil
}

func (r *AutenticadoRepo) Remove(_ context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.autenticados, strings.ToLower(strings.TrimSpace(email)))
	return nil
}

func (r *AutenticadoRepo) List(_ context.Context) ([]model.Autenticado, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Autenticado, 0, len(r.s.autenticados))
	for _, a := range r.s.autenticados {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// ── Clientes ─────────────────────────────────────────────────────────────────

type ClienteRepo struct{ s *Store }

func (s *Store) Clientes() *ClienteRepo { return &ClienteRepo{s: s} }

var _ repository.ClienteRepository = (*ClienteRepo)(nil)

func (r *ClienteRepo) Create(_ context.Context, c *model.Cliente) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	r.s.clientes[c.ID] = *c
	return nil
}

func (r *ClienteRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Cliente, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clientes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *ClienteRepo) List(_ context.Context) ([]model.Cliente, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Cliente, 0, len(r.s.clientes))
	for _, c := range r.s.clientes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ClienteRepo) Update(_ context.Context, c *model.Cliente) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clientes[c.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.s.clientes[c.ID] = *c
	return nil
}

func (r *ClienteRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clientes[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.clientes, id)
	return nil
}

// ── Inventario ───────────────────────────────────────────────────────────────

type InventarioRepo struct{ s *Store }

func (s *Store) Inventario() *InventarioRepo { return &InventarioRepo{s: s} }

var _ repository.InventarioRepository = (*InventarioRepo)(nil)

func (r *InventarioRepo) Create(_ context.Context, l *model.LoteMaterial) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	r.s.lotes[l.ID] = *l
	r.s.touch()
	return nil
}

func (r *InventarioRepo) FindByID(_ context.Context, id uuid.UUID) (*model.LoteMaterial, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lotes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &l, nil
}

func (r *InventarioRepo) List(_ context.Context, f repository.InventarioFilter) ([]model.LoteMaterial, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.LoteMaterial
	for _, l := range r.s.lotes {
		if f.Tipo != "" && l.TipoMaterial != f.Tipo {
			continue
		}
		if f.Estado != "" && l.Estado != f.Estado {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Codigo < out[j].Codigo })
	return out, nil
}

func (r *InventarioRepo) NextCodigo(_ context.Context) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.codigoSeq++
	return fmt.Sprintf("CIM-%04d", r.s.codigoSeq), nil
}

func (r *InventarioRepo) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.LoteMaterial, error) {
	return r.FindByID(context.Background(), id)
}

func (r *InventarioRepo) ListDisponiblesForUpdateTx(_ *gorm.DB, tipo string) ([]model.LoteMaterial, error) {
	lotes, err := r.List(context.Background(), repository.InventarioFilter{Tipo: tipo, Estado: model.LoteDisponible})
	if err != nil {
		return nil, err
	}
	out := lotes[:0]
	for _, l := range lotes {
		if l.Cantidad > 0 {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FechaRegistro.Before(out[j].FechaRegistro) })
	return out, nil
}

func (r *InventarioRepo) UpdateCantidadTx(_ *gorm.DB, id uuid.UUID, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lotes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if l.Cantidad+delta < 0 {
		return fmt.Errorf("memstore: chk_inventario_cantidad violated for %s", l.Codigo)
	}
	l.Cantidad += delta
	r.s.lotes[id] = l
	r.s.touch()
	return nil
}

func (r *InventarioRepo) ActualizarTx(_ *gorm.DB, id uuid.UUID, c repository.CambiosLote) error {
	if c.Vacio() {
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lotes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if c.TipoMaterial != nil {
		l.TipoMaterial = *c.TipoMaterial
	}
	if c.Estado != nil {
		l.Estado = *c.Estado
	}
	if l.Cantidad+c.DeltaCantidad < 0 {
		return fmt.Errorf("memstore: chk_inventario_cantidad violated for %s", l.Codigo)
	}
	l.Cantidad += c.DeltaCantidad
	l.CantidadRegistrada += c.DeltaCantidad
	r.s.lotes[id] = l
	r.s.touch()
	return nil
}

func (r *InventarioRepo) DeleteTx(_ *gorm.DB, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.lotes[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.lotes, id)
	r.s.touch()
	return nil
}

// ── Contratos ────────────────────────────────────────────────────────────────

type ContratoRepo struct{ s *Store }

func (s *Store) Contratos() *ContratoRepo { return &ContratoRepo{s: s} }

var _ repository.ContratoRepository = (*ContratoRepo)(nil)

func (r *ContratoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Contrato, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contratos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c.Materiales = append([]model.ContratoMaterial(nil), c.Materiales...)
	return &c, nil
}

func (r *ContratoRepo) List(_ context.Context, f repository.ContratoFilter) ([]model.Contrato, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Contrato
	for _, c := range r.s.contratos {
		if f.Estado != "" && c.Estado != f.Estado {
			continue
		}
		if f.Desde != nil && c.FechaInicio.Before(*f.Desde) {
			continue
		}
		if f.Hasta != nil && !c.FechaInicio.Before(f.Hasta.AddDate(0, 0, 1)) {
			continue
		}
		c.Materiales = append([]model.ContratoMaterial(nil), c.Materiales...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ContratoRepo) CreateTx(_ *gorm.DB, c *model.Contrato) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	for i := range c.Materiales {
		if c.Materiales[i].ID == uuid.Nil {
			c.Materiales[i].ID = uuid.New()
		}
		c.Materiales[i].ContratoID = c.ID
	}
	stored := *c
	stored.Materiales = append([]model.ContratoMaterial(nil), c.Materiales...)
	r.s.contratos[c.ID] = stored
	r.s.touch()
	return nil
}

func (r *ContratoRepo) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Contrato, error) {
	return r.FindByID(context.Background(), id)
}

func (r *ContratoRepo) UpdateEstadoTx(_ *gorm.DB, id uuid.UUID, estado string, ultimaReversion *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contratos[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Estado = estado
	if ultimaReversion != nil {
		t := *ultimaReversion
		c.UltimaReversion = &t
	}
	r.s.contratos[id] = c
	r.s.touch()
	return nil
}

func (r *ContratoRepo) NextNumeroTx(_ *gorm.DB, year int) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.contratoSeq++
	return fmt.Sprintf("CIM-%d-%03d", year, r.s.contratoSeq), nil
}

// ── Asignaciones ─────────────────────────────────────────────────────────────

type AsignacionRepo struct{ s *Store }

func (s *Store) AsignacionesRepo() *AsignacionRepo { return &AsignacionRepo{s: s} }

var _ repository.AsignacionRepository = (*AsignacionRepo)(nil)

func (r *AsignacionRepo) ListByContrato(_ context.Context, contratoID uuid.UUID) ([]model.Asignacion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Asignacion
	for _, a := range r.s.asignaciones {
		if a.ContratoID == contratoID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *AsignacionRepo) ExistsByLoteTx(_ *gorm.DB, loteID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.asignaciones {
		if a.LoteID == loteID {
			return true, nil
		}
	}
	return false, nil
}

func (r *AsignacionRepo) CreateTx(_ *gorm.DB, rows []model.Asignacion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
		rows[i].CreatedAt = time.Now()
		r.s.asignaciones[rows[i].ID] = rows[i]
	}
	r.s.touch()
	return nil
}

func (r *AsignacionRepo) ListByContratoNumeroForUpdateTx(_ *gorm.DB, numero string) ([]model.Asignacion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Asignacion
	for _, a := range r.s.asignaciones {
		if a.ContratoNumero == numero {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *AsignacionRepo) DeleteByContratoNumeroTx(_ *gorm.DB, numero string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, a := range r.s.asignaciones {
		if a.ContratoNumero == numero {
			delete(r.s.asignaciones, id)
		}
	}
	r.s.touch()
	return nil
}

// ── Devoluciones ─────────────────────────────────────────────────────────────

type DevolucionRepo struct {
	s *Store
	// Fail makes Create return this error.
	Fail error
}

func (s *Store) DevolucionesRepo() *DevolucionRepo { return &DevolucionRepo{s: s} }

var _ repository.DevolucionRepository = (*DevolucionRepo)(nil)

func (r *DevolucionRepo) Create(_ context.Context, d *model.Devolucion) error {
	if r.Fail != nil {
		return r.Fail
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.FechaDevolucion.IsZero() {
		d.FechaDevolucion = time.Now()
	}
	r.s.devoluciones = append(r.s.devoluciones, *d)
	return nil
}

func (r *DevolucionRepo) List(_ context.Context, f repository.DevolucionFilter) ([]model.Devolucion, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Devolucion
	for _, d := range r.s.devoluciones {
		if f.ContratoID != nil && d.ContratoID != *f.ContratoID {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FechaDevolucion.After(out[j].FechaDevolucion) })
	return out, int64(len(out)), nil
}
