package service

import (
	"context"
	"errors"
	"strings"

	"cimbrasys/internal/dto"
	"cimbrasys/internal/model"
	"cimbrasys/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClienteService manages the client registry. Contracts keep their own copy
// of client name and project, so edits and deletes here never touch them.
type ClienteService interface {
	Crear(ctx context.Context, req dto.ClienteRequest) (*dto.ClienteResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.ClienteResponse, error)
	Listar(ctx context.Context, q string) ([]dto.ClienteResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ClienteRequest) (*dto.ClienteResponse, error)
	Eliminar(ctx context.Context, id uuid.UUID) error
}

type clienteService struct {
	repo repository.ClienteRepository
}

func NewClienteService(repo repository.ClienteRepository) ClienteService {
	return &clienteService{repo: repo}
}

func (s *clienteService) Crear(ctx context.Context, req dto.ClienteRequest) (*dto.ClienteResponse, error) {
	if err := validarCliente(req); err != nil {
		return nil, err
	}
	c := &model.Cliente{
		Nombre:    strings.TrimSpace(req.Nombre),
		Telefono:  strings.TrimSpace(req.Telefono),
		Direccion: limpiarOpcional(req.Direccion),
		Proyecto:  strings.TrimSpace(req.Proyecto),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return clienteToResponse(c), nil
}

func (s *clienteService) Obtener(ctx context.Context, id uuid.UUID) (*dto.ClienteResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noEncontrado("cliente %s", id)
		}
		return nil, err
	}
	return clienteToResponse(c), nil
}

// Listar matches q against name, project and phone.
func (s *clienteService) Listar(ctx context.Context, q string) ([]dto.ClienteResponse, error) {
	clientes, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ClienteResponse, 0, len(clientes))
	for i := range clientes {
		c := &clientes[i]
		if coincide(q, c.Nombre, c.Proyecto, c.Telefono) {
			out = append(out, *clienteToResponse(c))
		}
	}
	return out, nil
}

func (s *clienteService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ClienteRequest) (*dto.ClienteResponse, error) {
	if err := validarCliente(req); err != nil {
		return nil, err
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noEncontrado("cliente %s", id)
		}
		return nil, err
	}
	c.Nombre = strings.TrimSpace(req.Nombre)
	c.Telefono = strings.TrimSpace(req.Telefono)
	c.Direccion = limpiarOpcional(req.Direccion)
	c.Proyecto = strings.TrimSpace(req.Proyecto)
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return clienteToResponse(c), nil
}

func (s *clienteService) Eliminar(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return noEncontrado("cliente %s", id)
		}
		return err
	}
	return nil
}

func validarCliente(req dto.ClienteRequest) error {
	var faltantes []string
	if strings.TrimSpace(req.Nombre) == "" {
		faltantes = append(faltantes, "nombre")
	}
	if strings.TrimSpace(req.Telefono) == "" {
		faltantes = append(faltantes, "telefono")
	}
	if strings.TrimSpace(req.Proyecto) == "" {
		faltantes = append(faltantes, "proyecto")
	}
	if len(faltantes) > 0 {
		return validacion("campos requeridos: %s", strings.Join(faltantes, ", "))
	}
	return nil
}

func limpiarOpcional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func clienteToResponse(c *model.Cliente) *dto.ClienteResponse {
	return &dto.ClienteResponse{
		ID:        c.ID.String(),
		Nombre:    c.Nombre,
		Telefono:  c.Telefono,
		Direccion: c.Direccion,
		Proyecto:  c.Proyecto,
		CreatedAt: c.CreatedAt,
	}
}
