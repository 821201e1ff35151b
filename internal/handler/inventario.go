package handler

import (
	"net/http"

	"cimbrasys/internal/apierror"
	"cimbrasys/internal/dto"
	"cimbrasys/internal/service"

	"github.com/gin-gonic/gin"
)

type InventarioHandler struct{ svc service.InventarioService }

func NewInventarioHandler(svc service.InventarioService) *InventarioHandler {
	return &InventarioHandler{svc: svc}
}

// Registrar godoc
// @Summary Registrar lote de material
// @Tags inventario
// @Accept json
// @Produce json
// @Param body body dto.CrearLoteRequest true "Lote"
// @Success 201 {object} dto.LoteResponse
// @Security BearerAuth
// @Router /v1/inventario [post]
func (h *InventarioHandler) Registrar(c *gin.Context) {
	var req dto.CrearLoteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Registrar(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Listar godoc
// @Summary Listar lotes
// @Tags inventario
// @Produce json
// @Param q query string false "Busqueda por codigo, tipo o estado"
// @Param tipo query string false "Tipo de material"
// @Param estado query string false "Estado del lote"
// @Success 200 {array} dto.LoteResponse
// @Security BearerAuth
// @Router /v1/inventario [get]
func (h *InventarioHandler) Listar(c *gin.Context) {
	var filter dto.InventarioFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Parametros de consulta invalidos"))
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InventarioHandler) Obtener(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InventarioHandler) Actualizar(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.ActualizarLoteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Actualizar(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InventarioHandler) Eliminar(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Eliminar(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
