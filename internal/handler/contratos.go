package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"cimbrasys/internal/apierror"
	"cimbrasys/internal/dto"
	"cimbrasys/internal/service"

	"github.com/gin-gonic/gin"
)

type ContratosHandler struct {
	contratos    service.ContratoService
	asignaciones service.AsignacionService
}

func NewContratosHandler(contratos service.ContratoService, asignaciones service.AsignacionService) *ContratosHandler {
	return &ContratosHandler{contratos: contratos, asignaciones: asignaciones}
}

// Crear godoc
// @Summary Crear contrato de renta
// @Description Reserva el material de cada linea en un lote de origen.
// @Tags contratos
// @Accept json
// @Produce json
// @Param body body dto.CrearContratoRequest true "Contrato"
// @Success 201 {object} dto.ContratoResponse
// @Failure 409 {object} apierror.APIError "Stock insuficiente"
// @Security BearerAuth
// @Router /v1/contratos [post]
func (h *ContratosHandler) Crear(c *gin.Context) {
	var req dto.CrearContratoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.contratos.Crear(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Buscar godoc
// @Summary Buscar contratos
// @Tags contratos
// @Produce json
// @Param q query string false "Numero, cliente o proyecto (sin distinguir acentos)"
// @Param estado query string false "Rentado o Devuelto"
// @Param desde query string false "YYYY-MM-DD"
// @Param hasta query string false "YYYY-MM-DD"
// @Success 200 {array} dto.ContratoResponse
// @Security BearerAuth
// @Router /v1/contratos [get]
func (h *ContratosHandler) Buscar(c *gin.Context) {
	filter, ok := bindFiltro(c)
	if !ok {
		return
	}
	resp, err := h.contratos.Buscar(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ContratosHandler) Obtener(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	resp, err := h.contratos.Obtener(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ContratosHandler) PDF(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	data, numero, err := h.contratos.ContratoPDF(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	adjunto(c, fmt.Sprintf("contrato_%s.pdf", numero), "application/pdf", data)
}

func (h *ContratosHandler) ExportarPDF(c *gin.Context) {
	filter, ok := bindFiltro(c)
	if !ok {
		return
	}
	data, err := h.contratos.ExportarPDF(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	adjunto(c, "contratos.pdf", "application/pdf", data)
}

func (h *ContratosHandler) ExportarCSV(c *gin.Context) {
	filter, ok := bindFiltro(c)
	if !ok {
		return
	}
	data, err := h.contratos.ExportarCSV(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	adjunto(c, "contratos.csv", "text/csv; charset=utf-8", data)
}

// RegistrarDevolucion godoc
// @Summary Registrar devolucion
// @Description Devuelve el material a sus lotes de origen y marca el contrato como Devuelto.
// @Tags contratos
// @Produce json
// @Param id path string true "ID del contrato"
// @Success 200 {object} dto.ContratoResponse
// @Failure 409 {object} apierror.APIError
// @Security BearerAuth
// @Router /v1/contratos/{id}/devolucion [post]
func (h *ContratosHandler) RegistrarDevolucion(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	resp, err := h.asignaciones.RegistrarDevolucion(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RevertirDevolucion godoc
// @Summary Revertir devolucion
// @Description Vuelve a tomar el material de los lotes de origen; falla sin cambios si alguno no alcanza.
// @Tags contratos
// @Produce json
// @Param id path string true "ID del contrato"
// @Success 200 {object} dto.ContratoResponse
// @Failure 409 {object} apierror.APIError
// @Security BearerAuth
// @Router /v1/contratos/{id}/revertir [post]
func (h *ContratosHandler) RevertirDevolucion(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	resp, err := h.asignaciones.RevertirDevolucion(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ContratosHandler) ListarDevoluciones(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	resp, total, err := h.asignaciones.ListarDevoluciones(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp, "total": total})
}

func bindFiltro(c *gin.Context) (dto.ContratoFilter, bool) {
	var filter dto.ContratoFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Parametros de consulta invalidos"))
		return filter, false
	}
	return filter, true
}

func adjunto(c *gin.Context, nombre, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, nombre))
	c.Data(http.StatusOK, contentType, data)
}
