package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cimbrasys/internal/config"
	"cimbrasys/internal/dto"
	"cimbrasys/internal/model"
	"cimbrasys/internal/repository/memstore"
	"cimbrasys/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	correo   = "duena@cimbra.test"
	password = "contrasena-1"
)

type api struct {
	t        *testing.T
	engine   *gin.Engine
	store    *memstore.Store
	sesiones *memstore.Sesiones
	cola     *memstore.Cola
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Env:                   "test",
		JWTSecret:             "secreto-de-prueba",
		JWTExpirationHours:    1,
		JWTRefreshHours:       24,
		PasswordResetTTL:      time.Hour,
		TxMaxRetries:          3,
		DiasRenta:             20,
		PrecioUnitarioDefault: 17,
	}
	store := memstore.New()
	repos := router.Repositorios{
		Usuarios:     store.Usuarios(),
		Autenticados: store.Autenticados(),
		Clientes:     store.Clientes(),
		Inventario:   store.Inventario(),
		Contratos:    store.Contratos(),
		Asignaciones: store.AsignacionesRepo(),
		Devoluciones: store.DevolucionesRepo(),
		Tx:           store.TxRunner(cfg.TxMaxRetries),
	}
	sesiones := memstore.NewSesiones()
	cola := &memstore.Cola{}
	svc := router.NewServicios(cfg, repos, nil, sesiones, cola)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &api{t: t, engine: router.New(ctx, cfg, svc, nil), store: store, sesiones: sesiones, cola: cola}
}

func (a *api) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// sesion registers the owner, allow-lists them and returns an access token.
func (a *api) sesion() string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/v1/auth/registro", "", dto.RegistroRequest{Email: correo, Nombre: "Duena", Password: password})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	a.store.Allow(correo)

	w = a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Email: correo, Password: password})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return decode[dto.LoginResponse](a.t, w).AccessToken
}

func TestLogin_NoAutorizado(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodPost, "/v1/auth/registro", "", dto.RegistroRequest{Email: correo, Nombre: "Duena", Password: password})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Email: correo, Password: password})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "not_authorized")

	w = a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Email: correo, Password: "equivocada"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRutasProtegidas(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodGet, "/v1/inventario", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := a.sesion()
	w = a.do(http.MethodGet, "/v1/inventario", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Removing the email signs the user out on the next request.
	require.NoError(t, a.store.Autenticados().Remove(context.Background(), correo))
	w = a.do(http.MethodGet, "/v1/inventario", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 1, a.sesiones.Revocados())

	a.store.Allow(correo)
	w = a.do(http.MethodGet, "/v1/inventario", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "el token revocado no vuelve a ser valido")
}

func TestRefreshTrasDenegacionYReautorizacion(t *testing.T) {
	a := newAPI(t)
	a.sesion()
	w := a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Email: correo, Password: password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[dto.LoginResponse](t, w)

	require.NoError(t, a.store.Autenticados().Remove(context.Background(), correo))
	w = a.do(http.MethodGet, "/v1/inventario", login.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	a.store.Allow(correo)
	w = a.do(http.MethodPost, "/v1/auth/refresh", "", dto.RefreshRequest{RefreshToken: login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
}

func TestConsultaFallidaEsReintentable(t *testing.T) {
	a := newAPI(t)
	token := a.sesion()
	a.store.FailLookups = assert.AnError

	w := a.do(http.MethodGet, "/v1/clientes", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, true, body["retryable"])
	assert.Zero(t, a.sesiones.Revocados())
}

func TestFlujoDeRenta(t *testing.T) {
	a := newAPI(t)
	token := a.sesion()

	w := a.do(http.MethodPost, "/v1/inventario", token, dto.CrearLoteRequest{TipoMaterial: model.TipoTabla, Cantidad: 100})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	lote := decode[dto.LoteResponse](t, w)

	w = a.do(http.MethodPost, "/v1/clientes", token, dto.ClienteRequest{Nombre: "Unión Obrera", Telefono: "555-0101", Proyecto: "Torre Norte"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cliente := decode[dto.ClienteResponse](t, w)

	w = a.do(http.MethodPost, "/v1/contratos", token, dto.CrearContratoRequest{
		ClienteID:  cliente.ID,
		Materiales: []dto.LineaContratoRequest{{TipoMaterial: model.TipoTabla, Cantidad: 25}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	contrato := decode[dto.ContratoResponse](t, w)
	assert.Equal(t, model.ContratoRentado, contrato.Estado)
	assert.Equal(t, "425", contrato.CostoTotal.String())

	w = a.do(http.MethodGet, "/v1/inventario/"+lote.ID, token, nil)
	assert.Equal(t, 75, decode[dto.LoteResponse](t, w).Cantidad)

	w = a.do(http.MethodDelete, "/v1/inventario/"+lote.ID, token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodGet, "/v1/contratos?q=union", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]dto.ContratoResponse](t, w), 1)

	w = a.do(http.MethodPost, "/v1/contratos/"+contrato.ID+"/devolucion", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = a.do(http.MethodPost, "/v1/contratos/"+contrato.ID+"/devolucion", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodGet, "/v1/devoluciones", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "25 Tabla")

	w = a.do(http.MethodPost, "/v1/contratos/"+contrato.ID+"/revertir", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.ContratoRentado, decode[dto.ContratoResponse](t, w).Estado)

	w = a.do(http.MethodGet, "/v1/reportes", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rep := decode[dto.ReporteResponse](t, w)
	assert.Equal(t, 1, rep.ContratosActivos)
	assert.Equal(t, 25, rep.UnidadesRentadas)

	w = a.do(http.MethodGet, "/v1/contratos/export.csv", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), contrato.Numero)

	w = a.do(http.MethodGet, "/v1/contratos/"+contrato.ID+"/pdf", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))

	w = a.do(http.MethodPost, "/v1/reportes/enviar", token, dto.EnviarReporteRequest{Email: correo})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Len(t, a.cola.Reportes, 1)
}

func TestErroresDeEntrada(t *testing.T) {
	a := newAPI(t)
	token := a.sesion()

	w := a.do(http.MethodPost, "/v1/inventario", token, `{"tipo_material":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/v1/contratos", token, dto.CrearContratoRequest{ClienteID: "no-es-uuid"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = a.do(http.MethodPost, "/v1/inventario", token, dto.CrearLoteRequest{TipoMaterial: "Viga"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = a.do(http.MethodGet, "/v1/contratos/no-es-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/v1/contratos?desde=2025-02-01&hasta=2025-01-01", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestStockInsuficienteResponde409(t *testing.T) {
	a := newAPI(t)
	token := a.sesion()
	a.store.SeedLote("CIM-01", model.TipoTabla, 3)
	cliente := a.store.SeedCliente("Aceros", "555", "Puente")

	w := a.do(http.MethodPost, "/v1/contratos", token, dto.CrearContratoRequest{
		ClienteID:  cliente.ID.String(),
		Materiales: []dto.LineaContratoRequest{{TipoMaterial: model.TipoTabla, Cantidad: 5}},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient_stock")
}

func TestLogout(t *testing.T) {
	a := newAPI(t)
	token := a.sesion()

	w := a.do(http.MethodPost, "/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = a.do(http.MethodGet, "/v1/clientes", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
