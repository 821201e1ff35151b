package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cimbrasys/internal/repository/memstore"
	"cimbrasys/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secreto = "secreto-de-prueba"

func init() { gin.SetMode(gin.TestMode) }

type gateFijo struct {
	v   service.Veredicto
	err error
}

func (g gateFijo) Verificar(context.Context, string) (service.Veredicto, error) { return g.v, g.err }

func firmar(t *testing.T, tipo, jti string) string {
	t.Helper()
	claims := JWTClaims{
		UserID: "u-1",
		Email:  "ana@example.com",
		Tipo:   tipo,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secreto))
	require.NoError(t, err)
	return s
}

func protegido(gate service.AutorizacionGate, sesiones service.SesionStore) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", JWTAuth(secreto, sesiones), RequireAllowListed(gate, sesiones, 24*time.Hour), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).Email)
	})
	return r
}

func pedir(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth_SinTokenOTokenInvalido(t *testing.T) {
	r := protegido(gateFijo{v: service.Autorizado}, memstore.NewSesiones())

	assert.Equal(t, http.StatusUnauthorized, pedir(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, pedir(r, "basura").Code)
	assert.Equal(t, http.StatusUnauthorized, pedir(r, firmar(t, "refresh", "j1")).Code)
}

func TestJWTAuth_TokenRevocado(t *testing.T) {
	sesiones := memstore.NewSesiones()
	require.NoError(t, sesiones.Revocar(context.Background(), "j1", time.Now().Add(time.Hour)))
	r := protegido(gateFijo{v: service.Autorizado}, sesiones)

	assert.Equal(t, http.StatusUnauthorized, pedir(r, firmar(t, "access", "j1")).Code)
}

func TestRequireAllowListed_Autorizado(t *testing.T) {
	r := protegido(gateFijo{v: service.Autorizado}, memstore.NewSesiones())

	w := pedir(r, firmar(t, "access", "j1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana@example.com", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequireAllowListed_DenegadoCierraLaSesion(t *testing.T) {
	sesiones := memstore.NewSesiones()
	r := protegido(gateFijo{v: service.Denegado}, sesiones)
	token := firmar(t, "access", "j1")

	w := pedir(r, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "not_authorized")
	assert.Equal(t, 1, sesiones.Revocados())

	// the same token is now rejected before the gate runs
	assert.Equal(t, http.StatusUnauthorized, pedir(r, token).Code)

	corte, err := sesiones.CorteSesiones(context.Background(), "u-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), corte, time.Minute)
}

func TestRequireAllowListed_ConsultaFallidaNoCierraLaSesion(t *testing.T) {
	sesiones := memstore.NewSesiones()
	r := protegido(gateFijo{v: service.ConsultaFallida, err: errors.New("timeout")}, sesiones)

	w := pedir(r, firmar(t, "access", "j1"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"retryable":true`)
	assert.Equal(t, 0, sesiones.Revocados())
	corte, err := sesiones.CorteSesiones(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, corte.IsZero())
}

func TestRequestID_RespetaElEncabezado(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRecovery_NoExponePanico(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/x", func(*gin.Context) { panic("secreto interno") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secreto interno")
}

func TestLimitador(t *testing.T) {
	l := nuevoLimitador(2, time.Minute)
	ahora := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return ahora }

	ok, _ := l.permitir("1.1.1.1")
	assert.True(t, ok)
	ok, _ = l.permitir("1.1.1.1")
	assert.True(t, ok)
	ok, _ = l.permitir("1.1.1.1")
	assert.False(t, ok)
	ok, _ = l.permitir("2.2.2.2")
	assert.True(t, ok)

	ahora = ahora.Add(2 * time.Minute)
	assert.Equal(t, 2, l.purgar())
	ok, _ = l.permitir("1.1.1.1")
	assert.True(t, ok)
}

func TestLimitador_PurgaHastaQueTerminaElContexto(t *testing.T) {
	l := nuevoLimitador(2, time.Minute)
	ahora := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return ahora.Add(2 * time.Minute) }
	l.ips["1.1.1.1"] = &ventanaIP{count: 1, fin: ahora.Add(time.Minute)}

	ctx, cancel := context.WithCancel(context.Background())
	terminado := make(chan struct{})
	go func() {
		l.purgarPeriodicamente(ctx, "test", 10*time.Millisecond)
		close(terminado)
	}()

	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.ips) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-terminado:
	case <-time.After(time.Second):
		t.Fatal("la purga siguio corriendo tras cancelar el contexto")
	}
}
