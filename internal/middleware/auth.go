package middleware

import (
	"net/http"
	"strings"
	"time"

	"cimbrasys/internal/apierror"
	"cimbrasys/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const (
	ClaimsKey = "claims"
)

// JWTClaims are the claims of every access and refresh token.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Tipo   string `json:"tipo"`
	jwt.RegisteredClaims
}

// JWTAuth validates the Bearer access token and rejects revoked ones.
func JWTAuth(secret string, sesiones service.SesionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticacion requerida"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Tipo != "access" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token invalido o expirado"))
			return
		}

		revocado, err := sesiones.Revocado(c.Request.Context(), claims.ID)
		if err != nil {
			log.Error().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("auth: revocation lookup failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				apierror.APIError{Detail: "No se pudo validar la sesion, intente de nuevo", Retryable: true})
			return
		}
		if revocado {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Sesion cerrada"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireAllowListed re-runs the authorization gate on every protected
// request. A Denegado verdict signs the user out: the access token is revoked
// and every refresh token issued so far is cut off for refreshTTL. A failed
// lookup leaves the session alone and asks the client to retry.
func RequireAllowListed(gate service.AutorizacionGate, sesiones service.SesionStore, refreshTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticacion requerida"))
			return
		}

		veredicto, err := gate.Verificar(c.Request.Context(), claims.Email)
		switch veredicto {
		case service.Autorizado:
			c.Next()
		case service.Denegado:
			if claims.ExpiresAt != nil {
				if err := sesiones.Revocar(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
					log.Error().Err(err).Str("email", claims.Email).Msg("auth: forced sign-out failed")
				}
			}
			if err := sesiones.CerrarSesiones(c.Request.Context(), claims.UserID, time.Now(), refreshTTL); err != nil {
				log.Error().Err(err).Str("email", claims.Email).Msg("auth: refresh cut-off failed")
			}
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.WithCode("not_authorized", service.ErrNotAuthorized.Error()))
		default:
			log.Warn().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("auth: allow-list lookup failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, apierror.APIError{
				Detail:    service.ErrLookupFailed.Error(),
				Code:      "lookup_failed",
				Retryable: true,
			})
		}
	}
}

// GetClaims returns the typed claims set by JWTAuth, or nil.
func GetClaims(c *gin.Context) *JWTClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*JWTClaims)
	return claims
}
