package handler

import (
	"errors"
	"net/http"
	"reflect"

	"cimbrasys/internal/apierror"
	"cimbrasys/internal/middleware"
	"cimbrasys/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=1 work on it instead of panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		var ves validator.ValidationErrors
		if errors.As(err, &ves) {
			for _, fe := range ves {
				fields[fe.Field()] = fe.Tag()
			}
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// parseID reads the :id path param. Writes a 400 and returns false when it
// is not a UUID.
func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and answered with a generic 500.
func writeError(c *gin.Context, err error) {
	var stock *service.StockInsuficienteError
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, apierror.WithCode("validation_error", err.Error()))
	case errors.Is(err, service.ErrAuthenticationFailed):
		c.JSON(http.StatusUnauthorized, apierror.WithCode("authentication_failed", err.Error()))
	case errors.Is(err, service.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, apierror.WithCode("not_authorized", err.Error()))
	case errors.Is(err, service.ErrReferenceNotFound):
		c.JSON(http.StatusNotFound, apierror.WithCode("not_found", err.Error()))
	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, apierror.WithCode("insufficient_stock", err.Error()))
	case errors.Is(err, service.ErrInvalidStateTransition):
		c.JSON(http.StatusConflict, apierror.WithCode("invalid_state", err.Error()))
	case errors.Is(err, service.ErrConcurrentModification):
		c.JSON(http.StatusConflict, &apierror.APIError{Detail: err.Error(), Code: "concurrent_modification", Retryable: true})
	case errors.Is(err, service.ErrLookupFailed):
		c.JSON(http.StatusServiceUnavailable, &apierror.APIError{Detail: err.Error(), Code: "lookup_failed", Retryable: true})
	default:
		log.Error().Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
	}
}
