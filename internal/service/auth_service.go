package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"cimbrasys/internal/config"
	"cimbrasys/internal/dto"
	"cimbrasys/internal/model"
	"cimbrasys/internal/repository"
	"cimbrasys/internal/worker"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	tokenAcceso  = "access"
	tokenRefresh = "refresh"
)

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Registrar(ctx context.Context, req dto.RegistroRequest) (*dto.UsuarioResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	Logout(ctx context.Context, jti string, expira time.Time) error
	SolicitarRecuperacion(ctx context.Context, email string) error
	RestablecerContrasena(ctx context.Context, req dto.RestablecerRequest) error
}

// Encolador enqueues background jobs. *worker.Dispatcher implements it.
type Encolador interface {
	EnqueueEmail(ctx context.Context, payload worker.EmailJobPayload) error
	EnqueueReporte(ctx context.Context, payload worker.ReporteJobPayload) error
}

type authService struct {
	repo      repository.UsuarioRepository
	gate      AutorizacionGate
	sesiones  SesionStore
	encolador Encolador
	cfg       *config.Config
}

func NewAuthService(repo repository.UsuarioRepository, gate AutorizacionGate, sesiones SesionStore, encolador Encolador, cfg *config.Config) AuthService {
	return &authService{repo: repo, gate: gate, sesiones: sesiones, encolador: encolador, cfg: cfg}
}

// Login checks the password first, then the allow-list. A valid identity
// that is not allow-listed gets no session at all.
func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrAuthenticationFailed
	}
	if err := s.autorizar(ctx, user.Email); err != nil {
		return nil, err
	}
	return s.emitirTokens(user)
}

func (s *authService) Registrar(ctx context.Context, req dto.RegistroRequest) (*dto.UsuarioResponse, error) {
	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, validacion("el correo %s ya esta registrado", req.Email)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, err
	}
	user := &model.Usuario{
		Email:        req.Email,
		Nombre:       req.Nombre,
		PasswordHash: string(hash),
		Activo:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return &dto.UsuarioResponse{ID: user.ID.String(), Email: user.Email, Nombre: user.Nombre}, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: refresh token invalido o expirado", ErrAuthenticationFailed)
	}
	if tipo, _ := claims["tipo"].(string); tipo != tokenRefresh {
		return nil, fmt.Errorf("%w: token mal formado", ErrAuthenticationFailed)
	}
	jti, _ := claims["jti"].(string)
	if revocado, err := s.sesiones.Revocado(ctx, jti); err != nil {
		return nil, err
	} else if revocado {
		return nil, fmt.Errorf("%w: sesion cerrada", ErrAuthenticationFailed)
	}

	userIDStr, _ := claims["user_id"].(string)
	uid, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("%w: token mal formado", ErrAuthenticationFailed)
	}
	user, err := s.repo.FindByID(ctx, uid)
	if err != nil || !user.Activo {
		return nil, fmt.Errorf("%w: usuario no encontrado o inactivo", ErrAuthenticationFailed)
	}
	if err := s.autorizar(ctx, user.Email); err != nil {
		return nil, err
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, fmt.Errorf("%w: token mal formado", ErrAuthenticationFailed)
	}
	if cortado, err := emitidoAntesDelCorte(ctx, s.sesiones, userIDStr, iat.Time); err != nil {
		return nil, err
	} else if cortado {
		return nil, fmt.Errorf("%w: sesion cerrada", ErrAuthenticationFailed)
	}

	// Rotate: the used refresh token cannot be replayed.
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		if err := s.sesiones.Revocar(ctx, jti, exp.Time); err != nil {
			return nil, err
		}
	}
	return s.emitirTokens(user)
}

func (s *authService) Logout(ctx context.Context, jti string, expira time.Time) error {
	return s.sesiones.Revocar(ctx, jti, expira)
}

// SolicitarRecuperacion never reveals whether the email exists.
func (s *authService) SolicitarRecuperacion(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	token, err := tokenAleatorio()
	if err != nil {
		return err
	}
	if err := s.sesiones.GuardarReset(ctx, token, user.Email, s.cfg.PasswordResetTTL); err != nil {
		return err
	}

	enlace := fmt.Sprintf("%s/restablecer-contrasena?token=%s", s.cfg.PublicURL, token)
	payload := worker.EmailJobPayload{
		ToEmail: user.Email,
		Subject: "Recuperacion de contrasena - CIMBRA-SYS",
		Body: fmt.Sprintf("Hola %s,\n\nPara restablecer tu contrasena abre el siguiente enlace:\n%s\n\n"+
			"El enlace vence en %s. Si no solicitaste el cambio ignora este mensaje.\n",
			user.Nombre, enlace, s.cfg.PasswordResetTTL),
	}
	if err := s.encolador.EnqueueEmail(ctx, payload); err != nil {
		log.Error().Err(err).Msg("auth: no se pudo encolar correo de recuperacion")
		return err
	}
	return nil
}

func (s *authService) RestablecerContrasena(ctx context.Context, req dto.RestablecerRequest) error {
	email, err := s.sesiones.ConsumirReset(ctx, req.Token)
	if err != nil {
		return err
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return noEncontrado("usuario %s", email)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	return s.repo.Update(ctx, user)
}

func (s *authService) autorizar(ctx context.Context, email string) error {
	veredicto, err := s.gate.Verificar(ctx, email)
	switch veredicto {
	case Autorizado:
		return nil
	case Denegado:
		return ErrNotAuthorized
	default:
		return fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
}

func (s *authService) emitirTokens(user *model.Usuario) (*dto.LoginResponse, error) {
	accessToken, err := s.generateToken(user, tokenAcceso, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateToken(user, tokenRefresh, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User:         dto.UsuarioResponse{ID: user.ID.String(), Email: user.Email, Nombre: user.Nombre},
	}, nil
}

func (s *authService) generateToken(user *model.Usuario, tipo string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"tipo":    tipo,
		"jti":     uuid.NewString(),
		"exp":     now.Add(duration).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func tokenAleatorio() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
