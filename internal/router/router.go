package router

import (
	"context"
	"time"

	"cimbrasys/internal/config"
	"cimbrasys/internal/handler"
	"cimbrasys/internal/metrics"
	"cimbrasys/internal/middleware"
	"cimbrasys/internal/repository"
	"cimbrasys/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Servicios is everything the HTTP layer depends on.
type Servicios struct {
	Auth         service.AuthService
	Gate         service.AutorizacionGate
	Sesiones     service.SesionStore
	Inventario   service.InventarioService
	Clientes     service.ClienteService
	Contratos    service.ContratoService
	Asignaciones service.AsignacionService
	Reportes     service.ReporteService
}

// Repositorios groups the data access layer so the same wiring serves
// PostgreSQL and the in-memory store used by tests.
type Repositorios struct {
	Usuarios     repository.UsuarioRepository
	Autenticados repository.AutenticadoRepository
	Clientes     repository.ClienteRepository
	Inventario   repository.InventarioRepository
	Contratos    repository.ContratoRepository
	Asignaciones repository.AsignacionRepository
	Devoluciones repository.DevolucionRepository
	Tx           repository.TxRunner
}

func NewRepositorios(cfg *config.Config, db *gorm.DB) Repositorios {
	return Repositorios{
		Usuarios:     repository.NewUsuarioRepository(db),
		Autenticados: repository.NewAutenticadoRepository(db),
		Clientes:     repository.NewClienteRepository(db),
		Inventario:   repository.NewInventarioRepository(db),
		Contratos:    repository.NewContratoRepository(db),
		Asignaciones: repository.NewAsignacionRepository(db),
		Devoluciones: repository.NewDevolucionRepository(db),
		Tx: repository.NewTxRunner(db, cfg.TxMaxRetries, repository.WithOnRetry(func(attempt int, err error) {
			metrics.TxReintentos.Inc()
			log.Debug().Err(err).Int("attempt", attempt).Msg("tx: serialization failure, retrying")
		})),
	}
}

// NewServicios wires services over repos. rdb may be nil (report cache off).
func NewServicios(cfg *config.Config, repos Repositorios, rdb *redis.Client, sesiones service.SesionStore, encolador service.Encolador) *Servicios {
	gate := service.NewAutorizacionGate(repos.Autenticados)
	cache := service.NewReporteCache(rdb, cfg.ReporteCacheTTL)
	return &Servicios{
		Auth:         service.NewAuthService(repos.Usuarios, gate, sesiones, encolador, cfg),
		Gate:         gate,
		Sesiones:     sesiones,
		Inventario:   service.NewInventarioService(repos.Inventario, repos.Asignaciones, repos.Tx),
		Clientes:     service.NewClienteService(repos.Clientes),
		Contratos:    service.NewContratoService(repos.Contratos, repos.Clientes, repos.Inventario, repos.Asignaciones, repos.Tx, cache, cfg),
		Asignaciones: service.NewAsignacionService(repos.Contratos, repos.Inventario, repos.Asignaciones, repos.Devoluciones, repos.Tx, cache),
		Reportes:     service.NewReporteService(repos.Contratos, cache, encolador),
	}
}

// New returns the configured Gin engine. health may be nil. Background
// middleware goroutines stop when ctx ends.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(ctx context.Context, cfg *config.Config, svc *Servicios, health gin.HandlerFunc) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(ctx, 1000, time.Minute))

	authH := handler.NewAuthHandler(svc.Auth)
	inventarioH := handler.NewInventarioHandler(svc.Inventario)
	clientesH := handler.NewClientesHandler(svc.Clientes)
	contratosH := handler.NewContratosHandler(svc.Contratos, svc.Asignaciones)
	reportesH := handler.NewReportesHandler(svc.Reportes)

	// ── Public ───────────────────────────────────────────────────────────────
	if health != nil {
		r.GET("/health", health)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/v1/auth")
	{
		limiter := middleware.LoginRateLimiter(ctx)
		auth.POST("/login", limiter, authH.Login)
		auth.POST("/registro", limiter, authH.Registro)
		auth.POST("/refresh", authH.Refresh)
		auth.POST("/recuperar-contrasena", limiter, authH.Recuperar)
		auth.POST("/restablecer-contrasena", limiter, authH.Restablecer)
	}

	// ── Protected: valid session + allow-listed email ────────────────────────
	v1 := r.Group("/v1",
		middleware.JWTAuth(cfg.JWTSecret, svc.Sesiones),
		middleware.RequireAllowListed(svc.Gate, svc.Sesiones, time.Duration(cfg.JWTRefreshHours)*time.Hour),
	)
	{
		v1.POST("/auth/logout", authH.Logout)

		inv := v1.Group("/inventario")
		{
			inv.GET("", inventarioH.Listar)
			inv.POST("", inventarioH.Registrar)
			inv.GET("/:id", inventarioH.Obtener)
			inv.PUT("/:id", inventarioH.Actualizar)
			inv.DELETE("/:id", inventarioH.Eliminar)
		}

		cli := v1.Group("/clientes")
		{
			cli.GET("", clientesH.Listar)
			cli.POST("", clientesH.Crear)
			cli.GET("/:id", clientesH.Obtener)
			cli.PUT("/:id", clientesH.Actualizar)
			cli.DELETE("/:id", clientesH.Eliminar)
		}

		con := v1.Group("/contratos")
		{
			con.GET("", contratosH.Buscar)
			con.POST("", contratosH.Crear)
			con.GET("/export.pdf", contratosH.ExportarPDF)
			con.GET("/export.csv", contratosH.ExportarCSV)
			con.GET("/:id", contratosH.Obtener)
			con.GET("/:id/pdf", contratosH.PDF)
			con.POST("/:id/devolucion", contratosH.RegistrarDevolucion)
			con.POST("/:id/revertir", contratosH.RevertirDevolucion)
		}

		v1.GET("/devoluciones", contratosH.ListarDevoluciones)

		v1.GET("/reportes", reportesH.Resumen)
		v1.POST("/reportes/enviar", reportesH.Enviar)
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
