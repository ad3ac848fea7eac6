package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lotshot/lotshot/internal/config"
	"github.com/lotshot/lotshot/internal/ratelimit"
	reconciledomain "github.com/lotshot/lotshot/internal/reconcile/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServerParam struct {
	fx.In

	Engine       *gin.Engine
	Log          *zap.Logger
	Config       config.Config
	ReconcileSvc reconciledomain.Service
	RunGuard     ratelimit.RunGuard
}

type Server struct {
	engine       *gin.Engine
	log          *zap.Logger
	cfg          config.Config
	reconcileSvc reconciledomain.Service
	runGuard     ratelimit.RunGuard
}

func NewServer(p ServerParam) *Server {
	return &Server{
		engine:       p.Engine,
		log:          p.Log.Named("server"),
		cfg:          p.Config,
		reconcileSvc: p.ReconcileSvc,
		runGuard:     p.RunGuard,
	}
}

func NewEngine(reg *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return r
}

func (s *Server) RegisterRoutes() {
	v1 := s.engine.Group("/v1")
	v1.POST("/reconciliation/runs", s.RunReconciliation)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// Module wires the HTTP surface: the reconciliation trigger, health and
// prometheus endpoints.
var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)
