package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/complianceops/escalation-engine/pkg/config"
	"github.com/complianceops/escalation-engine/pkg/metrics"
	"github.com/complianceops/escalation-engine/pkg/ratelimit"
)

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

type Server struct {
	log    *zap.SugaredLogger
	gin    *gin.Engine
	config config.Config
}

func NewServer(log *zap.Logger, cfg config.Config, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
	)

	engine.NoRoute(ServeSPA("/", "./frontend/dist/"))

	if debug {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins: []string{"http://localhost:5173", "127.0.0.1:8080"},
				AllowMethods: []string{"GET", "PUT", "PATCH", "POST", "DELETE", "OPTIONS"},
				AllowHeaders: []string{"Origin", "Authorization", "Content-Type"},
				MaxAge:       12 * time.Hour,
			}),
		)
	}

	if cfg.Server.RateLimitRPS > 0 {
		limiterCfg := ratelimit.DefaultAPIConfig()
		limiterCfg.Rate = cfg.Server.RateLimitRPS
		if cfg.Server.RateLimitBurst > 0 {
			limiterCfg.Burst = cfg.Server.RateLimitBurst
		}
		engine.Use(ratelimit.New(limiterCfg).Middleware())
	}

	if len(cfg.Server.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
			log.Sugar().Errorw("failed to set trusted proxies", "error", err)
		}
	}

	s := &Server{
		log:    log.Sugar(),
		gin:    engine,
		config: cfg,
	}

	engine.GET("api/config", s.getConfig)
	engine.GET("healthz", s.getHealth)
	engine.GET("metrics", gin.WrapH(metrics.MetricsHandler()))

	return s
}

func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api")
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) Listen() {
	var err error
	if s.config.Server.TLSCertFile != "" && s.config.Server.TLSKeyFile != "" {
		s.log.Infow("listening with TLS", "address", s.config.Server.ListenAddress)
		err = s.gin.RunTLS(s.config.Server.ListenAddress, s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
	} else {
		s.log.Infow("listening", "address", s.config.Server.ListenAddress)
		err = s.gin.Run(s.config.Server.ListenAddress)
	}
	if err != nil {
		s.log.Errorw("server terminated", "error", err)
	}
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.gin
}

type FrontendConfig struct {
	BaseURL      string `json:"baseURL"`
	BrandingName string `json:"brandingName"`
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, FrontendConfig{
		BaseURL:      s.config.Frontend.BaseURL,
		BrandingName: s.config.Frontend.BrandingName,
	})
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
