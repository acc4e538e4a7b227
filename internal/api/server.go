package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"taskmind-sync/internal/clerk"
	"taskmind-sync/internal/config"
	"taskmind-sync/internal/db"
	"taskmind-sync/internal/processor"
	"taskmind-sync/internal/redis"
	"taskmind-sync/internal/security"
	"taskmind-sync/internal/store"
	"taskmind-sync/internal/telemetry"
)

type Server struct {
	log      *slog.Logger
	db       *db.DB
	redis    *redis.Client
	store    store.Store
	rec      *processor.Reconciler
	verifier *clerk.Verifier
	tel      *telemetry.Client
	cfg      config.Config
	router   *gin.Engine

	// local fallback when redis is unavailable
	fallbackLimiter *security.LimiterStore
}

func NewServer(log *slog.Logger, dbConn *db.DB, redisClient *redis.Client, st store.Store, rec *processor.Reconciler, verifier *clerk.Verifier, tel *telemetry.Client, cfg config.Config) *Server {
	s := &Server{
		log:             log,
		db:              dbConn,
		redis:           redisClient,
		store:           st,
		rec:             rec,
		verifier:        verifier,
		tel:             tel,
		cfg:             cfg,
		router:          gin.New(),
		fallbackLimiter: security.NewLimiterStore(rate.Limit(1), 60, 10*time.Minute),
	}

	registerValidators()

	// gin mode is process-global; the binaries set it before construction
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())

	// webhook ingestion sits outside the rate limited group: the provider
	// retries aggressively and a 429 only multiplies deliveries
	r.POST("/api/webhooks/clerk", s.handleWebhook)

	v1 := r.Group("/api/v1")
	v1.Use(s.rateLimitMiddleware())
	{
		v1.GET("/health", s.health)

		profile := v1.Group("/profile")
		profile.Use(s.serviceAuthMiddleware())
		{
			profile.GET("/:user_id", s.getProfile)
			profile.PATCH("/:user_id/settings", s.updateSettings)
			profile.PATCH("/:user_id/working-days", s.updateWorkingDays)
			profile.GET("/:user_id/audit-logs", s.listAuditLogs)
		}
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}

// registerValidators adds the "hhmm" rule used by the working-days payload.
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := parseClockMinutes(fl.Field().String())
		return err == nil
	})
}

// parseClockMinutes converts "HH:MM" to minutes since midnight.
func parseClockMinutes(v string) (int, error) {
	parts := strings.Split(v, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, errBadClock
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errBadClock
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errBadClock
	}
	return h*60 + m, nil
}

var errBadClock = errors.New("time must be HH:MM")
