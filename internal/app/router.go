package app

import (
	"github.com/go-chi/chi/v5"
	"github.com/tempizhere/goslug/internal/config"
	"github.com/tempizhere/goslug/internal/middleware"
	"github.com/tempizhere/goslug/internal/ratelimit"
	"github.com/tempizhere/goslug/internal/service"
	"go.uber.org/zap"
)

// NewRouter собирает маршрутизатор с цепочками middleware.
// Редиректы лимитируются по IP без аутентификации; создание ссылок и
// статистика требуют личности и лимитируются по пользователю
func NewRouter(a *App, svc *service.Service, cfg *config.Config, limiter *ratelimit.Limiter, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.GzipMiddleware)

	redirectLimit := middleware.RateLimitMiddleware(limiter, ratelimit.ClassRedirect, middleware.IPKey(), logger)
	shortenLimit := middleware.RateLimitMiddleware(limiter, ratelimit.ClassShorten, middleware.UserKey(), logger)
	auth := middleware.AuthMiddleware(svc, cfg, logger)

	// Аутентифицированная поверхность
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(shortenLimit)
		r.Get("/", a.HandleIndex)
		r.Post("/", a.HandleShortenForm)
		r.Post("/api/shorten", a.HandleJSONShorten)
		r.Get("/{slug}/stats", a.HandleStats)
		r.Delete("/{slug}", a.HandleDeleteLink)
	})

	// Анонимные редиректы: лимит проверяется до похода в хранилище
	r.Group(func(r chi.Router) {
		r.Use(redirectLimit)
		r.Get("/{slug}", a.HandleRedirect)
	})

	// Внутренняя статистика только из доверенной подсети
	r.Group(func(r chi.Router) {
		r.Use(middleware.TrustedSubnetMiddleware(cfg.TrustedSubnet, logger))
		r.Get("/api/internal/stats", a.HandleInternalStats)
	})

	r.Get("/ping", a.HandlePing)

	return r
}
