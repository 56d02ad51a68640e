package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tempizhere/goslug/internal/app"
	"github.com/tempizhere/goslug/internal/clicks"
	"github.com/tempizhere/goslug/internal/config"
	appgrpc "github.com/tempizhere/goslug/internal/grpc"
	"github.com/tempizhere/goslug/internal/grpc/proto"
	"github.com/tempizhere/goslug/internal/log"
	"github.com/tempizhere/goslug/internal/ratelimit"
	"github.com/tempizhere/goslug/internal/repository"
	"github.com/tempizhere/goslug/internal/service"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	// Получаем конфигурацию
	cfg := config.NewConfig()
	logger := log.NewLogger()
	defer func() {
		_ = logger.Sync()
	}()

	// Выбираем хранилище: PostgreSQL при заданном DSN, иначе память
	db, err := app.NewDB(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	var repo repository.Repository
	if db != nil {
		pgRepo, err := repository.NewPostgresRepository(db, logger)
		if err != nil {
			logger.Fatal("Failed to initialize postgres repository", zap.Error(err))
		}
		repo = pgRepo
		logger.Info("Using PostgreSQL repository")
	} else {
		repo = repository.NewMemoryRepository()
		logger.Info("Using in-memory repository")
	}

	svc := service.NewService(repo, cfg.BaseURL, cfg.JWTSecret)
	svc.SetAllocator(cfg.SlugLength, cfg.SlugAttempts)

	// Фоновые воркеры живут до отмены контекста
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := clicks.NewRecorder(repo, logger, cfg.ClickQueueSize, cfg.ClickWorkers)
	recorder.Start(ctx)

	limiter := ratelimit.NewLimiter()
	limiter.SetLimits(ratelimit.ClassRedirect, ratelimit.Limits{
		Burst:           cfg.RedirectBurst,
		BurstWindow:     time.Second,
		Sustained:       cfg.RedirectSustained,
		SustainedWindow: time.Minute,
	})
	limiter.SetLimits(ratelimit.ClassShorten, ratelimit.Limits{
		Burst:           cfg.ShortenBurst,
		BurstWindow:     time.Second,
		Sustained:       cfg.ShortenSustained,
		SustainedWindow: time.Minute,
	})
	limiter.StartCleanup(ctx, time.Minute, 10*time.Minute)

	appInstance := app.NewApp(svc, recorder, db, logger)
	router := app.NewRouter(appInstance, svc, cfg, limiter, logger)

	httpServer := &http.Server{
		Addr:    cfg.RunAddr,
		Handler: router,
	}

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(
			appgrpc.LoggingInterceptor(logger),
			appgrpc.AuthInterceptor(svc, logger),
			appgrpc.RateLimitInterceptor(limiter, logger),
			appgrpc.TrustedSubnetInterceptor(cfg.TrustedSubnet, logger),
		))
		proto.RegisterSlugServiceServer(grpcServer, appgrpc.NewServer(svc, recorder, db, logger))

		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("Failed to listen for gRPC", zap.Error(err))
		}
		go func() {
			logger.Info("Starting gRPC server", zap.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(listener); err != nil {
				logger.Error("gRPC server stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", cfg.RunAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Ждём сигнал завершения
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	<-sigCtx.Done()

	logger.Info("Shutting down")

	// Сначала перестаём принимать запросы, затем доливаем очередь переходов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	cancel()
	recorder.Wait()

	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete", zap.Int64("dropped_clicks", recorder.Dropped()))
}
