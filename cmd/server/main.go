package main

import (
	"context"
	"log"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/vidsum/backend/api/handler"
	"github.com/vidsum/backend/identity/gotrue"
	"github.com/vidsum/backend/internal/config"
	"github.com/vidsum/backend/internal/infrastructure/monitor"
	redisInfra "github.com/vidsum/backend/internal/infrastructure/redis"
	"github.com/vidsum/backend/internal/middleware"
	"github.com/vidsum/backend/internal/router"
	"github.com/vidsum/backend/internal/services"
	"github.com/vidsum/backend/internal/services/lifecycle"
	"github.com/vidsum/backend/pkg/httpcontext"
	"github.com/vidsum/backend/pkg/logger"
	"github.com/vidsum/backend/repository"
	boltRepo "github.com/vidsum/backend/repository/bolt"
	redisRepo "github.com/vidsum/backend/repository/redis"
	authUC "github.com/vidsum/backend/usecase/auth"
	"github.com/vidsum/backend/usecase/ratelimit"
	"github.com/vidsum/backend/usecase/verification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	boltStore, err := boltRepo.Open(cfg.Cooldown.BoltPath, "authstate")
	if err != nil {
		zapLogger.Fatal("failed to open auth state store", zap.Error(err))
	}
	manager.Register("bolt_store", func(ctx context.Context) error {
		return boltStore.Close()
	})

	var kvStore repository.KVStore = boltStore
	var redisClient *redislib.Client
	if cfg.Cooldown.Backend == "redis" {
		client, err := redisInfra.NewClient(cfg.Redis)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return client.Close()
		})
		kvStore = redisRepo.NewKVStore(client)
		redisClient = client
	}

	identityClient := gotrue.New(gotrue.Config{
		BaseURL: cfg.Identity.BaseURL,
		APIKey:  cfg.Identity.APIKey,
		Timeout: cfg.Identity.Timeout,
	}, zapLogger)

	if cfg.Identity.AutoRefreshSessions {
		go identityClient.AutoRefresh(appCtx)
	}

	mon := monitor.New(identityClient, boltStore, redisClient, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	controller := authUC.New(identityClient, kvStore, authUC.RedirectURLs{
		Verification:  cfg.VerificationRedirectURL(),
		PasswordReset: cfg.PasswordResetRedirectURL(),
		OAuth:         cfg.OAuthRedirectURL(),
	}, zapLogger)
	controller.Init(appCtx)
	manager.Register("session_controller", func(ctx context.Context) error {
		return controller.Close()
	})

	limiter := ratelimit.New(kvStore, cfg.Cooldown.Window, zapLogger)
	flow := verification.NewFlow(controller, limiter, zapLogger)

	sweeper := services.NewSweeper(boltStore, cfg.Cooldown.Window, cfg.Cooldown.SweepSchedule, zapLogger)
	sweeper.Start()
	manager.Register("cooldown_sweeper", func(ctx context.Context) error {
		sweeper.Stop(ctx)
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:         apiHandler.NewAuthHandler(controller, limiter, ctxAdapter, zapLogger),
		Verification: apiHandler.NewVerificationHandler(flow, limiter, cfg.Identity.SiteURL, ctxAdapter, zapLogger),
		Health:       apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	sessionGuard := middleware.RequireSession(controller, true, zapLogger)
	r := router.New(handlers, sessionGuard)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
