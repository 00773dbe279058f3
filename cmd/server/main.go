package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/idanlevi/theory-exam/internal/config"
	"github.com/idanlevi/theory-exam/internal/delivery/httpapi"
	"github.com/idanlevi/theory-exam/internal/infra/postgres"
	"github.com/idanlevi/theory-exam/internal/infra/postgres/repository"
	"github.com/idanlevi/theory-exam/internal/logger"
	"github.com/idanlevi/theory-exam/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn, err := cfg.DB.DSN()
	if err != nil {
		zlog.Fatal("database is not configured", zap.Error(err))
	}

	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{
		MaxConns:        int32(cfg.DB.MaxConnections),
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		zlog.Fatal("connect to database", zap.Error(err))
	}
	defer pool.Close()

	// Initialize repositories and services.
	transactor := postgres.NewTransactor(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	resultRepo := repository.NewResultRepository(transactor)

	selector := service.NewExamSelector(questionRepo)
	shuffler := service.NewOptionShuffler()
	examService := service.NewExamService(selector, shuffler, sessionRepo, answerRepo, resultRepo, zlog)

	janitor := service.NewJanitor(examService, cfg.Session.MaxIdle, zlog)
	go janitor.Start(ctx)

	app := fiber.New()
	handler := httpapi.NewHandler(examService, zlog)
	handler.Register(app)

	go func() {
		<-ctx.Done()
		zlog.Info("shutdown signal received")
		if err := app.Shutdown(); err != nil {
			zlog.Error("server shutdown", zap.Error(err))
		}
	}()

	zlog.Info("starting API server", zap.String("port", cfg.HTTP.Port))
	if err := app.Listen(":" + cfg.HTTP.Port); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}
