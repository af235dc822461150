package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"careerlink-auth/internal/api"
	"careerlink-auth/internal/config"
	"careerlink-auth/internal/events"
	"careerlink-auth/internal/jwt"
	"careerlink-auth/internal/mailer"
	"careerlink-auth/internal/repository"
	"careerlink-auth/internal/service"
	"careerlink-auth/internal/tracing"
	_ "careerlink-auth/migrations"
)

const serviceName = "careerlink-auth"

func main() {
	if err := godotenv.Load(".env.dev"); err != nil {
		fmt.Println("No .env.dev file found, reading from environment variables")
	}

	api.SetupGlobalHandler(serviceName)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		handleMigrations(cfg.DB.DSN())
		return
	}

	shutdownTracer, err := tracing.InitTracerProvider(tracing.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.OtelEndpoint,
		Enabled:     cfg.OtelEnabled,
		SampleRatio: cfg.OtelSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Error("error shutting down tracer provider", "error", err)
		}
	}()

	userRepo, closeStore := openStore(cfg)
	defer closeStore()

	sender, closeMail := openMail(cfg)
	defer closeMail()

	issuer, err := jwt.NewIssuer(cfg.JWTSecret, cfg.JWTExpiresIn)
	if err != nil {
		log.Fatalf("Failed to create token issuer: %v", err)
	}

	authService := service.NewAuthService(userRepo, issuer, sender, cfg.ClientURL)

	app := api.NewApp(authService, api.RouterConfig{
		ServiceName:         serviceName,
		RateLimitMax:        cfg.RateLimitMax,
		RateLimitExpiration: cfg.RateLimitExpiration,
	})

	go func() {
		slog.Info("listening", "service", serviceName, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down", "service", serviceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func openStore(cfg *config.Config) (repository.UserRepository, func()) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory user store, data is lost on restart")
		return repository.NewInMemoryUserRepository(), func() {}
	}

	db, err := sqlx.Connect("pgx", cfg.DB.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	slog.Info("connected to the database", "host", cfg.DB.Host, "name", cfg.DB.Name)

	return repository.NewPostgresUserRepository(db), func() { _ = db.Close() }
}

func openMail(cfg *config.Config) (mailer.Sender, func()) {
	if cfg.MailTransport != config.MailTransportNATS {
		sender, err := mailer.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Timeout)
		if err != nil {
			log.Fatalf("Failed to configure SMTP: %v", err)
		}
		return sender, func() {}
	}

	nc, closed, err := events.Connect(cfg.NatsURL, serviceName)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	slog.Info("connected to NATS", "url", cfg.NatsURL)

	return events.NewNatsMailPublisher(nc, cfg.MailRequestTimeout), func() {
		if err := events.Drain(nc, closed, 10*time.Second); err != nil {
			slog.Error("failed to drain NATS connection", "error", err)
		}
	}
}

func handleMigrations(dsn string) {
	fmt.Println("Running database migrations...")

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("failed to connect to database for migration: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("failed to set goose dialect: %v", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		log.Fatalf("goose: failed to run migrations: %v", err)
	}

	fmt.Println("Migrations applied successfully!")
}
