package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"careerlink-auth/internal/api"
	"careerlink-auth/internal/config"
	"careerlink-auth/internal/events"
	"careerlink-auth/internal/mailer"
)

const (
	serviceName  = "careerlink-mail-worker"
	drainTimeout = 45 * time.Second
)

func main() {
	if err := godotenv.Load(".env.dev"); err != nil {
		fmt.Println("No .env.dev file found, reading from environment variables")
	}

	api.SetupGlobalHandler(serviceName)

	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	sender, err := mailer.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Timeout)
	if err != nil {
		log.Fatalf("Failed to configure SMTP: %v", err)
	}

	nc, closed, err := events.Connect(cfg.NatsURL, serviceName)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	if err := events.NewMailSubscriber(nc, sender).Start(); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	slog.Info("mail worker started, waiting for requests")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down mail worker, draining in-flight deliveries")
	if err := events.Drain(nc, closed, drainTimeout); err != nil {
		slog.Error("failed to drain NATS connection", "error", err)
	}
}
