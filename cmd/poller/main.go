// cmd/poller/main.go
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/unclebandit/bulk-messaging/internal/broker"
	"github.com/unclebandit/bulk-messaging/internal/config"
	"github.com/unclebandit/bulk-messaging/internal/db"
	"github.com/unclebandit/bulk-messaging/internal/repository"
	"github.com/unclebandit/bulk-messaging/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}
	cfg := config.Load()

	conn, err := db.Open(cfg.DB.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer conn.Close()
	if err := db.Migrate(conn); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	mq := broker.New(cfg.RabbitMQ.URL(), broker.Options{
		MaxReconnectAttempts: cfg.RabbitMQ.MaxReconnectAttempts,
		ReconnectDelay:       cfg.RabbitMQ.ReconnectDelay,
	})
	if err := mq.Connect(); err != nil {
		log.Fatalf("broker: %v", err)
	}
	defer mq.Close()

	poller := &service.OutboxPoller{
		Store:     &repository.OutboxRepository{DB: conn},
		Publisher: mq,
		Queue:     cfg.Consumer.Queue,
		Interval:  cfg.Poller.Interval,
		BatchSize: cfg.Poller.BatchSize,
	}
	poller.Start()
	log.Println("🚀 Outbox poller running")

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigC:
		log.Printf("received %s, shutting down gracefully...", sig)
		poller.Stop()
	case err := <-mq.Fatal():
		log.Fatalf("broker gave up reconnecting: %v", err)
	}
}
