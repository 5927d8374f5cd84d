// cmd/server/main.go
package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unclebandit/bulk-messaging/internal/broker"
	"github.com/unclebandit/bulk-messaging/internal/config"
	"github.com/unclebandit/bulk-messaging/internal/controller"
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
	go func() {
		log.Fatalf("broker gave up reconnecting: %v", <-mq.Fatal())
	}()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	targetRepo := &repository.CampaignTargetRepository{DB: conn}
	outboxRepo := &repository.OutboxRepository{DB: conn}
	productRepo := &repository.ProductRepository{DB: conn}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		TargetRepo:   targetRepo,
		OutboxRepo:   outboxRepo,
	}
	productService := &service.ProductService{
		Repo:      productRepo,
		Publisher: mq,
	}

	campaignController := &controller.CampaignController{CampaignService: campaignService}
	productController := &controller.ProductController{ProductService: productService}

	r := chi.NewRouter()

	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaignProgress)
	r.Post("/campaigns/{id}/prepare", campaignController.PrepareCampaign)

	r.Post("/products", productController.CreateProduct)
	r.Get("/products", productController.ListProducts)
	r.Get("/products/{id}", productController.GetProduct)
	r.Put("/products/{id}", productController.UpdateProduct)
	r.Delete("/products/{id}", productController.DeleteProduct)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	log.Printf("🚀 Server running on %s", cfg.HTTPAddr)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
