// cmd/seeder/main.go
package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/unclebandit/bulk-messaging/internal/config"
	"github.com/unclebandit/bulk-messaging/internal/db"
	"github.com/unclebandit/bulk-messaging/internal/model"
	"github.com/unclebandit/bulk-messaging/internal/repository"
)

// Seeds a demo campaign with a small audience plus a handful of products, so
// the poller and consumer have something to chew on locally.
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

	campaignRepo := &repository.CampaignRepository{DB: conn}
	targetRepo := &repository.CampaignTargetRepository{DB: conn}
	productRepo := &repository.ProductRepository{DB: conn}

	campaign := &model.Campaign{
		Name:         "Welcome Series",
		Kind:         model.KindEmail,
		Subject:      "Welcome aboard, {{first_name}}!",
		BodyTemplate: "Hi {{first_name}}, thanks for joining from {{city}}.",
	}
	if err := campaignRepo.Create(campaign); err != nil {
		log.Fatalf("seed campaign: %v", err)
	}

	targets := []model.CampaignTarget{}
	cities := []string{"Nairobi", "Mombasa", "Kisumu", "Nakuru", "Eldoret"}
	for i := 1; i <= 25; i++ {
		targets = append(targets, model.CampaignTarget{
			CampaignID: campaign.ID,
			UserRef:    fmt.Sprintf("user%d@example.com", i),
			Kind:       model.KindEmail,
			Metadata: map[string]string{
				"first_name": fmt.Sprintf("User%d", i),
				"city":       cities[i%len(cities)],
			},
		})
	}
	if err := targetRepo.CreateBatch(targets); err != nil {
		log.Fatalf("seed targets: %v", err)
	}
	fmt.Printf("Seeded campaign %d with %d targets\n", campaign.ID, len(targets))

	for i := 1; i <= 10; i++ {
		p := &model.Product{
			Name:          fmt.Sprintf("Demo Product %d", i),
			Description:   "Seeded demo product",
			SKU:           fmt.Sprintf("DEMO-%04d", i),
			Price:         float64(500 + i*25),
			Category:      "demo",
			StockQuantity: 100,
		}
		if err := productRepo.Create(p); err != nil {
			log.Fatalf("seed product %d: %v", i, err)
		}
	}
	fmt.Println("Seeded 10 products")

	fmt.Println("Database seeding completed successfully!")
}
