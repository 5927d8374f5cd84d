// internal/service/product_service.go
package service

import (
	"log"

	"github.com/goccy/go-json"

	"github.com/unclebandit/bulk-messaging/internal/broker"
	"github.com/unclebandit/bulk-messaging/internal/model"
	"github.com/unclebandit/bulk-messaging/internal/repository"
)

// ExchangePublisher is the slice of broker.Connection the product service
// needs.
type ExchangePublisher interface {
	PublishToExchange(exchange, routingKey string, body []byte, opts broker.PublishOptions) error
}

// SyncExchange carries product index-sync events; search-index consumers bind
// their own queues to it.
const SyncExchange = "product.sync"

// ProductService owns product writes and announces each one on the sync
// exchange so the search index can follow.
type ProductService struct {
	Repo      repository.ProductRepositoryInterface
	Publisher ExchangePublisher
}

func (s *ProductService) Create(p *model.Product) error {
	if err := s.Repo.Create(p); err != nil {
		return err
	}
	s.publishSync(model.SyncIndex, p.ID, p)
	return nil
}

func (s *ProductService) Update(p *model.Product) error {
	if err := s.Repo.Update(p); err != nil {
		return err
	}
	s.publishSync(model.SyncUpdate, p.ID, p)
	return nil
}

func (s *ProductService) Delete(id int) error {
	if err := s.Repo.Delete(id); err != nil {
		return err
	}
	s.publishSync(model.SyncDelete, id, nil)
	return nil
}

func (s *ProductService) GetByID(id int) (*model.Product, error) {
	return s.Repo.GetByID(id)
}

func (s *ProductService) List(page, pageSize int) ([]*model.Product, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return s.Repo.List((page-1)*pageSize, pageSize)
}

// publishSync announces a product write. The DB write is the source of truth;
// a failed publish is logged, not rolled back, and a full reindex can always
// repair the index.
func (s *ProductService) publishSync(operation string, productID int, data *model.Product) {
	event := model.SyncEvent{Operation: operation, ProductID: productID, Data: data}
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("product: marshal sync event for %d: %v", productID, err)
		return
	}

	opts := broker.PublishOptions{Persistent: true}
	if err := s.Publisher.PublishToExchange(SyncExchange, "product."+operation, body, opts); err != nil {
		log.Printf("product: publish sync event for %d failed: %v", productID, err)
	}
}
