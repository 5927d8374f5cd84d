// internal/model/product.go
package model

import "time"

type Product struct {
	ID            int       `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Description   string    `db:"description" json:"description"`
	SKU           string    `db:"sku" json:"sku"`
	Price         float64   `db:"price" json:"price"`
	Category      string    `db:"category" json:"category"`
	StockQuantity int       `db:"stock_quantity" json:"stock_quantity"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Index sync operations carried on product.sync events.
const (
	SyncIndex  = "index"
	SyncUpdate = "update"
	SyncDelete = "delete"
)

// SyncEvent announces a product write to the search-index consumers. Document
// shaping happens on the consuming side, not here.
type SyncEvent struct {
	Operation string   `json:"operation"`
	ProductID int      `json:"productId"`
	Data      *Product `json:"data,omitempty"`
}
