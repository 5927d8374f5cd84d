// internal/repository/product_repository.go
package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/unclebandit/bulk-messaging/internal/errors"
	"github.com/unclebandit/bulk-messaging/internal/model"
)

type ProductRepositoryInterface interface {
	Create(p *model.Product) error
	Update(p *model.Product) error
	Delete(id int) error
	GetByID(id int) (*model.Product, error)
	List(offset, limit int) ([]*model.Product, int, error)
}

type ProductRepository struct {
	DB *sql.DB
}

const productColumns = `id, name, description, sku, price, category, stock_quantity, status, created_at, updated_at`

func (r *ProductRepository) Create(p *model.Product) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = "active"
	}
	query := `
        INSERT INTO products (name, description, sku, price, category, stock_quantity, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `
	return r.DB.QueryRow(query, p.Name, p.Description, p.SKU, p.Price, p.Category, p.StockQuantity, p.Status, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
}

func (r *ProductRepository) Update(p *model.Product) error {
	p.UpdatedAt = time.Now()
	query := `
        UPDATE products
        SET name=$1, description=$2, sku=$3, price=$4, category=$5, stock_quantity=$6, status=$7, updated_at=$8
        WHERE id=$9
    `
	res, err := r.DB.Exec(query, p.Name, p.Description, p.SKU, p.Price, p.Category, p.StockQuantity, p.Status, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.NewProductNotFound(p.ID)
	}
	return nil
}

func (r *ProductRepository) Delete(id int) error {
	res, err := r.DB.Exec(`DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.NewProductNotFound(id)
	}
	return nil
}

func (r *ProductRepository) GetByID(id int) (*model.Product, error) {
	var p model.Product
	err := r.DB.QueryRow(`SELECT `+productColumns+` FROM products WHERE id=$1`, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.SKU, &p.Price, &p.Category,
		&p.StockQuantity, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewProductNotFound(id)
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) List(offset, limit int) ([]*model.Product, int, error) {
	rows, err := r.DB.Query(`SELECT `+productColumns+` FROM products ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := []*model.Product{}
	for rows.Next() {
		p := &model.Product{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.SKU, &p.Price, &p.Category,
			&p.StockQuantity, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

var _ ProductRepositoryInterface = (*ProductRepository)(nil)
