// internal/controller/product_controller.go
package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	appErrors "github.com/unclebandit/bulk-messaging/internal/errors"
	"github.com/unclebandit/bulk-messaging/internal/model"
	"github.com/unclebandit/bulk-messaging/internal/service"
)

type ProductController struct {
	ProductService *service.ProductService
}

func (c *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p model.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := c.ProductService.Create(&p); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(p)
}

func (c *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	var p model.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	p.ID = id

	if err := c.ProductService.Update(&p); err != nil {
		http.Error(w, err.Error(), productErrorStatus(err))
		return
	}
	json.NewEncoder(w).Encode(p)
}

func (c *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	if err := c.ProductService.Delete(id); err != nil {
		http.Error(w, err.Error(), productErrorStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *ProductController) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	p, err := c.ProductService.GetByID(id)
	if err != nil {
		http.Error(w, err.Error(), productErrorStatus(err))
		return
	}
	json.NewEncoder(w).Encode(p)
}

func (c *ProductController) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	products, total, err := c.ProductService.List(page, pageSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":  products,
		"total": total,
	})
}

func productErrorStatus(err error) int {
	var notFound *appErrors.ErrProductNotFound
	if errors.As(err, &notFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
