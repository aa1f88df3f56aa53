package handlers

import (
	"context"
	"net/http"

	"github.com/estoquel/restocker/internal/handlers/render"
	"github.com/estoquel/restocker/internal/meli"
)

type productLister interface {
	GetMyProducts(ctx context.Context) []meli.Product
}

type ProductsHandler struct {
	client productLister
}

func NewProducts(client productLister) *ProductsHandler {
	return &ProductsHandler{client: client}
}

func (h *ProductsHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", h.list)

	return mux
}

// list always answers 200 with a list: per-item fetch failures are excluded
// on the client side, never surfaced as a batch failure.
func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	products := h.client.GetMyProducts(r.Context())
	render.JSON(w, products)
}
