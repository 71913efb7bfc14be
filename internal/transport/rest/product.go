package rest

import (
	"net/http"

	"github.com/abgdnv/inventory/internal/service"
	"github.com/abgdnv/inventory/pkg/web"
)

// ListProducts returns every product.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	mLogger := h.requestLogger(r)
	list, err := h.products.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(list))
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

// GetProduct returns one product by id.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.requestLogger(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, product)
}

// CreateProduct adds a product with a unique name.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.requestLogger(r)
	req, err := h.decodeProduct(r)
	if err != nil {
		h.respondBodyError(w, r, mLogger, err)
		return
	}
	created, err := h.products.Create(r.Context(), service.ProductCreateDto{Name: *req.Name, Quantity: *req.Quantity})
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	mLogger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID)
	web.RespondJSON(w, mLogger, http.StatusCreated, created)
}

// UpdateProduct overwrites the name and quantity of a product.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.requestLogger(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	req, err := h.decodeProduct(r)
	if err != nil {
		h.respondBodyError(w, r, mLogger, err)
		return
	}
	updated, err := h.products.Update(r.Context(), id, service.ProductCreateDto{Name: *req.Name, Quantity: *req.Quantity})
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	mLogger.InfoContext(r.Context(), "Product updated successfully", "ID", id)
	web.RespondJSON(w, mLogger, http.StatusOK, updated)
}

// DeleteProduct removes a product.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.requestLogger(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	result, err := h.products.Delete(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	mLogger.InfoContext(r.Context(), "Product deleted successfully", "ID", id, "rows", result.RowsAffected)
	w.WriteHeader(http.StatusNoContent)
}
