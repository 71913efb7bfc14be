package rest

import (
	"net/http"

	"github.com/abgdnv/inventory/internal/service"
	"github.com/abgdnv/inventory/pkg/web"
)

// ListSales returns one line per sold item across all sales.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	mLogger := h.requestLogger(r)
	lines, err := h.sales.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, lines)
}

// GetSale returns the lines of one sale; a sale without lines is not found.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	mLogger := h.requestLogger(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	lines, err := h.sales.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	if len(lines) == 0 {
		web.RespondError(w, mLogger, http.StatusNotFound, "Sale not found")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, lines)
}

// CreateSale records a sale and debits stock.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	mLogger := h.requestLogger(r)
	req, err := h.decodeSaleItems(r)
	if err != nil {
		h.respondBodyError(w, r, mLogger, err)
		return
	}
	created, err := h.sales.Create(r.Context(), toSaleItems(req))
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	mLogger.InfoContext(r.Context(), "Sale created successfully", "ID", created.SaleID)
	web.RespondJSON(w, mLogger, http.StatusCreated, created)
}

// UpdateSale overwrites item quantities of an existing sale.
func (h *Handler) UpdateSale(w http.ResponseWriter, r *http.Request) {
	mLogger := h.requestLogger(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	req, err := h.decodeSaleItems(r)
	if err != nil {
		h.respondBodyError(w, r, mLogger, err)
		return
	}
	updated, err := h.sales.Update(r.Context(), id, toSaleItems(req))
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	mLogger.InfoContext(r.Context(), "Sale updated successfully", "ID", id)
	web.RespondJSON(w, mLogger, http.StatusOK, updated)
}

// DeleteSale removes a sale and restores stock.
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	mLogger := h.requestLogger(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	if err := h.sales.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	mLogger.InfoContext(r.Context(), "Sale deleted successfully", "ID", id)
	w.WriteHeader(http.StatusNoContent)
}

func toSaleItems(req []saleItemRequest) []service.SaleItemDto {
	items := make([]service.SaleItemDto, len(req))
	for i, item := range req {
		items[i] = service.SaleItemDto{ProductID: *item.ProductID, Quantity: *item.Quantity}
	}
	return items
}
