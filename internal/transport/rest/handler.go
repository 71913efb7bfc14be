// Package rest provides HTTP handlers for product and sale operations.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	ierrors "github.com/abgdnv/inventory/internal/errors"
	"github.com/abgdnv/inventory/internal/service"
	"github.com/abgdnv/inventory/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const internalErrorMessage = "Internal server error"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	products service.ProductService
	sales    service.SaleService
	pinger   Pinger
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new Handler serving products and sales.
func NewHandler(products service.ProductService, sales service.SaleService, pinger Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		products: products,
		sales:    sales,
		pinger:   pinger,
		validate: newValidator(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes of the inventory API.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Root)
	r.Get("/healthz", h.HealthCheck)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetProduct)
			r.Put("/", h.UpdateProduct)
			r.Delete("/", h.DeleteProduct)
		})
	})

	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.ListSales)
		r.Post("/", h.CreateSale)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSale)
			r.Put("/", h.UpdateSale)
			r.Delete("/", h.DeleteSale)
		})
	})
}

// Root answers the bare application root.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// HealthCheck reports 503 when the store does not answer a ping.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.Ping(r.Context()); err != nil {
		h.requestLogger(r).WarnContext(r.Context(), "Health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// errorResponses maps engine errors to their HTTP status and public message.
var errorResponses = []struct {
	err     error
	status  int
	message string
}{
	{ierrors.ErrProductNotFound, http.StatusNotFound, "Product not found"},
	{ierrors.ErrSaleNotFound, http.StatusNotFound, "Sale not found"},
	{ierrors.ErrSaleItemNotFound, http.StatusNotFound, "Sale item not found"},
	{ierrors.ErrProductAlreadyExists, http.StatusConflict, "Product already exists"},
	{ierrors.ErrInsufficientQuantity, http.StatusUnprocessableEntity, "Such amount is not permitted to sell"},
	{ierrors.ErrQuantityOutOfRange, http.StatusUnprocessableEntity, "Product quantity out of range"},
	{ierrors.ErrDuplicateSaleItem, http.StatusUnprocessableEntity, `"value" contains a duplicate value`},
	{ierrors.ErrEmptySale, http.StatusUnprocessableEntity, `"value" must contain at least 1 items`},
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, e := range errorResponses {
		if errors.Is(err, e.err) {
			logger.WarnContext(r.Context(), "Request rejected", "status", e.status, "error", err)
			web.RespondError(w, logger, e.status, e.message)
			return
		}
	}
	logger.ErrorContext(r.Context(), "Request failed", "error", err)
	web.RespondError(w, logger, http.StatusInternalServerError, internalErrorMessage)
}

// respondBodyError answers a body that could not be decoded or validated.
func (h *Handler) respondBodyError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		logger.WarnContext(r.Context(), "Validation failed", "kind", vErr.Kind, "message", vErr.Message)
		web.RespondError(w, logger, vErr.Kind.Status(), vErr.Message)
		return
	}
	if errors.Is(err, errMalformedBody) {
		logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	logger.ErrorContext(r.Context(), "Error validating request body", "error", err)
	web.RespondError(w, logger, http.StatusInternalServerError, internalErrorMessage)
}

// requestLogger tags the handler logger with the route being served.
// Request and trace ids are added by the logging handler from the context.
func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With("method", r.Method, "path", r.URL.Path)
}
