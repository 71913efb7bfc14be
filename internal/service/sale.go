package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ierrors "github.com/abgdnv/inventory/internal/errors"
	"github.com/abgdnv/inventory/internal/store"
	"github.com/abgdnv/inventory/pkg/logger"
	"github.com/abgdnv/inventory/pkg/messaging"
	"github.com/abgdnv/inventory/pkg/messaging/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// SaleService defines the methods for managing sales and their stock effects.
type SaleService interface {
	// List returns one line per sale item ordered by sale id, then product id.
	List(ctx context.Context) ([]SaleLineDto, error)

	// Get returns the lines of one sale ordered by product id.
	// An unknown sale yields an empty slice.
	Get(ctx context.Context, id int64) ([]SaleLineDto, error)

	// Create records a sale and debits stock for every item.
	// Returns ErrProductNotFound or ErrInsufficientQuantity without writing anything.
	Create(ctx context.Context, items []SaleItemDto) (*SaleCreatedDto, error)

	// Update overwrites item quantities and moves the difference back to or out of stock.
	// Returns ErrSaleNotFound if the sale has no items.
	Update(ctx context.Context, saleID int64, items []SaleItemDto) (*SaleUpdatedDto, error)

	// Delete removes a sale and restores the stock of its items.
	// Returns ErrSaleNotFound if the sale has no items.
	Delete(ctx context.Context, saleID int64) error
}

// SaleManager implements SaleService on top of a store.Store.
// Events are published after commit; a failed publish never fails the operation.
type SaleManager struct {
	store             store.Store
	publisher         messaging.Publisher
	tracer            trace.Tracer
	strictUpdateStock bool
	createdCounter    metric.Int64Counter
	updatedCounter    metric.Int64Counter
	deletedCounter    metric.Int64Counter
}

type SaleOption func(*SaleManager)

// WithStrictUpdateStock makes Update refuse quantity increases that exceed the remaining stock.
func WithStrictUpdateStock(strict bool) SaleOption {
	return func(m *SaleManager) {
		m.strictUpdateStock = strict
	}
}

func NewSaleManager(st store.Store, publisher messaging.Publisher, opts ...SaleOption) *SaleManager {
	meter := otel.Meter(instrumentationName)
	m := &SaleManager{
		store:          st,
		publisher:      publisher,
		tracer:         otel.Tracer(instrumentationName),
		createdCounter: mustCounter(meter, "sales_created", "Total number of created sales"),
		updatedCounter: mustCounter(meter, "sales_updated", "Total number of updated sales"),
		deletedCounter: mustCounter(meter, "sales_deleted", "Total number of deleted sales"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func mustCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		panic(fmt.Sprintf("failed to create %s counter: %v", name, err))
	}
	return counter
}

func (m *SaleManager) List(ctx context.Context) ([]SaleLineDto, error) {
	lines, err := m.store.Sales().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return toSaleLineDtos(lines), nil
}

func (m *SaleManager) Get(ctx context.Context, id int64) ([]SaleLineDto, error) {
	lines, err := m.store.Sales().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSaleLineDtos(lines), nil
}

func (m *SaleManager) Create(ctx context.Context, items []SaleItemDto) (_ *SaleCreatedDto, err error) {
	ctx, span := m.tracer.Start(ctx, "sale.create", trace.WithAttributes(attribute.Int("sale.items", len(items))))
	defer func() { endSpan(span, err) }()

	if err := checkItems(items); err != nil {
		return nil, err
	}

	var sale *store.Sale
	err = m.store.WithinTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		products, err := tx.Products().FindByIDsForUpdate(ctx, productIDs(items))
		if err != nil {
			return err
		}
		stock := make(map[int64]int32, len(products))
		for _, p := range products {
			stock[p.ID] = p.Quantity
		}
		var missing, insufficient []int64
		for _, item := range items {
			available, ok := stock[item.ProductID]
			switch {
			case !ok:
				missing = append(missing, item.ProductID)
			case available < item.Quantity:
				insufficient = append(insufficient, item.ProductID)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("products %v: %w", missing, ierrors.ErrProductNotFound)
		}
		if len(insufficient) > 0 {
			return fmt.Errorf("products %v: %w", insufficient, ierrors.ErrInsufficientQuantity)
		}

		sale, err = tx.Sales().Create(ctx)
		if err != nil {
			return err
		}
		if sale.ID == 0 {
			return fmt.Errorf("sale header has no id: %w", ierrors.ErrInternal)
		}
		if err := tx.Sales().BindItems(ctx, sale.ID, toStoreItems(sale.ID, items)); err != nil {
			return err
		}
		for _, item := range items {
			ok, err := tx.Products().DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("product %d: %w", item.ProductID, ierrors.ErrInsufficientQuantity)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logger.WithSaleID(ctx, sale.ID)
	span.SetAttributes(attribute.Int64("sale.id", sale.ID))
	m.createdCounter.Add(ctx, 1)
	slog.InfoContext(ctx, "Sale created", "items", len(items))
	m.publish(ctx, events.SaleCreatedEvent{SaleEvent: newSaleEvent(ctx, sale.ID, items)})

	return &SaleCreatedDto{SaleID: sale.ID, ItemsSold: items}, nil
}

func (m *SaleManager) Update(ctx context.Context, saleID int64, items []SaleItemDto) (_ *SaleUpdatedDto, err error) {
	ctx = logger.WithSaleID(ctx, saleID)
	ctx, span := m.tracer.Start(ctx, "sale.update", trace.WithAttributes(
		attribute.Int64("sale.id", saleID),
		attribute.Int("sale.items", len(items)),
	))
	defer func() { endSpan(span, err) }()

	if err := checkItems(items); err != nil {
		return nil, err
	}

	err = m.store.WithinTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.Sales().LockItems(ctx, saleID)
		if err != nil {
			return err
		}
		if len(current) == 0 {
			return ierrors.ErrSaleNotFound
		}
		previous := make(map[int64]int32, len(current))
		for _, item := range current {
			previous[item.ProductID] = item.Quantity
		}
		for _, item := range items {
			if _, ok := previous[item.ProductID]; !ok {
				return fmt.Errorf("product %d in sale %d: %w", item.ProductID, saleID, ierrors.ErrSaleItemNotFound)
			}
		}

		for _, item := range items {
			rows, err := tx.Sales().UpdateItemQuantity(ctx, saleID, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if rows == 0 {
				return fmt.Errorf("update of product %d in sale %d had no effect: %w", item.ProductID, saleID, ierrors.ErrInternal)
			}
			if err := m.moveStock(ctx, tx, item.ProductID, previous[item.ProductID]-item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.updatedCounter.Add(ctx, 1)
	slog.InfoContext(ctx, "Sale updated", "items", len(items))
	m.publish(ctx, events.SaleUpdatedEvent{SaleEvent: newSaleEvent(ctx, saleID, items)})

	return &SaleUpdatedDto{SaleID: saleID, ItemUpdated: items}, nil
}

// moveStock returns delta units to stock, or takes -delta out of it when delta is negative.
func (m *SaleManager) moveStock(ctx context.Context, tx store.Tx, productID int64, delta int32) error {
	switch {
	case delta == 0:
		return nil
	case delta < 0 && m.strictUpdateStock:
		ok, err := tx.Products().DecrementStock(ctx, productID, -delta)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("product %d: %w", productID, ierrors.ErrInsufficientQuantity)
		}
		return nil
	default:
		return tx.Products().AdjustStock(ctx, productID, delta)
	}
}

func (m *SaleManager) Delete(ctx context.Context, saleID int64) (err error) {
	ctx = logger.WithSaleID(ctx, saleID)
	ctx, span := m.tracer.Start(ctx, "sale.delete", trace.WithAttributes(attribute.Int64("sale.id", saleID)))
	defer func() { endSpan(span, err) }()

	var deleted []store.SaleItem
	err = m.store.WithinTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.Sales().LockItems(ctx, saleID)
		if err != nil {
			return err
		}
		if len(current) == 0 {
			return ierrors.ErrSaleNotFound
		}
		deleted, err = tx.Sales().DeleteItems(ctx, saleID)
		if err != nil {
			return err
		}
		if _, err := tx.Sales().Delete(ctx, saleID); err != nil {
			return err
		}
		for _, item := range deleted {
			if err := tx.Products().AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	items := make([]SaleItemDto, len(deleted))
	for i, item := range deleted {
		items[i] = SaleItemDto{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	m.deletedCounter.Add(ctx, 1)
	slog.InfoContext(ctx, "Sale deleted", "items", len(items))
	m.publish(ctx, events.SaleDeletedEvent{SaleEvent: newSaleEvent(ctx, saleID, items)})

	return nil
}

func (m *SaleManager) publish(ctx context.Context, event messaging.Event) {
	if err := m.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sale event", "subject", event.Subject(), "error", err)
	}
}

func newSaleEvent(ctx context.Context, saleID int64, items []SaleItemDto) events.SaleEvent {
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	eventItems := make([]events.SaleItem, len(items))
	for i, item := range items {
		eventItems[i] = events.SaleItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return events.SaleEvent{
		Carrier:    carrier,
		SaleID:     saleID,
		Items:      eventItems,
		OccurredAt: time.Now().UTC(),
	}
}

// checkItems rejects empty requests and products listed twice.
func checkItems(items []SaleItemDto) error {
	if len(items) == 0 {
		return ierrors.ErrEmptySale
	}
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("product %d: %w", item.ProductID, ierrors.ErrDuplicateSaleItem)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

func productIDs(items []SaleItemDto) []int64 {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	return ids
}

func toStoreItems(saleID int64, items []SaleItemDto) []store.SaleItem {
	storeItems := make([]store.SaleItem, len(items))
	for i, item := range items {
		storeItems[i] = store.SaleItem{SaleID: saleID, ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return storeItems
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
