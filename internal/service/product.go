// Package service implements the product and sale transaction engines.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	ierrors "github.com/abgdnv/inventory/internal/errors"
	"github.com/abgdnv/inventory/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/abgdnv/inventory/internal/service"

// ProductService defines the methods for managing products.
type ProductService interface {
	// List returns every product ordered by id.
	List(ctx context.Context) ([]ProductDto, error)

	// Get returns ErrProductNotFound if no product exists with the given ID.
	Get(ctx context.Context, id int64) (*ProductDto, error)

	// Create adds a product with a unique name.
	// Returns ErrProductAlreadyExists if the name is taken.
	Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error)

	// Update overwrites name and quantity and echoes the input.
	// Returns ErrProductNotFound if the product is missing.
	Update(ctx context.Context, id int64, product ProductCreateDto) (*ProductDto, error)

	// Delete removes a product and returns the raw store result.
	// Returns ErrProductNotFound if the product is missing.
	Delete(ctx context.Context, id int64) (store.DeleteResult, error)
}

// ProductManager implements ProductService on top of a store.Store.
type ProductManager struct {
	store           store.Store
	productsCounter metric.Int64Counter
}

func NewProductManager(st store.Store) *ProductManager {
	meter := otel.Meter(instrumentationName)
	productsCounter, err := meter.Int64Counter("products_created", metric.WithDescription("Total number of created products"))
	if err != nil {
		panic(fmt.Sprintf("failed to create products_created counter: %v", err))
	}
	return &ProductManager{
		store:           st,
		productsCounter: productsCounter,
	}
}

func (m *ProductManager) List(ctx context.Context) ([]ProductDto, error) {
	products, err := m.store.Products().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]ProductDto, len(products))
	for i, p := range products {
		dtos[i] = toProductDto(p)
	}
	return dtos, nil
}

func (m *ProductManager) Get(ctx context.Context, id int64) (*ProductDto, error) {
	product, err := m.store.Products().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toProductDto(*product)
	return &dto, nil
}

func (m *ProductManager) Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error) {
	var created *store.Product
	err := m.store.WithinTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Products().FindByName(ctx, product.Name)
		switch {
		case err == nil:
			return ierrors.ErrProductAlreadyExists
		case !errors.Is(err, ierrors.ErrProductNotFound):
			return err
		}
		created, err = tx.Products().Create(ctx, product.Name, product.Quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.productsCounter.Add(ctx, 1)
	slog.InfoContext(ctx, "Product created", "product_id", created.ID)
	return &ProductDto{ID: created.ID, Name: product.Name, Quantity: product.Quantity}, nil
}

func (m *ProductManager) Update(ctx context.Context, id int64, product ProductCreateDto) (*ProductDto, error) {
	err := m.store.WithinTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Products().FindByID(ctx, id); err != nil {
			return err
		}
		rows, err := tx.Products().Update(ctx, id, product.Name, product.Quantity)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("update of product %d had no effect: %w", id, ierrors.ErrInternal)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ProductDto{ID: id, Name: product.Name, Quantity: product.Quantity}, nil
}

func (m *ProductManager) Delete(ctx context.Context, id int64) (store.DeleteResult, error) {
	var result store.DeleteResult
	err := m.store.WithinTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Products().FindByID(ctx, id); err != nil {
			return err
		}
		var err error
		result, err = tx.Products().DeleteByID(ctx, id)
		return err
	})
	if err != nil {
		return store.DeleteResult{}, err
	}
	return result, nil
}
