// Package store persists products, sales and sale items.
//
// Writes that must be atomic run inside Store.WithinTransaction; the Tx handed to the
// callback exposes the same ProductStore and SaleStore bound to that transaction.
package store

import (
	"context"
	"time"
)

// Product is a catalog item with its stock quantity.
type Product struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Quantity int32  `db:"quantity"`
}

// Sale is a sale header.
type Sale struct {
	ID   int64     `db:"id"`
	Date time.Time `db:"date"`
}

// SaleItem binds a quantity of one product to a sale.
type SaleItem struct {
	SaleID    int64 `db:"sale_id"`
	ProductID int64 `db:"product_id"`
	Quantity  int32 `db:"quantity"`
}

// SaleLine is one row of the sale/item join.
type SaleLine struct {
	SaleID    int64     `db:"sale_id"`
	Date      time.Time `db:"date"`
	ProductID int64     `db:"product_id"`
	Quantity  int32     `db:"quantity"`
}

// DeleteResult is the raw outcome of a delete statement.
type DeleteResult struct {
	RowsAffected int64 `json:"rowsAffected"`
}

// ProductStore is an interface for product storage operations.
type ProductStore interface {
	// FindAll returns every product ordered by id.
	FindAll(ctx context.Context) ([]Product, error)

	// FindByID returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*Product, error)

	// FindByName looks a product up by exact name.
	// Returns ErrProductNotFound if no product has that name.
	FindByName(ctx context.Context, name string) (*Product, error)

	// FindByIDsForUpdate returns the existing products among ids, ordered by id, and
	// locks them until the surrounding transaction ends. Missing ids are skipped.
	FindByIDsForUpdate(ctx context.Context, ids []int64) ([]Product, error)

	// Create inserts a product and returns it with its assigned id.
	// Returns ErrProductAlreadyExists if the name is taken.
	Create(ctx context.Context, name string, quantity int32) (*Product, error)

	// Update overwrites name and quantity and reports the number of rows affected.
	// Returns ErrProductAlreadyExists if the name belongs to another product.
	Update(ctx context.Context, id int64, name string, quantity int32) (int64, error)

	// DeleteByID removes a product and returns the raw result.
	DeleteByID(ctx context.Context, id int64) (DeleteResult, error)

	// AdjustStock adds delta (which may be negative) to the product quantity without any check.
	// Returns ErrProductNotFound if the product does not exist.
	AdjustStock(ctx context.Context, id int64, delta int32) error

	// DecrementStock subtracts quantity only if enough stock is left.
	// Reports false when the product is missing or its stock is too low.
	DecrementStock(ctx context.Context, id int64, quantity int32) (bool, error)
}

// SaleStore is an interface for sale storage operations.
type SaleStore interface {
	// FindAll returns every sale line ordered by sale id, then product id.
	FindAll(ctx context.Context) ([]SaleLine, error)

	// FindByID returns the lines of one sale ordered by product id.
	// An unknown sale yields an empty slice, not an error.
	FindByID(ctx context.Context, id int64) ([]SaleLine, error)

	// Create inserts a sale header dated now.
	Create(ctx context.Context) (*Sale, error)

	// BindItems inserts the items of a sale. Every insert must succeed.
	BindItems(ctx context.Context, saleID int64, items []SaleItem) error

	// LockItems returns the items of a sale ordered by product id and locks them
	// until the surrounding transaction ends.
	LockItems(ctx context.Context, saleID int64) ([]SaleItem, error)

	// UpdateItemQuantity overwrites the quantity of one item and reports the rows affected.
	UpdateItemQuantity(ctx context.Context, saleID, productID int64, quantity int32) (int64, error)

	// DeleteItems removes all items of a sale and returns them.
	DeleteItems(ctx context.Context, saleID int64) ([]SaleItem, error)

	// Delete removes a sale header and reports the rows affected.
	Delete(ctx context.Context, saleID int64) (int64, error)
}

// Tx exposes the stores within one unit of work.
type Tx interface {
	Products() ProductStore
	Sales() SaleStore
}

// Store gives access to the stores outside and inside transactions.
type Store interface {
	Tx

	// WithinTransaction runs fn in a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise; fn's error is returned unchanged.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
