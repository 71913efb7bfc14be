package store

import (
	"context"
	"errors"
	"fmt"

	ierrors "github.com/abgdnv/inventory/internal/errors"
	"github.com/jackc/pgx/v5"
)

type pgProducts struct {
	db dbtx
}

const productColumns = "id, name, quantity"

func (p *pgProducts) FindAll(ctx context.Context) ([]Product, error) {
	rows, err := p.db.Query(ctx, "SELECT "+productColumns+" FROM products ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	products, err := pgx.CollectRows(rows, pgx.RowToStructByName[Product])
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}
	return products, nil
}

func (p *pgProducts) FindByID(ctx context.Context, id int64) (*Product, error) {
	return p.findOne(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
}

func (p *pgProducts) FindByName(ctx context.Context, name string) (*Product, error) {
	return p.findOne(ctx, "SELECT "+productColumns+" FROM products WHERE name = $1", name)
}

func (p *pgProducts) findOne(ctx context.Context, sql string, arg any) (*Product, error) {
	rows, err := p.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	product, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Product])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ierrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return product, nil
}

func (p *pgProducts) FindByIDsForUpdate(ctx context.Context, ids []int64) ([]Product, error) {
	rows, err := p.db.Query(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	products, err := pgx.CollectRows(rows, pgx.RowToStructByName[Product])
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}
	return products, nil
}

func (p *pgProducts) Create(ctx context.Context, name string, quantity int32) (*Product, error) {
	var product Product
	err := p.db.QueryRow(ctx,
		"INSERT INTO products (name, quantity) VALUES ($1, $2) RETURNING "+productColumns,
		name, quantity,
	).Scan(&product.ID, &product.Name, &product.Quantity)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ierrors.ErrProductAlreadyExists
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &product, nil
}

func (p *pgProducts) Update(ctx context.Context, id int64, name string, quantity int32) (int64, error) {
	tag, err := p.db.Exec(ctx, "UPDATE products SET name = $2, quantity = $3 WHERE id = $1", id, name, quantity)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ierrors.ErrProductAlreadyExists
		}
		return 0, fmt.Errorf("failed to update product: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *pgProducts) DeleteByID(ctx context.Context, id int64) (DeleteResult, error) {
	tag, err := p.db.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to delete product: %w", err)
	}
	return DeleteResult{RowsAffected: tag.RowsAffected()}, nil
}

func (p *pgProducts) AdjustStock(ctx context.Context, id int64, delta int32) error {
	tag, err := p.db.Exec(ctx, "UPDATE products SET quantity = quantity + $2 WHERE id = $1", id, delta)
	if isOutOfRange(err) {
		return fmt.Errorf("product %d: %w", id, ierrors.ErrQuantityOutOfRange)
	}
	if err != nil {
		return fmt.Errorf("failed to adjust stock of product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ierrors.ErrProductNotFound
	}
	return nil
}

func (p *pgProducts) DecrementStock(ctx context.Context, id int64, quantity int32) (bool, error) {
	tag, err := p.db.Exec(ctx,
		"UPDATE products SET quantity = quantity - $2 WHERE id = $1 AND quantity >= $2", id, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock of product %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}
