package store

import (
	"context"
	"errors"
	"fmt"

	ierrors "github.com/abgdnv/inventory/internal/errors"
	"github.com/jackc/pgx/v5"
)

type pgSales struct {
	db dbtx
}

const saleLineQuery = `
SELECT sp.sale_id, s.date, sp.product_id, sp.quantity
FROM sales s
JOIN sales_products sp ON sp.sale_id = s.id`

func (p *pgSales) FindAll(ctx context.Context) ([]SaleLine, error) {
	return p.findLines(ctx, saleLineQuery+" ORDER BY sp.sale_id, sp.product_id")
}

func (p *pgSales) FindByID(ctx context.Context, id int64) ([]SaleLine, error) {
	return p.findLines(ctx, saleLineQuery+" WHERE s.id = $1 ORDER BY sp.product_id", id)
}

func (p *pgSales) findLines(ctx context.Context, sql string, args ...any) ([]SaleLine, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find sales: %w", err)
	}
	lines, err := pgx.CollectRows(rows, pgx.RowToStructByName[SaleLine])
	if err != nil {
		return nil, fmt.Errorf("failed to scan sales: %w", err)
	}
	return lines, nil
}

func (p *pgSales) Create(ctx context.Context) (*Sale, error) {
	var sale Sale
	err := p.db.QueryRow(ctx, "INSERT INTO sales DEFAULT VALUES RETURNING id, date").Scan(&sale.ID, &sale.Date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ierrors.ErrInternal
		}
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}
	return &sale, nil
}

func (p *pgSales) BindItems(ctx context.Context, saleID int64, items []SaleItem) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue("INSERT INTO sales_products (sale_id, product_id, quantity) VALUES ($1, $2, $3)",
			saleID, item.ProductID, item.Quantity)
	}
	br := p.db.SendBatch(ctx, batch)
	for _, item := range items {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to bind product %d to sale %d: %w", item.ProductID, saleID, err)
		}
		if tag.RowsAffected() != 1 {
			_ = br.Close()
			return fmt.Errorf("binding product %d to sale %d: %w", item.ProductID, saleID, ierrors.ErrInternal)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to bind items to sale %d: %w", saleID, err)
	}
	return nil
}

const saleItemColumns = "sale_id, product_id, quantity"

func (p *pgSales) LockItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	rows, err := p.db.Query(ctx,
		"SELECT "+saleItemColumns+" FROM sales_products WHERE sale_id = $1 ORDER BY product_id FOR UPDATE", saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock items of sale %d: %w", saleID, err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[SaleItem])
	if err != nil {
		return nil, fmt.Errorf("failed to scan items of sale %d: %w", saleID, err)
	}
	return items, nil
}

func (p *pgSales) UpdateItemQuantity(ctx context.Context, saleID, productID int64, quantity int32) (int64, error) {
	tag, err := p.db.Exec(ctx,
		"UPDATE sales_products SET quantity = $3 WHERE sale_id = $1 AND product_id = $2", saleID, productID, quantity)
	if err != nil {
		return 0, fmt.Errorf("failed to update item of sale %d: %w", saleID, err)
	}
	return tag.RowsAffected(), nil
}

func (p *pgSales) DeleteItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	rows, err := p.db.Query(ctx,
		"DELETE FROM sales_products WHERE sale_id = $1 RETURNING "+saleItemColumns, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete items of sale %d: %w", saleID, err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[SaleItem])
	if err != nil {
		return nil, fmt.Errorf("failed to scan deleted items of sale %d: %w", saleID, err)
	}
	return items, nil
}

func (p *pgSales) Delete(ctx context.Context, saleID int64) (int64, error) {
	tag, err := p.db.Exec(ctx, "DELETE FROM sales WHERE id = $1", saleID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sale %d: %w", saleID, err)
	}
	return tag.RowsAffected(), nil
}
