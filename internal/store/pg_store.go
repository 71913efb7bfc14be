package store

import (
	"context"
	"errors"
	"fmt"

	ierrors "github.com/abgdnv/inventory/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation        = "23505"
	numericValueOutOfRange = "22003"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PgStore implements Store using PostgreSQL.
type PgStore struct {
	db *pgxpool.Pool
	pgTx
}

// pgTx binds the product and sale queries to one dbtx.
type pgTx struct {
	products *pgProducts
	sales    *pgSales
}

func newPgTx(db dbtx) pgTx {
	return pgTx{
		products: &pgProducts{db: db},
		sales:    &pgSales{db: db},
	}
}

func (t pgTx) Products() ProductStore { return t.products }
func (t pgTx) Sales() SaleStore       { return t.sales }

// NewPgStore creates a new instance of Store using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		db:   dbp,
		pgTx: newPgTx(dbp),
	}
}

func (p *PgStore) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *PgStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ierrors.ErrTransactionBegin, err)
	}

	err = fn(ctx, newPgTx(tx))
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("%w: %w", ierrors.ErrTransactionRollback, rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ierrors.ErrTransactionCommit, err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isOutOfRange(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == numericValueOutOfRange
}
