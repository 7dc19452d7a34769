package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"payment-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// UnitOfWork is the transactional scope every store operation runs in.
// Callers open one with WithinTx; nesting is never implicit.
type UnitOfWork interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns a UnitOfWork backed by the pool itself, for single-statement
// reads that need no transaction
func (s *Store) DB() UnitOfWork {
	return s.db
}

// WithinTx runs fn inside one database transaction. The transaction is
// rolled back if fn returns an error or panics, committed otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// GetProduct retrieves a product by ID without locking it
func (s *Store) GetProduct(ctx context.Context, uow UnitOfWork, id string) (*models.Product, error) {
	var product models.Product
	err := uow.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves the full catalog
func (s *Store) GetProducts(ctx context.Context, uow UnitOfWork) ([]models.Product, error) {
	var products []models.Product
	err := uow.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY name")
	return products, err
}

// ReserveStock acquires an exclusive lock on the product row, validates
// availability and debits the requested quantity. The debit is durable only
// if the enclosing UnitOfWork commits. The lock scope is the single row, so
// purchases of different products stay fully concurrent.
func (s *Store) ReserveStock(ctx context.Context, uow UnitOfWork, productID string, quantity int) (*models.Product, error) {
	if quantity <= 0 {
		return nil, models.ErrInvalidQuantity
	}

	var product models.Product
	err := uow.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 FOR UPDATE", productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	if product.Quantity < quantity {
		return nil, models.ErrInsufficientStock
	}

	product.Quantity -= quantity
	_, err = uow.ExecContext(ctx,
		"UPDATE products SET quantity = $1 WHERE id = $2",
		product.Quantity, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	return &product, nil
}

// RestoreStock credits quantity back to the product. Always additive;
// oversell protection lives on the debit side only.
func (s *Store) RestoreStock(ctx context.Context, uow UnitOfWork, productID string, quantity int) error {
	res, err := uow.ExecContext(ctx,
		"UPDATE products SET quantity = quantity + $1 WHERE id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrProductNotFound
	}
	return nil
}
