package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rl1809/inventory-occ/internal/core/domain"
	"github.com/rl1809/inventory-occ/internal/port"
)

type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

const (
	createInventoryTableSQL = `
		CREATE TABLE IF NOT EXISTS inventory (
			id      BIGINT NOT NULL PRIMARY KEY,
			stock   BIGINT NOT NULL DEFAULT 0,
			version BIGINT NOT NULL DEFAULT 0,
			CHECK (stock >= 0),
			CHECK (version >= 0)
		)`

	selectInventorySQL = `SELECT id, stock, version FROM inventory WHERE id = ?`

	insertInventorySQL = `INSERT INTO inventory (id, stock, version) VALUES (?, ?, ?)`

	// version = version + 1 equals expected + 1 whenever the predicate matched
	decrementStockSQL = `
		UPDATE inventory
		SET stock = stock - 1, version = version + 1
		WHERE id = ? AND version = ?`
)

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLAdapter struct {
	db      *sql.DB
	dialect Dialect
}

func NewMySQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db, dialect: DialectMySQL}
}

func NewPostgresAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db, dialect: DialectPostgres}
}

func (m *SQLAdapter) Dialect() Dialect {
	return m.dialect
}

// CreateSchema creates the inventory relation if it is missing.
func (m *SQLAdapter) CreateSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createInventoryTableSQL); err != nil {
		return fmt.Errorf("create inventory table: %w", err)
	}
	return nil
}

func (m *SQLAdapter) GetInventory(ctx context.Context, id int64) (*domain.Inventory, error) {
	return m.getInventory(ctx, m.db, id)
}

func (m *SQLAdapter) CreateInventory(ctx context.Context, inv domain.Inventory) error {
	_, err := m.db.ExecContext(ctx, m.rebind(insertInventorySQL), inv.ID, inv.Stock, inv.Version)
	if err != nil {
		return fmt.Errorf("insert inventory: %w", err)
	}
	return nil
}

func (m *SQLAdapter) BeginTx(ctx context.Context) (port.InventoryTx, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &sqlTx{adapter: m, tx: tx}, nil
}

func (m *SQLAdapter) getInventory(ctx context.Context, q rowQuerier, id int64) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := q.QueryRowContext(ctx, m.rebind(selectInventorySQL), id).
		Scan(&inv.ID, &inv.Stock, &inv.Version)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}

	return &inv, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (m *SQLAdapter) rebind(query string) string {
	if m.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type sqlTx struct {
	adapter *SQLAdapter
	tx      *sql.Tx
}

func (t *sqlTx) GetInventory(ctx context.Context, id int64) (*domain.Inventory, error) {
	return t.adapter.getInventory(ctx, t.tx, id)
}

func (t *sqlTx) DecrementStock(ctx context.Context, id int64, expectedVersion int64) (int64, error) {
	result, err := t.tx.ExecContext(ctx, t.adapter.rebind(decrementStockSQL), id, expectedVersion)
	if err != nil {
		return 0, fmt.Errorf("update inventory: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return rows, nil
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	err := t.tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return fmt.Errorf("rollback: %w", err)
}
