package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/inventory-occ/internal/config"
	"github.com/rl1809/inventory-occ/internal/port"
)

var (
	ErrUnknownDriver   = errors.New("unknown store driver")
	ErrTxDone          = errors.New("transaction already committed or rolled back")
	ErrInventoryExists = errors.New("inventory already exists")
	ErrStockConstraint = errors.New("stock would become negative")
)

// Store is a provisioned repository together with the pool behind it.
type Store struct {
	port.InventoryRepository
	Driver string
	close  func() error
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open provisions the backend selected by cfg.Driver and verifies it is reachable.
func Open(ctx context.Context, cfg config.Store) (*Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return openSQL(ctx, cfg, "pgx", cfg.PostgresDSN, NewPostgresAdapter)
	case config.DriverMySQL:
		return openSQL(ctx, cfg, "mysql", cfg.MySQLDSN, NewMySQLAdapter)
	case config.DriverRedis:
		return openRedis(ctx, cfg)
	case config.DriverMemory:
		return &Store{InventoryRepository: NewMemoryAdapter(), Driver: cfg.Driver}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func openSQL(ctx context.Context, cfg config.Store, driverName, dsn string, newAdapter func(*sql.DB) *SQLAdapter) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	adapter := newAdapter(db)
	if cfg.AutoMigrate {
		if err := adapter.CreateSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{InventoryRepository: adapter, Driver: cfg.Driver, close: db.Close}, nil
}

func openRedis(ctx context.Context, cfg config.Store) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: cfg.MaxOpenConns,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{InventoryRepository: NewRedisAdapter(rdb), Driver: cfg.Driver, close: rdb.Close}, nil
}
