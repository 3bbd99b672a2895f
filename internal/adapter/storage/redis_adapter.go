package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/inventory-occ/internal/core/domain"
	"github.com/rl1809/inventory-occ/internal/port"
)

const inventoryKeyPrefix = "inventory:"

// Version check and decrement run as one script so the write is atomic per key.
var decrementStockScript = redis.NewScript(`
local key = KEYS[1]
local expected = tonumber(ARGV[1])

local version = redis.call('HGET', key, 'version')
if not version then
	return 0
end

if tonumber(version) ~= expected then
	return 0
end

if tonumber(redis.call('HGET', key, 'stock')) <= 0 then
	return redis.error_reply('stock would become negative')
end

redis.call('HINCRBY', key, 'stock', -1)
redis.call('HSET', key, 'version', expected + 1)
return 1
`)

var createInventoryScript = redis.NewScript(`
local key = KEYS[1]

if redis.call('EXISTS', key) == 1 then
	return 0
end

redis.call('HSET', key, 'stock', ARGV[1], 'version', ARGV[2])
return 1
`)

type inventoryHash struct {
	Stock   int64 `redis:"stock"`
	Version int64 `redis:"version"`
}

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func inventoryKey(id int64) string {
	return inventoryKeyPrefix + strconv.FormatInt(id, 10)
}

func (r *RedisAdapter) GetInventory(ctx context.Context, id int64) (*domain.Inventory, error) {
	res := r.client.HGetAll(ctx, inventoryKey(id))
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("hgetall inventory: %w", err)
	}
	if len(res.Val()) == 0 {
		return nil, nil
	}

	var h inventoryHash
	if err := res.Scan(&h); err != nil {
		return nil, fmt.Errorf("scan inventory: %w", err)
	}

	return &domain.Inventory{ID: id, Stock: h.Stock, Version: h.Version}, nil
}

func (r *RedisAdapter) CreateInventory(ctx context.Context, inv domain.Inventory) error {
	created, err := createInventoryScript.Run(ctx, r.client, []string{inventoryKey(inv.ID)}, inv.Stock, inv.Version).Int()
	if err != nil {
		return fmt.Errorf("create inventory: %w", err)
	}
	if created == 0 {
		return ErrInventoryExists
	}
	return nil
}

// BeginTx returns a scope whose only write is the atomic decrement script;
// commit and rollback just close it. The script is applied as soon as it runs,
// so Rollback cannot undo it: if the caller's deadline fires after the server
// ran the script but before the reply arrived, the attempt reports a store
// error while the stock stays decremented. Deployments that need a timed-out
// attempt to leave no write should run without AttemptTimeout on this driver.
func (r *RedisAdapter) BeginTx(ctx context.Context) (port.InventoryTx, error) {
	return &redisTx{adapter: r}, nil
}

type redisTx struct {
	adapter *RedisAdapter
	done    bool
}

func (t *redisTx) GetInventory(ctx context.Context, id int64) (*domain.Inventory, error) {
	if t.done {
		return nil, ErrTxDone
	}
	return t.adapter.GetInventory(ctx, id)
}

func (t *redisTx) DecrementStock(ctx context.Context, id int64, expectedVersion int64) (int64, error) {
	if t.done {
		return 0, ErrTxDone
	}

	rows, err := decrementStockScript.Run(ctx, t.adapter.client, []string{inventoryKey(id)}, expectedVersion).Int64()
	if err != nil {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	return rows, nil
}

func (t *redisTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	return nil
}

func (t *redisTx) Rollback() error {
	t.done = true
	return nil
}
