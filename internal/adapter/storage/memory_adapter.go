package storage

import (
	"context"
	"sync"

	"github.com/rl1809/inventory-occ/internal/core/domain"
	"github.com/rl1809/inventory-occ/internal/port"
)

// MemoryAdapter keeps records in process. A successful conditional write
// holds the row until its scope commits or rolls back, so a concurrent
// writer waits and then re-checks the version against the committed row.
type MemoryAdapter struct {
	mu      sync.Mutex
	records map[int64]*memoryRecord
}

type memoryRecord struct {
	inv    domain.Inventory
	writer chan struct{}
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{records: make(map[int64]*memoryRecord)}
}

func (m *MemoryAdapter) GetInventory(ctx context.Context, id int64) (*domain.Inventory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	inv := rec.inv
	return &inv, nil
}

func (m *MemoryAdapter) CreateInventory(ctx context.Context, inv domain.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[inv.ID]; ok {
		return ErrInventoryExists
	}
	m.records[inv.ID] = &memoryRecord{inv: inv, writer: make(chan struct{}, 1)}
	return nil
}

func (m *MemoryAdapter) BeginTx(ctx context.Context) (port.InventoryTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryTx{
		adapter: m,
		held:    make(map[int64]*memoryRecord),
		staged:  make(map[int64]domain.Inventory),
	}, nil
}

func (m *MemoryAdapter) record(id int64) *memoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

type memoryTx struct {
	adapter *MemoryAdapter
	held    map[int64]*memoryRecord
	staged  map[int64]domain.Inventory
	done    bool
}

func (t *memoryTx) GetInventory(ctx context.Context, id int64) (*domain.Inventory, error) {
	if t.done {
		return nil, ErrTxDone
	}
	if inv, ok := t.staged[id]; ok {
		return &inv, nil
	}
	return t.adapter.GetInventory(ctx, id)
}

func (t *memoryTx) DecrementStock(ctx context.Context, id int64, expectedVersion int64) (int64, error) {
	if t.done {
		return 0, ErrTxDone
	}

	rec := t.adapter.record(id)
	if rec == nil {
		return 0, nil
	}

	if _, ok := t.held[id]; !ok {
		select {
		case rec.writer <- struct{}{}:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		t.held[id] = rec
	}

	current, staged := t.staged[id]
	if !staged {
		t.adapter.mu.Lock()
		current = rec.inv
		t.adapter.mu.Unlock()
	}

	if current.Version != expectedVersion {
		if !staged {
			t.release(id)
		}
		return 0, nil
	}

	if current.Stock <= 0 {
		if !staged {
			t.release(id)
		}
		return 0, ErrStockConstraint
	}

	current.Stock--
	current.Version = expectedVersion + 1
	t.staged[id] = current
	return 1, nil
}

func (t *memoryTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	t.adapter.mu.Lock()
	for id, inv := range t.staged {
		t.held[id].inv = inv
	}
	t.adapter.mu.Unlock()

	t.releaseAll()
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.releaseAll()
	return nil
}

func (t *memoryTx) release(id int64) {
	<-t.held[id].writer
	delete(t.held, id)
}

func (t *memoryTx) releaseAll() {
	for id := range t.held {
		t.release(id)
	}
	clear(t.staged)
}
