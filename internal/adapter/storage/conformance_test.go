package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/inventory-occ/internal/core/domain"
	"github.com/rl1809/inventory-occ/internal/core/service"
	"github.com/rl1809/inventory-occ/internal/port"
)

// seedFunc replaces whatever record exists under inv.ID.
type seedFunc func(t *testing.T, inv domain.Inventory)

// conformanceOptions switches off checks a backend cannot honour.
type conformanceOptions struct {
	// undoOnRollback is false when an applied decrement survives Rollback.
	undoOnRollback bool
}

// runConformance checks the repository contract every backend must honour.
func runConformance(t *testing.T, repo port.InventoryRepository, seed seedFunc, id int64, opts conformanceOptions) {
	ctx := context.Background()

	t.Run("GetInventory", func(t *testing.T) {
		seed(t, domain.Inventory{ID: id, Stock: 50, Version: 5})

		inv, err := repo.GetInventory(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, inv)
		assert.Equal(t, domain.Inventory{ID: id, Stock: 50, Version: 5}, *inv)

		again, err := repo.GetInventory(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, inv, again)
	})

	t.Run("GetInventory_NotFound", func(t *testing.T) {
		inv, err := repo.GetInventory(ctx, id+1_000_000)
		require.NoError(t, err)
		assert.Nil(t, inv)
	})

	t.Run("DecrementStock_OptimisticLock", func(t *testing.T) {
		seed(t, domain.Inventory{ID: id, Stock: 100, Version: 1})

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		rows, err := tx.DecrementStock(ctx, id, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 1, rows)
		require.NoError(t, tx.Commit())

		inv, err := repo.GetInventory(ctx, id)
		require.NoError(t, err)
		assert.EqualValues(t, 99, inv.Stock)
		assert.EqualValues(t, 2, inv.Version)

		// stale version
		tx, err = repo.BeginTx(ctx)
		require.NoError(t, err)
		rows, err = tx.DecrementStock(ctx, id, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 0, rows)
		require.NoError(t, tx.Rollback())

		inv, err = repo.GetInventory(ctx, id)
		require.NoError(t, err)
		assert.EqualValues(t, 99, inv.Stock)
		assert.EqualValues(t, 2, inv.Version)
	})

	t.Run("DecrementStock_MissingRecord", func(t *testing.T) {
		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		defer tx.Rollback()

		rows, err := tx.DecrementStock(ctx, id+1_000_000, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 0, rows)

		inv, err := repo.GetInventory(ctx, id+1_000_000)
		require.NoError(t, err)
		assert.Nil(t, inv)
	})

	t.Run("Rollback_AfterCommit", func(t *testing.T) {
		seed(t, domain.Inventory{ID: id, Stock: 3, Version: 0})

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		_, err = tx.DecrementStock(ctx, id, 0)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.NoError(t, tx.Rollback())

		inv, err := repo.GetInventory(ctx, id)
		require.NoError(t, err)
		assert.EqualValues(t, 2, inv.Stock)
	})

	t.Run("Rollback_DiscardsWrite", func(t *testing.T) {
		if !opts.undoOnRollback {
			t.Skip("decrement is applied before the scope ends")
		}
		seed(t, domain.Inventory{ID: id, Stock: 4, Version: 7})

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		rows, err := tx.DecrementStock(ctx, id, 7)
		require.NoError(t, err)
		assert.EqualValues(t, 1, rows)
		require.NoError(t, tx.Rollback())

		inv, err := repo.GetInventory(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.Inventory{ID: id, Stock: 4, Version: 7}, *inv)
	})

	t.Run("Sell_TimedOutAttemptsLeaveNoWrite", func(t *testing.T) {
		if !opts.undoOnRollback {
			t.Skip("a deadline can fire after the decrement was applied")
		}
		initialStock := int64(5)
		seed(t, domain.Inventory{ID: id, Stock: initialStock, Version: 0})

		svc := service.NewSellService(repo)
		report, err := svc.Simulate(ctx, domain.SimulationConfig{
			InventoryID:    id,
			Attempts:       20,
			AttemptTimeout: time.Millisecond,
		})
		require.NoError(t, err)
		require.NotNil(t, report.Final)

		committed := int64(report.Committed)
		assert.Equal(t, initialStock-committed, report.Final.Stock)
		assert.Equal(t, committed, report.Final.Version)
	})

	t.Run("Sell_NoOversell", func(t *testing.T) {
		initialStock := int64(5)
		attempts := 20
		seed(t, domain.Inventory{ID: id, Stock: initialStock, Version: 0})

		svc := service.NewSellService(repo)
		report, err := svc.Simulate(ctx, domain.SimulationConfig{InventoryID: id, Attempts: attempts})
		require.NoError(t, err)
		require.NotNil(t, report.Final)

		committed := int64(report.Committed)
		assert.LessOrEqual(t, committed, initialStock)
		assert.Positive(t, committed)
		assert.Equal(t, initialStock-committed, report.Final.Stock)
		assert.Equal(t, committed, report.Final.Version)
		assert.GreaterOrEqual(t, report.Final.Stock, int64(0))
		assert.Zero(t, report.Count(domain.OutcomeStoreError))
		assert.Zero(t, report.Count(domain.OutcomeNotFound))
	})

	t.Run("Sell_OneWriterPerVersion", func(t *testing.T) {
		seed(t, domain.Inventory{ID: id, Stock: 10, Version: 0})

		// every attempt reads version 0 before anyone writes
		const writers = 8
		var ready, wg sync.WaitGroup
		ready.Add(writers)
		start := make(chan struct{})
		var mu sync.Mutex
		var won int64

		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tx, err := repo.BeginTx(ctx)
				if !assert.NoError(t, err) {
					ready.Done()
					return
				}
				defer tx.Rollback()

				inv, err := tx.GetInventory(ctx, id)
				ready.Done()
				if !assert.NoError(t, err) || !assert.NotNil(t, inv) {
					return
				}
				<-start

				rows, err := tx.DecrementStock(ctx, id, inv.Version)
				if !assert.NoError(t, err) {
					return
				}
				if rows == 1 && assert.NoError(t, tx.Commit()) {
					mu.Lock()
					won++
					mu.Unlock()
				}
			}()
		}

		ready.Wait()
		close(start)
		wg.Wait()

		assert.EqualValues(t, 1, won)
		inv, err := repo.GetInventory(ctx, id)
		require.NoError(t, err)
		assert.EqualValues(t, 9, inv.Stock)
		assert.EqualValues(t, 1, inv.Version)
	})
}
