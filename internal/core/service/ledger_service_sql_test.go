package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/lending-ledger/internal/adapter/storage"
	"github.com/rl1809/lending-ledger/internal/core/domain"
)

func getMySQLStore(t *testing.T) *storage.SQLStore {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/ledger?parseTime=true"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	db, err := storage.OpenDB(ctx, "mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewSQLStore(db)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestIntegration_ConcurrentLastCopy(t *testing.T) {
	store := getMySQLStore(t)
	ctx := context.Background()

	book, err := store.AddBook(ctx, "last-copy-"+uuid.New().String(), 1)
	require.NoError(t, err)
	svc := NewLedgerService(store)

	var successCount atomic.Int32
	var outOfStockCount atomic.Int32
	var wg sync.WaitGroup
	var records sync.Map

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := svc.Borrow(ctx, BorrowRequest{
				Borrower: "racer", BookID: book.ID, BorrowDate: march1, DueDate: march10,
			})
			switch {
			case err == nil:
				successCount.Add(1)
				records.Store(record.ID, struct{}{})
			case errors.Is(err, domain.ErrOutOfStock):
				outOfStockCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
	assert.Equal(t, int32(9), outOfStockCount.Load())
	assert.Equal(t, 0, quantityOf(t, store, book.ID))

	// Cleanup through the engine restores the copy
	records.Range(func(key, _ any) bool {
		require.NoError(t, svc.ReturnBook(ctx, key.(int64)))
		return true
	})
	assert.Equal(t, 1, quantityOf(t, store, book.ID))
}
