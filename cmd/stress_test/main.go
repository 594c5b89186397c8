package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/lending-ledger/internal/adapter/storage"
	"github.com/rl1809/lending-ledger/internal/config"
	"github.com/rl1809/lending-ledger/internal/core/domain"
	"github.com/rl1809/lending-ledger/internal/core/service"
	"github.com/rl1809/lending-ledger/internal/port"
)

// fixtureStore can create the book the race runs against.
type fixtureStore interface {
	port.Store
	AddBook(ctx context.Context, title string, quantity int) (domain.Book, error)
}

func main() {
	initialStock := flag.Int("copies", 1, "copies of the contested title")
	totalRequests := flag.Int("requests", 50, "concurrent borrow attempts")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var store fixtureStore
	if cfg.DBDriver == config.DriverMemory {
		store = storage.NewMemoryStore()
	} else {
		db, err := storage.OpenDB(ctx, cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			log.Fatalf("failed to connect %s: %v", cfg.DBDriver, err)
		}
		defer db.Close()

		sqlStore, err := storage.NewSQLStore(db)
		if err != nil {
			log.Fatalf("failed to create store: %v", err)
		}
		if err := sqlStore.EnsureSchema(ctx); err != nil {
			log.Fatalf("failed to ensure schema: %v", err)
		}
		store = sqlStore
	}

	book, err := store.AddBook(ctx, "stress-"+uuid.New().String(), *initialStock)
	if err != nil {
		log.Fatalf("failed to add book: %v", err)
	}

	ledgerService := service.NewLedgerService(store)
	today := ledgerService.Today()

	// Counters
	var successCount atomic.Int32
	var outOfStockCount atomic.Int32
	var otherCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := ledgerService.Borrow(ctx, service.BorrowRequest{
				RequestID:  uuid.New().String(),
				Borrower:   fmt.Sprintf("reader-%d", n),
				BookID:     book.ID,
				BorrowDate: today,
				DueDate:    today.AddDays(14),
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrOutOfStock):
				outOfStockCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("borrow %d failed: %v", n, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	outOfStock := outOfStockCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Driver:           %s\n", cfg.DBDriver)
	fmt.Printf("Initial Copies:   %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of stock:     %d\n", outOfStock)
	fmt.Printf("Other failures:   %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	expected := min(*initialStock, *totalRequests)
	if int(success) == expected && int(outOfStock) == *totalRequests-expected {
		fmt.Printf("PASS: exactly %d borrows succeeded\n", expected)
	} else {
		fmt.Printf("FAIL: expected %d success/%d out of stock, got %d/%d\n",
			expected, *totalRequests-expected, success, outOfStock)
	}

	// Verify final quantity
	final, err := store.Catalog().GetByID(ctx, book.ID)
	if err != nil {
		log.Fatalf("failed to read book: %v", err)
	}
	fmt.Printf("Final Quantity:   %d\n", final.Quantity)

	if final.Quantity == *initialStock-expected {
		fmt.Println("PASS: quantity matches active records")
	} else {
		fmt.Printf("FAIL: expected quantity %d, got %d\n", *initialStock-expected, final.Quantity)
	}
}
