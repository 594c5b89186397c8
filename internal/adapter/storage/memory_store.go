package storage

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/rl1809/lending-ledger/internal/core/domain"
	"github.com/rl1809/lending-ledger/internal/port"
)

// MemoryStore keeps the catalog and ledger in process memory.
// Transactions are serialized by a single mutex and rolled back from a snapshot.
type MemoryStore struct {
	mu           sync.Mutex
	books        map[int64]domain.Book
	records      map[int64]domain.BorrowRecord
	nextBookID   int64
	nextRecordID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:        make(map[int64]domain.Book),
		records:      make(map[int64]domain.BorrowRecord),
		nextBookID:   1,
		nextRecordID: 1,
	}
}

var _ port.Store = (*MemoryStore)(nil)

// AddBook puts a title into the catalog. Catalog management is not part of the engine;
// this exists for seeding and fixtures.
func (m *MemoryStore) AddBook(ctx context.Context, title string, quantity int) (domain.Book, error) {
	if quantity < 0 {
		return domain.Book{}, fmt.Errorf("%w: quantity %d is negative", domain.ErrInvariantViolation, quantity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	book := domain.Book{ID: m.nextBookID, Title: title, Quantity: quantity}
	m.books[book.ID] = book
	m.nextBookID++
	return book, nil
}

// Seed loads the default catalog when no book exists yet.
func (m *MemoryStore) Seed(ctx context.Context) error {
	m.mu.Lock()
	empty := len(m.books) == 0
	m.mu.Unlock()
	if !empty {
		return nil
	}

	for _, b := range DefaultCatalog {
		if _, err := m.AddBook(ctx, b.Title, b.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) Catalog() port.CatalogRepository {
	return &memoryRepo{store: m}
}

func (m *MemoryStore) Ledger() port.LedgerRepository {
	return &memoryRepo{store: m}
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	books := maps.Clone(m.books)
	records := maps.Clone(m.records)
	nextRecordID := m.nextRecordID

	if err := fn(ctx, memoryTx{repo: &memoryRepo{store: m, locked: true}}); err != nil {
		m.books = books
		m.records = records
		m.nextRecordID = nextRecordID
		return err
	}
	return nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t memoryTx) Catalog() port.CatalogRepository { return t.repo }
func (t memoryTx) Ledger() port.LedgerRepository   { return t.repo }

// memoryRepo implements both repositories. When locked is set the caller already holds store.mu.
type memoryRepo struct {
	store  *MemoryStore
	locked bool
}

func (r *memoryRepo) lock() func() {
	if r.locked {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memoryRepo) ListAvailable(ctx context.Context) ([]domain.Book, error) {
	defer r.lock()()

	books := make([]domain.Book, 0, len(r.store.books))
	for _, id := range slices.Sorted(maps.Keys(r.store.books)) {
		if b := r.store.books[id]; b.Available() {
			books = append(books, b)
		}
	}
	return books, nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id int64) (domain.Book, error) {
	defer r.lock()()

	book, ok := r.store.books[id]
	if !ok {
		return domain.Book{}, fmt.Errorf("%w: id %d", domain.ErrBookNotFound, id)
	}
	return book, nil
}

func (r *memoryRepo) GetByTitle(ctx context.Context, title string) (domain.Book, error) {
	defer r.lock()()

	for _, id := range slices.Sorted(maps.Keys(r.store.books)) {
		if b := r.store.books[id]; b.Title == title {
			return b, nil
		}
	}
	return domain.Book{}, fmt.Errorf("%w: title %q", domain.ErrBookNotFound, title)
}

func (r *memoryRepo) AdjustQuantity(ctx context.Context, id int64, delta int) (domain.Book, error) {
	defer r.lock()()

	book, ok := r.store.books[id]
	if !ok {
		return domain.Book{}, fmt.Errorf("%w: id %d", domain.ErrBookNotFound, id)
	}
	if book.Quantity+delta < 0 {
		return domain.Book{}, fmt.Errorf("%w: quantity of book %d would drop to %d",
			domain.ErrInvariantViolation, id, book.Quantity+delta)
	}

	book.Quantity += delta
	book.Version++
	r.store.books[id] = book
	return book, nil
}

func (r *memoryRepo) Insert(ctx context.Context, record domain.BorrowRecord) (domain.BorrowRecord, error) {
	defer r.lock()()

	if _, ok := r.store.books[record.BookID]; !ok {
		return domain.BorrowRecord{}, fmt.Errorf("%w: id %d", domain.ErrBookNotFound, record.BookID)
	}

	record.ID = r.store.nextRecordID
	r.store.records[record.ID] = record
	r.store.nextRecordID++
	return record, nil
}

func (r *memoryRepo) DeleteByID(ctx context.Context, id int64) (int64, error) {
	defer r.lock()()

	record, ok := r.store.records[id]
	if !ok {
		return 0, fmt.Errorf("%w: id %d", domain.ErrRecordNotFound, id)
	}

	delete(r.store.records, id)
	return record.BookID, nil
}

func (r *memoryRepo) Search(ctx context.Context, text string) iter.Seq2[domain.LedgerEntry, error] {
	return func(yield func(domain.LedgerEntry, error) bool) {
		entries := r.snapshotEntries(text)
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				yield(domain.LedgerEntry{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func (r *memoryRepo) snapshotEntries(text string) []domain.LedgerEntry {
	defer r.lock()()

	needle := strings.ToLower(text)
	entries := make([]domain.LedgerEntry, 0, len(r.store.records))
	for _, id := range slices.Sorted(maps.Keys(r.store.records)) {
		record := r.store.records[id]
		title := r.store.books[record.BookID].Title
		if needle != "" &&
			!strings.Contains(strings.ToLower(record.Borrower), needle) &&
			!strings.Contains(strings.ToLower(title), needle) {
			continue
		}
		entries = append(entries, domain.LedgerEntry{BorrowRecord: record, BookTitle: title})
	}
	return entries
}
