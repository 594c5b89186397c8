package port

import (
	"context"
	"iter"

	"github.com/rl1809/lending-ledger/internal/core/domain"
)

type CatalogRepository interface {
	// ListAvailable returns books with quantity > 0 ordered by id
	ListAvailable(ctx context.Context) ([]domain.Book, error)

	// GetByID fails with domain.ErrBookNotFound for an unknown id.
	// Inside a transaction the row stays locked until commit.
	GetByID(ctx context.Context, id int64) (domain.Book, error)

	// GetByTitle returns the lowest-id book with exactly this title
	GetByTitle(ctx context.Context, title string) (domain.Book, error)

	// AdjustQuantity applies quantity += delta and returns the updated book.
	// Fails with domain.ErrInvariantViolation when the result would be negative.
	AdjustQuantity(ctx context.Context, id int64, delta int) (domain.Book, error)
}

type LedgerRepository interface {
	// Insert assigns a new id and returns the stored record
	Insert(ctx context.Context, record domain.BorrowRecord) (domain.BorrowRecord, error)

	// DeleteByID removes the record and returns the book id it referenced
	DeleteByID(ctx context.Context, id int64) (int64, error)

	// Search yields records whose borrower or book title contains text, ordered by record id.
	// An empty text matches every record.
	Search(ctx context.Context, text string) iter.Seq2[domain.LedgerEntry, error]
}

// Tx exposes the repositories bound to one open transaction.
type Tx interface {
	Catalog() CatalogRepository
	Ledger() LedgerRepository
}

type Store interface {
	Tx

	// WithinTx commits when fn returns nil and rolls back otherwise
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
