package storage

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/rl1809/lending-ledger/internal/core/domain"
)

const (
	tableBorrowed = "borrowed"
	colBorrower   = "borrower"
	colBookID     = "book_id"
	colBorrowDate = "borrow_date"
	colDueDate    = "due_date"
	colFine       = "fine"

	aliasRecord = "r"
	aliasBook   = "b"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *sqlRepo) Insert(ctx context.Context, record domain.BorrowRecord) (domain.BorrowRecord, error) {
	ds := r.store.builder.Insert(tableBorrowed).Rows(goqu.Record{
		colBorrower:   record.Borrower,
		colBookID:     record.BookID,
		colBorrowDate: record.BorrowDate.String(),
		colDueDate:    record.DueDate.String(),
		colFine:       record.Fine.StringFixed(2),
	})

	id, err := r.store.insertReturningID(ctx, r.q, ds)
	if err != nil {
		return domain.BorrowRecord{}, fmt.Errorf("insert borrow record: %w", err)
	}

	record.ID = id
	return record, nil
}

func (r *sqlRepo) DeleteByID(ctx context.Context, id int64) (int64, error) {
	ds := r.store.builder.From(tableBorrowed).Select(colBookID).Where(goqu.C(colID).Eq(id))
	if r.locking {
		ds = ds.ForUpdate(exp.Wait)
	}

	query, _, err := ds.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build borrow record query: %w", err)
	}

	var bookID int64
	if err := r.q.QueryRowxContext(ctx, query).Scan(&bookID); err != nil {
		if isNoRows(err) {
			return 0, fmt.Errorf("%w: id %d", domain.ErrRecordNotFound, id)
		}
		return 0, fmt.Errorf("query borrow record: %w", err)
	}

	query, _, err = r.store.builder.Delete(tableBorrowed).Where(goqu.C(colID).Eq(id)).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build borrow record delete: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query); err != nil {
		return 0, fmt.Errorf("delete borrow record: %w", err)
	}

	return bookID, nil
}

// Search matches case-insensitively; LIKE wildcards in text are taken literally.
func (r *sqlRepo) Search(ctx context.Context, text string) iter.Seq2[domain.LedgerEntry, error] {
	return func(yield func(domain.LedgerEntry, error) bool) {
		query, _, err := r.searchQuery(text).ToSQL()
		if err != nil {
			yield(domain.LedgerEntry{}, fmt.Errorf("build search query: %w", err))
			return
		}

		rows, err := r.q.QueryxContext(ctx, query)
		if err != nil {
			yield(domain.LedgerEntry{}, fmt.Errorf("search borrow records: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var entry domain.LedgerEntry
			if err := rows.StructScan(&entry); err != nil {
				yield(domain.LedgerEntry{}, fmt.Errorf("scan borrow record: %w", err))
				return
			}
			if !yield(entry, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(domain.LedgerEntry{}, fmt.Errorf("iterate borrow records: %w", err))
		}
	}
}

func (r *sqlRepo) searchQuery(text string) *goqu.SelectDataset {
	ds := r.store.builder.
		From(goqu.T(tableBorrowed).As(aliasRecord)).
		Join(
			goqu.T(tableBooks).As(aliasBook),
			goqu.On(goqu.T(aliasRecord).Col(colBookID).Eq(goqu.T(aliasBook).Col(colID))),
		).
		Select(
			goqu.T(aliasRecord).Col(colID),
			goqu.T(aliasRecord).Col(colBorrower),
			goqu.T(aliasRecord).Col(colBookID),
			goqu.T(aliasRecord).Col(colBorrowDate),
			goqu.T(aliasRecord).Col(colDueDate),
			goqu.T(aliasRecord).Col(colFine),
			goqu.T(aliasBook).Col(colTitle),
		).
		Order(goqu.T(aliasRecord).Col(colID).Asc())

	if text == "" {
		return ds
	}

	pattern := "%" + likeEscaper.Replace(strings.ToLower(text)) + "%"
	return ds.Where(goqu.Or(
		goqu.Func("LOWER", goqu.T(aliasRecord).Col(colBorrower)).Like(pattern),
		goqu.Func("LOWER", goqu.T(aliasBook).Col(colTitle)).Like(pattern),
	))
}
