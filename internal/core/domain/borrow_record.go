package domain

import "github.com/shopspring/decimal"

type BorrowRecord struct {
	ID         int64           `db:"id" json:"id"`
	Borrower   string          `db:"borrower" json:"borrower"`
	BookID     int64           `db:"book_id" json:"book_id"`
	BorrowDate Date            `db:"borrow_date" json:"borrow_date"`
	DueDate    Date            `db:"due_date" json:"due_date"`
	Fine       decimal.Decimal `db:"fine" json:"fine"`
}

// LedgerEntry is a borrow record joined with the title of the book it references.
type LedgerEntry struct {
	BorrowRecord
	BookTitle string `db:"title" json:"book_title"`
}

// Overdue reports whether the record carried a fine when it was created.
func (e LedgerEntry) Overdue() bool {
	return e.Fine.IsPositive()
}
