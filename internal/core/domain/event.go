package domain

import "time"

type LedgerEventKind string

const (
	LedgerEventBorrowed LedgerEventKind = "borrowed"
	LedgerEventReturned LedgerEventKind = "returned"
)

// LedgerEvent describes a committed borrow or return and the book quantity it left behind.
// BookVersion is the book row version written by the same transaction.
type LedgerEvent struct {
	Kind        LedgerEventKind
	RecordID    int64
	BookID      int64
	Quantity    int
	BookVersion int64
	OccurredAt  time.Time
}
