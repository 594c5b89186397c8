package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/lending-ledger/internal/core/domain"
	"github.com/rl1809/lending-ledger/internal/port"
)

const (
	idempotencyKeyPrefix = "borrow:"

	logMsgBorrowed           = "book borrowed"
	logMsgReturned           = "book returned"
	logMsgEventDropped       = "event queue full, dropping ledger event"
	logMsgQueueClosed        = "event queue closed, dropping ledger event"
	logMsgMirrorUpdateFailed = "failed to refresh availability mirror"
	logMsgMirrorReadFailed   = "failed to read availability mirror"
	logMsgIdempotencyRelease = "failed to release idempotency key"
	logMsgInvariantViolation = "inventory invariant violated"
	logAttrError             = "error"
	logAttrRecordID          = "record_id"
	logAttrBookID            = "book_id"
	logAttrQuantity          = "quantity"
	logAttrFine              = "fine"
	logAttrRequestID         = "request_id"
)

// Logger receives operational messages with alternating key/value args, as log/slog does.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LedgerService is the lending ledger engine. Every mutation runs as one store transaction.
type LedgerService struct {
	store  port.Store
	cache  port.CacheRepository
	events chan domain.LedgerEvent
	now    func() time.Time
	logger Logger

	// queueMu guards closed; publish holds it shared while sending.
	queueMu sync.RWMutex
	closed  bool
}

type Option func(*LedgerService)

// WithCache enables request idempotency and the availability mirror.
func WithCache(cache port.CacheRepository) Option {
	return func(s *LedgerService) {
		s.cache = cache
	}
}

// WithEventQueue publishes committed changes on a queue of the given size.
func WithEventQueue(size int) Option {
	return func(s *LedgerService) {
		if size > 0 {
			s.events = make(chan domain.LedgerEvent, size)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) {
		s.now = now
	}
}

func WithLogger(logger Logger) Option {
	return func(s *LedgerService) {
		s.logger = logger
	}
}

func NewLedgerService(store port.Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type BorrowRequest struct {
	// RequestID is optional; with a cache configured a repeated id is rejected.
	RequestID  string
	Borrower   string
	BookID     int64
	BorrowDate domain.Date
	DueDate    domain.Date
	// Today is the as-of day for the fine. Zero means the service clock.
	Today domain.Date
}

type QueryResult struct {
	Entries []domain.LedgerEntry
	Total   int
}

// Today returns the current calendar day according to the service clock.
func (s *LedgerService) Today() domain.Date {
	return domain.DateOf(s.now())
}

func (s *LedgerService) Borrow(ctx context.Context, req BorrowRequest) (domain.BorrowRecord, error) {
	borrower := strings.TrimSpace(req.Borrower)
	if borrower == "" {
		return domain.BorrowRecord{}, domain.ErrEmptyBorrower
	}
	if req.BorrowDate.IsZero() || req.DueDate.IsZero() {
		return domain.BorrowRecord{}, fmt.Errorf("%w: borrow and due dates are required", domain.ErrValidation)
	}
	if req.DueDate.Before(req.BorrowDate) {
		return domain.BorrowRecord{}, domain.ErrInvalidDateRange
	}

	today := req.Today
	if today.IsZero() {
		today = s.Today()
	}

	if err := s.claimRequest(ctx, req.RequestID); err != nil {
		return domain.BorrowRecord{}, err
	}

	record := domain.BorrowRecord{
		Borrower:   borrower,
		BookID:     req.BookID,
		BorrowDate: req.BorrowDate,
		DueDate:    req.DueDate,
		Fine:       domain.ComputeFine(req.DueDate, today),
	}

	var updated domain.Book
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		book, err := tx.Catalog().GetByID(ctx, req.BookID)
		if err != nil {
			return err
		}
		if !book.Available() {
			return fmt.Errorf("%w: %q has no copies left", domain.ErrOutOfStock, book.Title)
		}

		updated, err = tx.Catalog().AdjustQuantity(ctx, book.ID, -1)
		if err != nil {
			return err
		}

		record, err = tx.Ledger().Insert(ctx, record)
		return err
	})
	if err != nil {
		s.releaseRequest(ctx, req.RequestID)
		s.logInvariant(err, req.BookID)
		return domain.BorrowRecord{}, err
	}

	s.info(logMsgBorrowed,
		logAttrRecordID, record.ID,
		logAttrBookID, record.BookID,
		logAttrQuantity, updated.Quantity,
		logAttrFine, record.Fine.String(),
	)
	s.publish(domain.LedgerEvent{
		Kind:        domain.LedgerEventBorrowed,
		RecordID:    record.ID,
		BookID:      record.BookID,
		Quantity:    updated.Quantity,
		BookVersion: updated.Version,
		OccurredAt:  s.now(),
	})

	return record, nil
}

// ReturnBook deletes the record and restores one copy of the book the record references.
func (s *LedgerService) ReturnBook(ctx context.Context, recordID int64) error {
	var (
		bookID  int64
		updated domain.Book
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		var err error
		bookID, err = tx.Ledger().DeleteByID(ctx, recordID)
		if err != nil {
			return err
		}

		updated, err = tx.Catalog().AdjustQuantity(ctx, bookID, 1)
		return err
	})
	if err != nil {
		s.logInvariant(err, bookID)
		return err
	}

	s.info(logMsgReturned,
		logAttrRecordID, recordID,
		logAttrBookID, bookID,
		logAttrQuantity, updated.Quantity,
	)
	s.publish(domain.LedgerEvent{
		Kind:        domain.LedgerEventReturned,
		RecordID:    recordID,
		BookID:      bookID,
		Quantity:    updated.Quantity,
		BookVersion: updated.Version,
		OccurredAt:  s.now(),
	})

	return nil
}

func (s *LedgerService) Query(ctx context.Context, searchText string) (QueryResult, error) {
	result := QueryResult{Entries: []domain.LedgerEntry{}}
	for entry, err := range s.store.Ledger().Search(ctx, searchText) {
		if err != nil {
			return QueryResult{}, fmt.Errorf("search ledger: %w", err)
		}
		result.Entries = append(result.Entries, entry)
	}
	result.Total = len(result.Entries)
	return result, nil
}

func (s *LedgerService) ListAvailableBooks(ctx context.Context) ([]domain.Book, error) {
	books, err := s.store.Catalog().ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available books: %w", err)
	}
	return books, nil
}

// BookAvailability serves the quantity from the availability mirror when present
// and falls back to the catalog, refreshing the mirror.
func (s *LedgerService) BookAvailability(ctx context.Context, bookID int64) (int, error) {
	if s.cache != nil {
		quantity, ok, err := s.cache.GetStock(ctx, bookID)
		if err != nil {
			s.warn(logMsgMirrorReadFailed, logAttrBookID, bookID, logAttrError, err.Error())
		} else if ok {
			return quantity, nil
		}
	}

	book, err := s.store.Catalog().GetByID(ctx, bookID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.SetStock(ctx, book.ID, book.Quantity, book.Version); err != nil {
			s.warn(logMsgMirrorUpdateFailed, logAttrBookID, book.ID, logAttrError, err.Error())
		}
	}
	return book.Quantity, nil
}

// SyncAvailability applies a committed ledger event to the availability mirror.
func (s *LedgerService) SyncAvailability(ctx context.Context, event domain.LedgerEvent) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.SetStock(ctx, event.BookID, event.Quantity, event.BookVersion); err != nil {
		return fmt.Errorf("sync availability of book %d: %w", event.BookID, err)
	}
	return nil
}

// GetEventQueue returns the committed-change queue, nil when WithEventQueue was not given.
func (s *LedgerService) GetEventQueue() <-chan domain.LedgerEvent {
	return s.events
}

// Close stops publishing and closes the event queue. Changes committed afterwards
// are not published. Safe to call more than once.
func (s *LedgerService) Close() {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.events != nil {
		close(s.events)
	}
}

func (s *LedgerService) claimRequest(ctx context.Context, requestID string) error {
	if s.cache == nil || requestID == "" {
		return nil
	}

	ok, err := s.cache.SetIdempotency(ctx, idempotencyKeyPrefix+requestID)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return domain.ErrDuplicateRequest
	}
	return nil
}

func (s *LedgerService) releaseRequest(ctx context.Context, requestID string) {
	if s.cache == nil || requestID == "" {
		return
	}

	if err := s.cache.ReleaseIdempotency(ctx, idempotencyKeyPrefix+requestID); err != nil {
		s.warn(logMsgIdempotencyRelease, logAttrRequestID, requestID, logAttrError, err.Error())
	}
}

func (s *LedgerService) publish(event domain.LedgerEvent) {
	if s.events == nil {
		return
	}

	s.queueMu.RLock()
	defer s.queueMu.RUnlock()

	if s.closed {
		s.warn(logMsgQueueClosed, logAttrRecordID, event.RecordID, logAttrBookID, event.BookID)
		return
	}

	select {
	case s.events <- event:
	default:
		s.warn(logMsgEventDropped, logAttrRecordID, event.RecordID, logAttrBookID, event.BookID)
	}
}

func (s *LedgerService) logInvariant(err error, bookID int64) {
	if s.logger != nil && errors.Is(err, domain.ErrInvariantViolation) {
		s.logger.Error(logMsgInvariantViolation, logAttrBookID, bookID, logAttrError, err.Error())
	}
}

func (s *LedgerService) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *LedgerService) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
