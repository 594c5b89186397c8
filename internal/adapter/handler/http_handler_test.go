package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/lending-ledger/internal/adapter/storage"
	"github.com/rl1809/lending-ledger/internal/core/domain"
	"github.com/rl1809/lending-ledger/internal/core/service"
)

func newTestLedgerService(t *testing.T) *service.LedgerService {
	t.Helper()

	store := storage.NewMemoryStore()
	require.NoError(t, store.Seed(context.Background()))

	clock := func() time.Time { return time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC) }
	return service.NewLedgerService(store, service.WithClock(clock))
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTP_HealthCheck(t *testing.T) {
	h := NewHTTPHandler(newTestLedgerService(t)).Routes()

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHTTP_BorrowAndReturn(t *testing.T) {
	h := NewHTTPHandler(newTestLedgerService(t)).Routes()

	rec := doRequest(t, h, http.MethodPost, "/api/borrow",
		`{"borrower":"Alice","book_id":1,"borrow_date":"03/01/2024","due_date":"03/10/2024"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var record domain.BorrowRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "Alice", record.Borrower)
	assert.Equal(t, "03/10/2024", record.DueDate.String())
	assert.True(t, decimal.NewFromInt(25).Equal(record.Fine), "clock is March 15, got %s", record.Fine)

	rec = doRequest(t, h, http.MethodGet, "/api/books/1/availability", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"book_id":1,"quantity":3}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodDelete, "/api/records/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, "/api/records/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/books/1/availability", "")
	assert.JSONEq(t, `{"book_id":1,"quantity":4}`, rec.Body.String())
}

func TestHTTP_BorrowErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed body", body: `{`, status: http.StatusBadRequest},
		{name: "bad date", body: `{"borrower":"A","book_id":1,"borrow_date":"2024-03-01","due_date":"03/10/2024"}`, status: http.StatusBadRequest},
		{name: "missing book", body: `{"borrower":"A","borrow_date":"03/01/2024","due_date":"03/10/2024"}`, status: http.StatusNotFound},
		{name: "negative book", body: `{"borrower":"A","book_id":-3,"borrow_date":"03/01/2024","due_date":"03/10/2024"}`, status: http.StatusNotFound},
		{name: "empty borrower", body: `{"borrower":"","book_id":1,"borrow_date":"03/01/2024","due_date":"03/10/2024"}`, status: http.StatusBadRequest},
		{name: "date range", body: `{"borrower":"A","book_id":1,"borrow_date":"03/10/2024","due_date":"03/01/2024"}`, status: http.StatusBadRequest},
		{name: "unknown book", body: `{"borrower":"A","book_id":99,"borrow_date":"03/01/2024","due_date":"03/10/2024"}`, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHTTPHandler(newTestLedgerService(t)).Routes()

			rec := doRequest(t, h, http.MethodPost, "/api/borrow", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var resp ErrorHTTPResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestHTTP_BorrowOutOfStock(t *testing.T) {
	h := NewHTTPHandler(newTestLedgerService(t)).Routes()
	body := `{"borrower":"A","book_id":5,"borrow_date":"03/01/2024","due_date":"03/20/2024"}`

	for i := 0; i < 2; i++ {
		rec := doRequest(t, h, http.MethodPost, "/api/borrow", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doRequest(t, h, http.MethodPost, "/api/borrow", body)
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestHTTP_RecordsAndBooks(t *testing.T) {
	h := NewHTTPHandler(newTestLedgerService(t)).Routes()

	for _, body := range []string{
		`{"borrower":"Alice","book_id":1,"borrow_date":"03/01/2024","due_date":"03/20/2024"}`,
		`{"borrower":"Bob","book_id":4,"borrow_date":"03/01/2024","due_date":"03/10/2024","today":"03/12/2024"}`,
	} {
		rec := doRequest(t, h, http.MethodPost, "/api/borrow", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := doRequest(t, h, http.MethodGet, "/api/records?search=web", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RecordsHTTPResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "Bob", resp.Records[0].Borrower)
	assert.Equal(t, "Web Development", resp.Records[0].BookTitle)
	assert.True(t, resp.Records[0].Overdue)
	assert.True(t, decimal.NewFromInt(10).Equal(resp.Records[0].Fine))

	rec = doRequest(t, h, http.MethodGet, "/api/records", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)

	rec = doRequest(t, h, http.MethodGet, "/api/books", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var books []domain.Book
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &books))
	require.Len(t, books, 5)
	assert.Equal(t, 3, books[0].Quantity)
	assert.Equal(t, 1, books[3].Quantity)
}

func TestHTTP_InvalidPathID(t *testing.T) {
	h := NewHTTPHandler(newTestLedgerService(t)).Routes()

	rec := doRequest(t, h, http.MethodDelete, "/api/records/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/books/0/availability", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_MethodNotAllowed(t *testing.T) {
	h := NewHTTPHandler(newTestLedgerService(t)).Routes()

	rec := doRequest(t, h, http.MethodGet, "/api/borrow", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
