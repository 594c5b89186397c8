package handler

import (
	"errors"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/rl1809/lending-ledger/internal/core/domain"
	"github.com/rl1809/lending-ledger/internal/core/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type HTTPHandler struct {
	ledgerService *service.LedgerService
}

type BorrowHTTPRequest struct {
	RequestID  string      `json:"request_id"`
	Borrower   string      `json:"borrower"`
	BookID     int64       `json:"book_id"`
	BorrowDate domain.Date `json:"borrow_date"`
	DueDate    domain.Date `json:"due_date"`
	Today      domain.Date `json:"today"`
}

type ErrorHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type RecordHTTPResponse struct {
	domain.LedgerEntry
	Overdue bool `json:"overdue"`
}

type RecordsHTTPResponse struct {
	Records []RecordHTTPResponse `json:"records"`
	Total   int                  `json:"total"`
}

type AvailabilityHTTPResponse struct {
	BookID   int64 `json:"book_id"`
	Quantity int   `json:"quantity"`
}

func NewHTTPHandler(ledgerService *service.LedgerService) *HTTPHandler {
	return &HTTPHandler{ledgerService: ledgerService}
}

// Routes registers every endpoint on a fresh mux.
func (h *HTTPHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/books", h.ListBooks)
	mux.HandleFunc("GET /api/books/{id}/availability", h.BookAvailability)
	mux.HandleFunc("POST /api/borrow", h.Borrow)
	mux.HandleFunc("GET /api/records", h.Records)
	mux.HandleFunc("DELETE /api/records/{id}", h.ReturnBook)
	return mux
}

func (h *HTTPHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	record, err := h.ledgerService.Borrow(r.Context(), service.BorrowRequest{
		RequestID:  req.RequestID,
		Borrower:   req.Borrower,
		BookID:     req.BookID,
		BorrowDate: req.BorrowDate,
		DueDate:    req.DueDate,
		Today:      req.Today,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

func (h *HTTPHandler) ReturnBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.ledgerService.ReturnBook(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Records(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledgerService.Query(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := RecordsHTTPResponse{
		Records: make([]RecordHTTPResponse, 0, len(result.Entries)),
		Total:   result.Total,
	}
	for _, entry := range result.Entries {
		resp.Records = append(resp.Records, RecordHTTPResponse{LedgerEntry: entry, Overdue: entry.Overdue()})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.ledgerService.ListAvailableBooks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, books)
}

func (h *HTTPHandler) BookAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	quantity, err := h.ledgerService.BookAvailability(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityHTTPResponse{BookID: id, Quantity: quantity})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{
			Success: false,
			Message: "invalid id",
		})
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrDuplicateRequest):
		status, message = http.StatusConflict, "duplicate request"
	case errors.Is(err, domain.ErrOutOfStock):
		status, message = http.StatusGone, err.Error()
	}

	writeJSON(w, status, ErrorHTTPResponse{
		Success: false,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
