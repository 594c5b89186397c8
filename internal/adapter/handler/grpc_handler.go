package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/lending-ledger/internal/core/domain"
	"github.com/rl1809/lending-ledger/internal/core/service"
)

type GRPCHandler struct {
	ledgerService *service.LedgerService
}

var _ LedgerServiceServer = (*GRPCHandler)(nil)

func NewGRPCHandler(ledgerService *service.LedgerService) *GRPCHandler {
	return &GRPCHandler{ledgerService: ledgerService}
}

func (h *GRPCHandler) Borrow(ctx context.Context, req *BorrowRequest) (*BorrowResponse, error) {
	borrowDate, err := domain.ParseDate(req.BorrowDate)
	if err != nil {
		return nil, grpcError(err)
	}
	dueDate, err := domain.ParseDate(req.DueDate)
	if err != nil {
		return nil, grpcError(err)
	}

	var today domain.Date
	if req.Today != "" {
		if today, err = domain.ParseDate(req.Today); err != nil {
			return nil, grpcError(err)
		}
	}

	record, err := h.ledgerService.Borrow(ctx, service.BorrowRequest{
		RequestID:  req.RequestId,
		Borrower:   req.Borrower,
		BookID:     req.BookId,
		BorrowDate: borrowDate,
		DueDate:    dueDate,
		Today:      today,
	})
	if err != nil {
		return nil, grpcError(err)
	}

	return &BorrowResponse{Record: toRecord(domain.LedgerEntry{BorrowRecord: record})}, nil
}

func (h *GRPCHandler) ReturnBook(ctx context.Context, req *ReturnBookRequest) (*ReturnBookResponse, error) {
	if err := h.ledgerService.ReturnBook(ctx, req.RecordId); err != nil {
		return nil, grpcError(err)
	}
	return &ReturnBookResponse{}, nil
}

func (h *GRPCHandler) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	result, err := h.ledgerService.Query(ctx, req.SearchText)
	if err != nil {
		return nil, grpcError(err)
	}

	resp := &QueryResponse{
		Records: make([]*Record, 0, len(result.Entries)),
		Total:   int32(result.Total),
	}
	for _, entry := range result.Entries {
		resp.Records = append(resp.Records, toRecord(entry))
	}
	return resp, nil
}

func (h *GRPCHandler) ListAvailableBooks(ctx context.Context, _ *ListAvailableBooksRequest) (*ListAvailableBooksResponse, error) {
	books, err := h.ledgerService.ListAvailableBooks(ctx)
	if err != nil {
		return nil, grpcError(err)
	}

	resp := &ListAvailableBooksResponse{Books: make([]*Book, 0, len(books))}
	for _, b := range books {
		resp.Books = append(resp.Books, &Book{Id: b.ID, Title: b.Title, Quantity: int32(b.Quantity)})
	}
	return resp, nil
}

func toRecord(entry domain.LedgerEntry) *Record {
	return &Record{
		Id:         entry.ID,
		Borrower:   entry.Borrower,
		BookId:     entry.BookID,
		BookTitle:  entry.BookTitle,
		BorrowDate: entry.BorrowDate.String(),
		DueDate:    entry.DueDate.String(),
		Fine:       entry.Fine.StringFixed(2),
		Overdue:    entry.Overdue(),
	}
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, "duplicate request")
	case errors.Is(err, domain.ErrOutOfStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
