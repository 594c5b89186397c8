package handler

import (
	"context"

	"google.golang.org/grpc"
)

const ledgerServiceName = "lending.v1.LedgerService"

type BorrowRequest struct {
	RequestId  string `json:"request_id"`
	Borrower   string `json:"borrower"`
	BookId     int64  `json:"book_id"`
	BorrowDate string `json:"borrow_date"`
	DueDate    string `json:"due_date"`
	Today      string `json:"today,omitempty"`
}

type BorrowResponse struct {
	Record *Record `json:"record"`
}

type ReturnBookRequest struct {
	RecordId int64 `json:"record_id"`
}

type ReturnBookResponse struct{}

type QueryRequest struct {
	SearchText string `json:"search_text"`
}

type QueryResponse struct {
	Records []*Record `json:"records"`
	Total   int32     `json:"total"`
}

type ListAvailableBooksRequest struct{}

type ListAvailableBooksResponse struct {
	Books []*Book `json:"books"`
}

type Record struct {
	Id         int64  `json:"id"`
	Borrower   string `json:"borrower"`
	BookId     int64  `json:"book_id"`
	BookTitle  string `json:"book_title,omitempty"`
	BorrowDate string `json:"borrow_date"`
	DueDate    string `json:"due_date"`
	Fine       string `json:"fine"`
	Overdue    bool   `json:"overdue"`
}

type Book struct {
	Id       int64  `json:"id"`
	Title    string `json:"title"`
	Quantity int32  `json:"quantity"`
}

type LedgerServiceServer interface {
	Borrow(context.Context, *BorrowRequest) (*BorrowResponse, error)
	ReturnBook(context.Context, *ReturnBookRequest) (*ReturnBookResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	ListAvailableBooks(context.Context, *ListAvailableBooksRequest) (*ListAvailableBooksResponse, error)
}

// LedgerServiceDesc is registered with grpc.Server.RegisterService. Messages travel as JSON.
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ledgerServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Borrow", LedgerServiceServer.Borrow),
		unaryMethod("ReturnBook", LedgerServiceServer.ReturnBook),
		unaryMethod("Query", LedgerServiceServer.Query),
		unaryMethod("ListAvailableBooks", LedgerServiceServer.ListAvailableBooks),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lending/v1/ledger.proto",
}

func unaryMethod[Req, Resp any](
	name string,
	call func(LedgerServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	fullMethod := "/" + ledgerServiceName + "/" + name

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServiceServer), ctx, in)
			}

			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LedgerServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// LedgerClient calls LedgerServiceDesc methods with the JSON codec.
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

func (c *LedgerClient) Borrow(ctx context.Context, in *BorrowRequest, opts ...grpc.CallOption) (*BorrowResponse, error) {
	out := new(BorrowResponse)
	if err := c.invoke(ctx, "Borrow", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) ReturnBook(ctx context.Context, in *ReturnBookRequest, opts ...grpc.CallOption) (*ReturnBookResponse, error) {
	out := new(ReturnBookResponse)
	if err := c.invoke(ctx, "ReturnBook", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error) {
	out := new(QueryResponse)
	if err := c.invoke(ctx, "Query", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) ListAvailableBooks(ctx context.Context, in *ListAvailableBooksRequest, opts ...grpc.CallOption) (*ListAvailableBooksResponse, error) {
	out := new(ListAvailableBooksResponse)
	if err := c.invoke(ctx, "ListAvailableBooks", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ledgerServiceName+"/"+method, in, out, opts...)
}
