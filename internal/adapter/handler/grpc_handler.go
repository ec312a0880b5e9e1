package handler

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/book-reservation/internal/core/domain"
	"github.com/rl1809/book-reservation/internal/core/service"
)

const reservationServiceName = "bookreservation.v1.ReservationService"

type CreateReservationRequest struct {
	RequestID  string `json:"request_id"`
	UserID     int64  `json:"user_id"`
	BookID     int64  `json:"book_id"`
	RentalDays int    `json:"rental_days"`
	StartDate  string `json:"start_date,omitempty"`
}

type ReturnBookRequest struct {
	ReservationID int64  `json:"reservation_id"`
	ReturnDate    string `json:"return_date,omitempty"`
}

type GetReservationRequest struct {
	ReservationID int64 `json:"reservation_id"`
}

// ListReservationsRequest selects one query: overdue, by user, by status, or all.
type ListReservationsRequest struct {
	UserID  int64  `json:"user_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Overdue bool   `json:"overdue,omitempty"`
}

type ReservationReply struct {
	Reservation *ReservationResponse `json:"reservation"`
}

type ListReservationsReply struct {
	Reservations []*ReservationResponse `json:"reservations"`
}

type ReservationServiceServer interface {
	CreateReservation(context.Context, *CreateReservationRequest) (*ReservationReply, error)
	ReturnBook(context.Context, *ReturnBookRequest) (*ReservationReply, error)
	GetReservation(context.Context, *GetReservationRequest) (*ReservationReply, error)
	ListReservations(context.Context, *ListReservationsRequest) (*ListReservationsReply, error)
}

func RegisterReservationServiceServer(s grpc.ServiceRegistrar, srv ReservationServiceServer) {
	s.RegisterService(&reservationServiceDesc, srv)
}

var reservationServiceDesc = grpc.ServiceDesc{
	ServiceName: reservationServiceName,
	HandlerType: (*ReservationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateReservation", Handler: unaryHandler("CreateReservation", ReservationServiceServer.CreateReservation)},
		{MethodName: "ReturnBook", Handler: unaryHandler("ReturnBook", ReservationServiceServer.ReturnBook)},
		{MethodName: "GetReservation", Handler: unaryHandler("GetReservation", ReservationServiceServer.GetReservation)},
		{MethodName: "ListReservations", Handler: unaryHandler("ListReservations", ReservationServiceServer.ListReservations)},
	},
	Streams: []grpc.StreamDesc{},
}

func unaryHandler[Req, Resp any](method string, call func(ReservationServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReservationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + reservationServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReservationServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ReservationServiceClient calls the service over a connection using the JSON codec.
type ReservationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewReservationServiceClient(cc grpc.ClientConnInterface) *ReservationServiceClient {
	return &ReservationServiceClient{cc: cc}
}

func (c *ReservationServiceClient) CreateReservation(ctx context.Context, in *CreateReservationRequest, opts ...grpc.CallOption) (*ReservationReply, error) {
	out := new(ReservationReply)
	return out, c.invoke(ctx, "CreateReservation", in, out, opts)
}

func (c *ReservationServiceClient) ReturnBook(ctx context.Context, in *ReturnBookRequest, opts ...grpc.CallOption) (*ReservationReply, error) {
	out := new(ReservationReply)
	return out, c.invoke(ctx, "ReturnBook", in, out, opts)
}

func (c *ReservationServiceClient) GetReservation(ctx context.Context, in *GetReservationRequest, opts ...grpc.CallOption) (*ReservationReply, error) {
	out := new(ReservationReply)
	return out, c.invoke(ctx, "GetReservation", in, out, opts)
}

func (c *ReservationServiceClient) ListReservations(ctx context.Context, in *ListReservationsRequest, opts ...grpc.CallOption) (*ListReservationsReply, error) {
	out := new(ListReservationsReply)
	return out, c.invoke(ctx, "ListReservations", in, out, opts)
}

func (c *ReservationServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+reservationServiceName+"/"+method, in, out, opts...)
}

type GRPCHandler struct {
	reservationService *service.ReservationService
	logger             *slog.Logger
}

func NewGRPCHandler(reservationService *service.ReservationService, logger *slog.Logger) *GRPCHandler {
	return &GRPCHandler{reservationService: reservationService, logger: logger}
}

func (h *GRPCHandler) CreateReservation(ctx context.Context, req *CreateReservationRequest) (*ReservationReply, error) {
	startDate, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, h.toStatus(ctx, "CreateReservation", err)
	}

	view, err := h.reservationService.CreateReservation(ctx, service.CreateReservationRequest{
		RequestID:  req.RequestID,
		UserID:     req.UserID,
		BookID:     req.BookID,
		RentalDays: req.RentalDays,
		StartDate:  startDate,
	})
	if err != nil {
		return nil, h.toStatus(ctx, "CreateReservation", err)
	}

	return &ReservationReply{Reservation: newReservationResponse(view)}, nil
}

func (h *GRPCHandler) ReturnBook(ctx context.Context, req *ReturnBookRequest) (*ReservationReply, error) {
	returnDate, err := parseDate("return_date", req.ReturnDate)
	if err != nil {
		return nil, h.toStatus(ctx, "ReturnBook", err)
	}

	view, err := h.reservationService.ReturnBook(ctx, req.ReservationID, service.ReturnBookRequest{ReturnDate: returnDate})
	if err != nil {
		return nil, h.toStatus(ctx, "ReturnBook", err)
	}

	return &ReservationReply{Reservation: newReservationResponse(view)}, nil
}

func (h *GRPCHandler) GetReservation(ctx context.Context, req *GetReservationRequest) (*ReservationReply, error) {
	view, err := h.reservationService.GetReservation(ctx, req.ReservationID)
	if err != nil {
		return nil, h.toStatus(ctx, "GetReservation", err)
	}

	return &ReservationReply{Reservation: newReservationResponse(view)}, nil
}

func (h *GRPCHandler) ListReservations(ctx context.Context, req *ListReservationsRequest) (*ListReservationsReply, error) {
	var (
		views []service.ReservationView
		err   error
	)

	switch {
	case req.Overdue:
		views, err = h.reservationService.ListOverdueReservations(ctx)
	case req.UserID != 0:
		views, err = h.reservationService.ListReservationsByUser(ctx, req.UserID)
	case req.Status != "":
		views, err = h.reservationService.ListReservationsByStatus(ctx, domain.ReservationStatus(req.Status))
	default:
		views, err = h.reservationService.ListReservations(ctx)
	}
	if err != nil {
		return nil, h.toStatus(ctx, "ListReservations", err)
	}

	return &ListReservationsReply{Reservations: newReservationResponses(views)}, nil
}

func (h *GRPCHandler) toStatus(ctx context.Context, method string, err error) error {
	code := grpcCode(err)
	if code == codes.Internal {
		h.logger.ErrorContext(ctx, "rpc failed", "method", method, "error", err)
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
