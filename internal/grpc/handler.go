package grpc

import (
	"context"
	"errors"
	"time"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/fjod/go_cart/checkout-flow/internal/checkout"
	"github.com/fjod/go_cart/checkout-flow/internal/lock"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "checkout.v1.CheckoutService"

type PlaceOrderRequest struct {
	CartID        string `json:"cart_id"`
	CustomerID    string `json:"customer_id"`
	Authenticated bool   `json:"authenticated"`
}

type PlaceOrderResponse struct {
	Result   string `json:"result"`
	Redirect string `json:"redirect,omitempty"`
	OrderID  string `json:"order_id,omitempty"`
}

type GetCartRequest struct {
	CartID     string `json:"cart_id"`
	CustomerID string `json:"customer_id"`
}

type GetCartResponse struct {
	Cart *d.Cart `json:"cart"`
}

type Machine interface {
	Load(ctx context.Context, h checkout.Handle) (*d.Cart, error)
	PlaceOrder(ctx context.Context, h checkout.Handle, authenticated bool) (d.Result, error)
}

// CheckoutServer is the server API of checkout.v1.CheckoutService.
type CheckoutServer interface {
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error)
	GetCart(ctx context.Context, req *GetCartRequest) (*GetCartResponse, error)
}

type CheckoutServiceServer struct {
	machine Machine
}

func NewCheckoutServiceServer(machine Machine) *CheckoutServiceServer {
	return &CheckoutServiceServer{machine: machine}
}

func (h *CheckoutServiceServer) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	if req.CartID == "" {
		return nil, status.Error(codes.InvalidArgument, "cart_id is required")
	}

	res, err := h.machine.PlaceOrder(ctx, checkout.Handle{CartID: req.CartID, CustomerID: req.CustomerID}, req.Authenticated)
	if err != nil {
		return nil, toStatus(err)
	}
	if res.Kind == d.ResultRequiresAuth {
		return nil, status.Error(codes.Unauthenticated, "authentication required to place an order")
	}
	return &PlaceOrderResponse{
		Result:   res.String(),
		Redirect: res.Redirect,
		OrderID:  res.OrderID,
	}, nil
}

func (h *CheckoutServiceServer) GetCart(ctx context.Context, req *GetCartRequest) (*GetCartResponse, error) {
	if req.CartID == "" {
		return nil, status.Error(codes.InvalidArgument, "cart_id is required")
	}

	cart, err := h.machine.Load(ctx, checkout.Handle{CartID: req.CartID, CustomerID: req.CustomerID})
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetCartResponse{Cart: cart}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, checkout.ErrMissingCartID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, lock.ErrLockNotAcquired):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, d.ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Errorf(codes.Internal, "checkout failed: %v", err)
	}
}

func placeOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PlaceOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CheckoutServer).PlaceOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/PlaceOrder"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CheckoutServer).PlaceOrder(ctx, req.(*PlaceOrderRequest))
	})
}

func getCartHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetCartRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CheckoutServer).GetCart(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetCart"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CheckoutServer).GetCart(ctx, req.(*GetCartRequest))
	})
}

// ServiceDesc describes checkout.v1.CheckoutService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CheckoutServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: placeOrderHandler},
		{MethodName: "GetCart", Handler: getCartHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "checkout/v1/checkout.proto",
}

// NewServer builds a grpc.Server serving srv with tracing and request logs.
func NewServer(srv CheckoutServer, log *zap.Logger) *grpc.Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(loggingInterceptor(log)),
	)
	s.RegisterService(&ServiceDesc, srv)
	return s
}

func loggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)))
		return resp, err
	}
}

// Client calls checkout.v1.CheckoutService over conn.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	out := new(PlaceOrderResponse)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/PlaceOrder", req, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCart(ctx context.Context, req *GetCartRequest) (*GetCartResponse, error) {
	out := new(GetCartResponse)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/GetCart", req, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}
