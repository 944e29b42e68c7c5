package handler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"

	"github.com/rl1809/beer-stock/internal/core/domain"
	"github.com/rl1809/beer-stock/internal/core/service"
	"github.com/rl1809/beer-stock/internal/platform/observability"
)

const transportGRPC = "grpc"

type adjustFunc func(ctx context.Context, id string, delta int) (*domain.Beer, error)

type GRPCHandler struct {
	beerService *service.BeerService
	metrics     *observability.Metrics
	logger      *zap.Logger
}

var _ BeerServiceServer = (*GRPCHandler)(nil)

func NewGRPCHandler(beerService *service.BeerService, metrics *observability.Metrics, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{beerService: beerService, metrics: metrics, logger: logger}
}

func (h *GRPCHandler) Create(ctx context.Context, req *BeerRequest) (*BeerResponse, error) {
	start := time.Now()

	in, err := req.ToInput()
	if err != nil {
		return nil, h.fail("create", start, err)
	}
	beer, err := h.beerService.Create(ctx, in)
	if err != nil {
		return nil, h.fail("create", start, err)
	}
	return h.beer("create", start, beer), nil
}

func (h *GRPCHandler) GetByName(ctx context.Context, req *GetByNameRequest) (*BeerResponse, error) {
	start := time.Now()

	beer, err := h.beerService.GetByName(ctx, req.Name)
	if err != nil {
		return nil, h.fail("get", start, err)
	}
	return h.beer("get", start, beer), nil
}

func (h *GRPCHandler) List(ctx context.Context, _ *ListRequest) (*ListResponse, error) {
	start := time.Now()

	beers, err := h.beerService.List(ctx)
	if err != nil {
		return nil, h.fail("list", start, err)
	}
	h.metrics.Observe(transportGRPC, "list", observability.OutcomeOK, start)
	return &ListResponse{Beers: toBeerResponses(beers)}, nil
}

func (h *GRPCHandler) Delete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	start := time.Now()

	if err := h.beerService.Delete(ctx, req.ID); err != nil {
		return nil, h.fail("delete", start, err)
	}
	h.metrics.Observe(transportGRPC, "delete", observability.OutcomeOK, start)
	return &DeleteResponse{}, nil
}

func (h *GRPCHandler) Replace(ctx context.Context, req *ReplaceRequest) (*BeerResponse, error) {
	start := time.Now()

	in, err := req.Beer.ToInput()
	if err != nil {
		return nil, h.fail("replace", start, err)
	}
	beer, err := h.beerService.Replace(ctx, req.ID, in)
	if err != nil {
		return nil, h.fail("replace", start, err)
	}
	return h.beer("replace", start, beer), nil
}

func (h *GRPCHandler) Increment(ctx context.Context, req *AdjustRequest) (*BeerResponse, error) {
	return h.adjust(ctx, "increment", req, h.beerService.Increment)
}

func (h *GRPCHandler) Decrement(ctx context.Context, req *AdjustRequest) (*BeerResponse, error) {
	return h.adjust(ctx, "decrement", req, h.beerService.Decrement)
}

func (h *GRPCHandler) adjust(ctx context.Context, op string, req *AdjustRequest, apply adjustFunc) (*BeerResponse, error) {
	start := time.Now()

	if err := (QuantityRequest{Quantity: req.Quantity}).Validate(); err != nil {
		return nil, h.fail(op, start, err)
	}
	beer, err := apply(ctx, req.ID, req.Quantity)
	if err != nil {
		return nil, h.fail(op, start, err)
	}
	return h.beer(op, start, beer), nil
}

func (h *GRPCHandler) beer(op string, start time.Time, b *domain.Beer) *BeerResponse {
	h.metrics.Observe(transportGRPC, op, observability.OutcomeOK, start)
	resp := toBeerResponse(*b)
	return &resp
}

func (h *GRPCHandler) fail(op string, start time.Time, err error) error {
	if grpcCode(err) == codes.Internal {
		h.logger.Error("rpc failed", zap.String("operation", op), zap.Error(err))
	}
	h.metrics.Observe(transportGRPC, op, outcome(err), start)
	return toStatus(err)
}

// TraceInterceptor continues traces propagated in incoming gRPC metadata.
func TraceInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			ctx = otel.GetTextMapPropagator().Extract(ctx, metadataCarrier(md))
		}
		return handler(ctx, req)
	}
}

type metadataCarrier metadata.MD

var _ propagation.TextMapCarrier = metadataCarrier(nil)

func (c metadataCarrier) Get(key string) string {
	if v := metadata.MD(c).Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c metadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

func (c metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
