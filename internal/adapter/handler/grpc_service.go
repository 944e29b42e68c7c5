package handler

import (
	"context"

	"google.golang.org/grpc"
)

const beerServiceName = "beerstock.v1.BeerService"

type GetByNameRequest struct {
	Name string `json:"name"`
}

type ListRequest struct{}

type ListResponse struct {
	Beers []BeerResponse `json:"beers"`
}

type DeleteRequest struct {
	ID string `json:"id"`
}

type DeleteResponse struct{}

type ReplaceRequest struct {
	ID   string      `json:"id"`
	Beer BeerRequest `json:"beer"`
}

type AdjustRequest struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type BeerServiceServer interface {
	Create(context.Context, *BeerRequest) (*BeerResponse, error)
	GetByName(context.Context, *GetByNameRequest) (*BeerResponse, error)
	List(context.Context, *ListRequest) (*ListResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
	Replace(context.Context, *ReplaceRequest) (*BeerResponse, error)
	Increment(context.Context, *AdjustRequest) (*BeerResponse, error)
	Decrement(context.Context, *AdjustRequest) (*BeerResponse, error)
}

var BeerServiceDesc = grpc.ServiceDesc{
	ServiceName: beerServiceName,
	HandlerType: (*BeerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Create", BeerServiceServer.Create),
		unary("GetByName", BeerServiceServer.GetByName),
		unary("List", BeerServiceServer.List),
		unary("Delete", BeerServiceServer.Delete),
		unary("Replace", BeerServiceServer.Replace),
		unary("Increment", BeerServiceServer.Increment),
		unary("Decrement", BeerServiceServer.Decrement),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "beerstock/v1/beer_service",
}

func RegisterBeerServiceServer(s grpc.ServiceRegistrar, srv BeerServiceServer) {
	s.RegisterService(&BeerServiceDesc, srv)
}

func unary[Req, Resp any](method string, call func(BeerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BeerServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + beerServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BeerServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// BeerServiceClient calls BeerService with the JSON codec.
type BeerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBeerServiceClient(cc grpc.ClientConnInterface) *BeerServiceClient {
	return &BeerServiceClient{cc: cc}
}

func (c *BeerServiceClient) Create(ctx context.Context, in *BeerRequest, opts ...grpc.CallOption) (*BeerResponse, error) {
	return invoke[BeerResponse](ctx, c.cc, "Create", in, opts)
}

func (c *BeerServiceClient) GetByName(ctx context.Context, in *GetByNameRequest, opts ...grpc.CallOption) (*BeerResponse, error) {
	return invoke[BeerResponse](ctx, c.cc, "GetByName", in, opts)
}

func (c *BeerServiceClient) List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	return invoke[ListResponse](ctx, c.cc, "List", in, opts)
}

func (c *BeerServiceClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	return invoke[DeleteResponse](ctx, c.cc, "Delete", in, opts)
}

func (c *BeerServiceClient) Replace(ctx context.Context, in *ReplaceRequest, opts ...grpc.CallOption) (*BeerResponse, error) {
	return invoke[BeerResponse](ctx, c.cc, "Replace", in, opts)
}

func (c *BeerServiceClient) Increment(ctx context.Context, in *AdjustRequest, opts ...grpc.CallOption) (*BeerResponse, error) {
	return invoke[BeerResponse](ctx, c.cc, "Increment", in, opts)
}

func (c *BeerServiceClient) Decrement(ctx context.Context, in *AdjustRequest, opts ...grpc.CallOption) (*BeerResponse, error) {
	return invoke[BeerResponse](ctx, c.cc, "Decrement", in, opts)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+beerServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
