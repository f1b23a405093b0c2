package service

import (
	"context"

	"google.golang.org/grpc"

	"github.com/najoast/snakepit/protocol"
)

// MatchServer is the server API of the match service.
type MatchServer interface {
	CreateMatch(context.Context, *protocol.CreateMatchRequest) (*protocol.CreateMatchResponse, error)
	JoinMatch(context.Context, *protocol.JoinMatchRequest) (*protocol.JoinMatchResponse, error)
	StartMatch(context.Context, *protocol.StartMatchRequest) (*protocol.StartMatchResponse, error)
	SubmitDirection(context.Context, *protocol.SubmitDirectionRequest) (*protocol.SubmitDirectionResponse, error)
	GetStatus(context.Context, *protocol.GetStatusRequest) (*protocol.GetStatusResponse, error)
	ListMatches(context.Context, *protocol.ListMatchesRequest) (*protocol.ListMatchesResponse, error)
}

// ServiceDesc describes the match service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: protocol.ServiceName,
	HandlerType: (*MatchServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateMatch", Handler: unaryHandler(protocol.MethodCreateMatch, MatchServer.CreateMatch)},
		{MethodName: "JoinMatch", Handler: unaryHandler(protocol.MethodJoinMatch, MatchServer.JoinMatch)},
		{MethodName: "StartMatch", Handler: unaryHandler(protocol.MethodStartMatch, MatchServer.StartMatch)},
		{MethodName: "SubmitDirection", Handler: unaryHandler(protocol.MethodSubmitDirection, MatchServer.SubmitDirection)},
		{MethodName: "GetStatus", Handler: unaryHandler(protocol.MethodGetStatus, MatchServer.GetStatus)},
		{MethodName: "ListMatches", Handler: unaryHandler(protocol.MethodListMatches, MatchServer.ListMatches)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "snakepit/v1/match.proto",
}

// RegisterMatchServer registers srv with s.
func RegisterMatchServer(s grpc.ServiceRegistrar, srv MatchServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unaryHandler decodes the request and dispatches it through the interceptor
// chain, the way generated handlers do.
func unaryHandler[Req, Resp any](method string, call func(MatchServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MatchServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MatchServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
