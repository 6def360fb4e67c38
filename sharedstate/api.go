package sharedstate

import (
	"context"

	"github.com/dogmatiq/jobpack/internal/x/grpcx"
	"google.golang.org/grpc"
)

const (
	sessionService  = "jobpack.sharedstate.v1.Session"
	storeService    = "jobpack.sharedstate.v1.Store"
	registryService = "jobpack.sharedstate.v1.Registry"

	openMethod             = "/" + sessionService + "/Open"
	nextWorkItemMethod     = "/" + storeService + "/NextWorkItem"
	pingWorkItemMethod     = "/" + storeService + "/PingWorkItem"
	completeWorkItemMethod = "/" + storeService + "/CompleteWorkItem"
	setMethod              = "/" + registryService + "/Set"
	snapshotMethod         = "/" + registryService + "/Snapshot"
)

// register adds the shared state services to s.
func register(s *grpc.Server, svr *server) {
	s.RegisterService(
		&grpc.ServiceDesc{
			ServiceName: sessionService,
			HandlerType: (*interface{})(nil),
			Methods: []grpc.MethodDesc{
				unary(sessionService, "Open", (*server).open),
			},
		},
		svr,
	)

	s.RegisterService(
		&grpc.ServiceDesc{
			ServiceName: storeService,
			HandlerType: (*interface{})(nil),
			Methods: []grpc.MethodDesc{
				unary(storeService, "NextWorkItem", (*server).nextWorkItem),
				unary(storeService, "PingWorkItem", (*server).pingWorkItem),
				unary(storeService, "CompleteWorkItem", (*server).completeWorkItem),
			},
		},
		svr,
	)

	s.RegisterService(
		&grpc.ServiceDesc{
			ServiceName: registryService,
			HandlerType: (*interface{})(nil),
			Methods: []grpc.MethodDesc{
				unary(registryService, "Set", (*server).set),
				unary(registryService, "Snapshot", (*server).snapshot),
			},
		},
		svr,
	)
}

// unary returns the descriptor of a unary method implemented by fn.
func unary[Req, Res any](
	service, method string,
	fn func(*server, context.Context, *Req) (*Res, error),
) grpc.MethodDesc {
	info := &grpc.UnaryServerInfo{
		FullMethod: "/" + service + "/" + method,
	}

	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(
			srv interface{},
			ctx context.Context,
			dec func(interface{}) error,
			interceptor grpc.UnaryServerInterceptor,
		) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			call := func(ctx context.Context, req interface{}) (interface{}, error) {
				out, err := fn(srv.(*server), ctx, req.(*Req))
				if err != nil {
					return nil, grpcx.FromError(err)
				}
				return out, nil
			}

			if interceptor == nil {
				return call(ctx, in)
			}

			i := *info
			i.Server = srv

			return interceptor(ctx, in, &i, call)
		},
	}
}
