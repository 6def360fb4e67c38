package sharedstate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/jobpack/internal/x/grpcx"
	"github.com/dogmatiq/jobpack/registry"
	"github.com/dogmatiq/jobpack/workflow"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DefaultListenAddress is the default address the service listens on. The port
// is chosen by the operating system.
const DefaultListenAddress = "127.0.0.1:0"

// Server hosts the shared state service for the lifetime of one allocation.
//
// The server only depends on the values of its fields, never on the
// configuration of the process that hosts it.
type Server struct {
	// OpenStore opens the workflow store shared by all workers. It is called
	// once by Start().
	OpenStore func(ctx context.Context) (workflow.Store, error)

	// NewRegistry creates the registry of claimed work-items. If it is nil,
	// registry.NewLocal() is used.
	NewRegistry func() registry.Table

	// ListenAddress is the address to listen on. If it is empty
	// DefaultListenAddress is used.
	ListenAddress string

	// Secret is the shared secret clients must present. If it is empty a random
	// secret is generated.
	Secret string

	// Options is a set of additional gRPC server options.
	Options []grpc.ServerOption

	// Logger is the target for log messages produced by the server.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	m        sync.Mutex
	started  bool
	stopped  bool
	store    workflow.Store
	registry registry.Table
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
}

// Start opens the workflow store, binds the listener and begins serving
// requests in the background.
//
// It returns the endpoint that clients use to connect, including the port
// that was actually bound.
func (s *Server) Start(ctx context.Context) (Endpoint, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if s.started {
		return Endpoint{}, errors.New("shared state service has already been started")
	}
	s.started = true

	if s.OpenStore == nil {
		return Endpoint{}, errors.New("shared state service has no workflow store")
	}

	secret := s.Secret
	if secret == "" {
		secret = uuid.NewString()
	}

	addr := s.ListenAddress
	if addr == "" {
		addr = DefaultListenAddress
	}

	store, err := s.OpenStore(ctx)
	if err != nil {
		return Endpoint{}, fmt.Errorf("unable to open the workflow store: %w", err)
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return Endpoint{}, multierr.Append(
			fmt.Errorf("unable to start the shared state listener: %w", err),
			store.Close(),
		)
	}

	reg := registry.Table(registry.NewLocal())
	if s.NewRegistry != nil {
		reg = s.NewRegistry()
	}

	s.store = store
	s.registry = reg

	gs := grpc.NewServer(
		append(grpcx.RequireSecret(secret), s.Options...)...,
	)
	register(gs, &server{
		store:    store,
		registry: reg,
		logger:   s.Logger,
	})

	serveCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	ep := Endpoint{
		Address: lis.Addr().String(),
		Secret:  secret,
	}

	logging.Log(s.Logger, "shared state service listening on %s", ep.Address)

	go func() {
		defer close(s.done)
		s.err = grpcx.Serve(serveCtx, lis, gs)
	}()

	return ep, nil
}

// Shutdown stops the service immediately and closes the workflow store.
//
// Requests that are in progress are abandoned. It is safe to call Shutdown()
// more than once, or on a server that failed to start.
func (s *Server) Shutdown() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.stopped || s.cancel == nil {
		s.stopped = true
		return nil
	}
	s.stopped = true

	s.cancel()
	<-s.done

	err := multierr.Append(s.err, s.store.Close())

	logging.Log(s.Logger, "shared state service stopped")

	return err
}

// server implements the gRPC services on top of the shared objects.
type server struct {
	store    workflow.Store
	registry registry.Table
	logger   logging.Logger
}

func (s *server) open(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

func (s *server) nextWorkItem(
	ctx context.Context,
	req *structpb.Struct,
) (*structpb.Struct, error) {
	q := workflow.Query(req.AsMap())

	for {
		it, ok, err := s.store.NextWorkItem(ctx, q)
		if err != nil {
			return nil, storeError(err)
		}

		res, err := marshalWorkItem(it, ok)
		if err == nil {
			return res, nil
		}

		// The work-item has been claimed but can never be sent to a worker.
		// It is completed as failed so that it is not claimed again.
		logging.Log(s.logger, "%s", err)

		if err := s.store.CompleteWorkItem(
			ctx,
			it.ID,
			workflow.Result{Error: err.Error()},
		); err != nil {
			return nil, storeError(err)
		}
	}
}

func (s *server) pingWorkItem(
	ctx context.Context,
	req *wrapperspb.StringValue,
) (*emptypb.Empty, error) {
	id := workflow.WorkItemID(req.GetValue())

	if err := s.store.PingWorkItem(ctx, id); err != nil {
		return nil, storeError(err)
	}

	return &emptypb.Empty{}, nil
}

func (s *server) completeWorkItem(
	ctx context.Context,
	req *structpb.Struct,
) (*emptypb.Empty, error) {
	id, res := unmarshalResult(req)

	if err := s.store.CompleteWorkItem(ctx, id, res); err != nil {
		return nil, storeError(err)
	}

	return &emptypb.Empty{}, nil
}

func (s *server) set(
	ctx context.Context,
	req *structpb.Struct,
) (*emptypb.Empty, error) {
	e, err := unmarshalEntry(req)
	if err != nil {
		return nil, grpcx.Errorf(codes.InvalidArgument, "%s", err)
	}

	if err := s.registry.Set(ctx, e.PID, e.WorkItemID); err != nil {
		return nil, err
	}

	return &emptypb.Empty{}, nil
}

func (s *server) snapshot(
	ctx context.Context,
	_ *emptypb.Empty,
) (*structpb.ListValue, error) {
	entries, err := s.registry.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return marshalEntries(entries), nil
}

// storeError maps an error from the workflow store to a gRPC status error.
func storeError(err error) error {
	var unknown workflow.UnknownWorkItemError

	switch {
	case errors.As(err, &unknown):
		return grpcx.Errorf(codes.NotFound, "%s", err)
	case errors.Is(err, workflow.ErrUnavailable):
		return grpcx.Errorf(codes.Unavailable, "%s", err)
	default:
		return err
	}
}
