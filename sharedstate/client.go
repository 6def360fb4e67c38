package sharedstate

import (
	"context"
	"fmt"

	"github.com/dogmatiq/jobpack/internal/x/grpcx"
	"github.com/dogmatiq/jobpack/registry"
	"github.com/dogmatiq/jobpack/workflow"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Session is a client's connection to the shared state service.
type Session struct {
	conn     *grpc.ClientConn
	store    *storeProxy
	registry *registryProxy
}

// Connect establishes a session with the service at ep.
//
// It returns a *ConnectionError if the service can not be reached or rejects
// the secret.
func Connect(
	ctx context.Context,
	ep Endpoint,
	options ...grpc.DialOption,
) (*Session, error) {
	options = append(
		[]grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithPerRPCCredentials(grpcx.SecretCredentials(ep.Secret)),
		},
		options...,
	)

	conn, err := grpc.DialContext(ctx, ep.Address, options...)
	if err != nil {
		return nil, &ConnectionError{ep.Address, err}
	}

	if err := conn.Invoke(
		ctx,
		openMethod,
		&emptypb.Empty{},
		&emptypb.Empty{},
	); err != nil {
		conn.Close()
		return nil, &ConnectionError{ep.Address, err}
	}

	return &Session{
		conn:     conn,
		store:    &storeProxy{conn},
		registry: &registryProxy{conn},
	}, nil
}

// Store returns the proxy for the shared workflow store handle.
//
// Closing the proxy does not close the shared store.
func (s *Session) Store() workflow.Store {
	return s.store
}

// Registry returns the proxy for the shared registry of claimed work-items.
func (s *Session) Registry() registry.Table {
	return s.registry
}

// Close closes the session.
func (s *Session) Close() error {
	return s.conn.Close()
}

// storeProxy is a workflow.Store that forwards each call to the service.
type storeProxy struct {
	conn *grpc.ClientConn
}

func (p *storeProxy) NextWorkItem(
	ctx context.Context,
	q workflow.Query,
) (workflow.WorkItem, bool, error) {
	req, err := structpb.NewStruct(q)
	if err != nil {
		return workflow.WorkItem{}, false, fmt.Errorf("unable to marshal query: %w", err)
	}

	res := &structpb.Struct{}
	if err := p.conn.Invoke(ctx, nextWorkItemMethod, req, res); err != nil {
		return workflow.WorkItem{}, false, clientError(err, "")
	}

	it, ok := unmarshalWorkItem(res)
	return it, ok, nil
}

func (p *storeProxy) PingWorkItem(ctx context.Context, id workflow.WorkItemID) error {
	err := p.conn.Invoke(
		ctx,
		pingWorkItemMethod,
		wrapperspb.String(string(id)),
		&emptypb.Empty{},
	)

	return clientError(err, id)
}

func (p *storeProxy) CompleteWorkItem(
	ctx context.Context,
	id workflow.WorkItemID,
	r workflow.Result,
) error {
	req, err := marshalResult(id, r)
	if err != nil {
		return err
	}

	err = p.conn.Invoke(ctx, completeWorkItemMethod, req, &emptypb.Empty{})
	return clientError(err, id)
}

func (p *storeProxy) Close() error {
	return nil
}

// registryProxy is a registry.Table that forwards each call to the service.
type registryProxy struct {
	conn *grpc.ClientConn
}

func (p *registryProxy) Set(ctx context.Context, pid int, id workflow.WorkItemID) error {
	req := marshalEntry(registry.Entry{PID: pid, WorkItemID: id})
	err := p.conn.Invoke(ctx, setMethod, req, &emptypb.Empty{})
	return clientError(err, "")
}

func (p *registryProxy) Snapshot(ctx context.Context) ([]registry.Entry, error) {
	res := &structpb.ListValue{}
	if err := p.conn.Invoke(ctx, snapshotMethod, &emptypb.Empty{}, res); err != nil {
		return nil, clientError(err, "")
	}

	return unmarshalEntries(res)
}

// clientError maps a gRPC status error returned by the service to the errors
// defined by the workflow package.
func clientError(err error, id workflow.WorkItemID) error {
	if err == nil {
		return nil
	}

	switch status.Code(err) {
	case codes.NotFound:
		if id != "" {
			return workflow.UnknownWorkItemError{ID: id}
		}
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", workflow.ErrUnavailable, status.Convert(err).Message())
	}

	return err
}
