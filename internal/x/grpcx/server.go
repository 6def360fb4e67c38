package grpcx

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc"
)

// Serve runs s on lis until ctx is canceled or an error occurs.
//
// Cancelling ctx stops s immediately. In-flight RPCs are abandoned and Serve()
// returns nil. The caller must never call s.Stop() or s.GracefulStop().
func Serve(
	ctx context.Context,
	lis net.Listener,
	s *grpc.Server,
) error {
	// Create a context that is guaranteed to be cancelled when this function
	// exits. This prevents a leak in the goroutine below when the server exits
	// prematurely.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	err := s.Serve(lis)

	if ctx.Err() != nil {
		return nil
	}

	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return errors.New("gRPC server stopped unexpectedly")
	}

	return err
}
