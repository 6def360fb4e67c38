package sharedstate

import (
	"fmt"
	"net"
	"strconv"
)

// Endpoint identifies a running shared state service.
type Endpoint struct {
	// Address is the host:port the service is listening on.
	Address string

	// Secret is the shared secret that must accompany every request.
	Secret string
}

// Port returns the TCP port of the endpoint.
func (e Endpoint) Port() (int, error) {
	_, p, err := net.SplitHostPort(e.Address)
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(p)
}

// String returns the address of the endpoint. The secret is never included.
func (e Endpoint) String() string {
	return e.Address
}

// ConnectionError is returned when a session with the shared state service
// can not be established, either because the endpoint is unreachable or the
// secret was rejected.
type ConnectionError struct {
	Address string
	Cause   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf(
		"unable to connect to the shared state service at %s: %s",
		e.Address,
		e.Cause,
	)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}
