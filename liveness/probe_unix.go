//go:build unix

package liveness

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Probe sends the null signal to pid.
func (OSProbe) Probe(pid int) (State, error) {
	if pid <= 0 {
		return Gone, nil
	}

	err := unix.Kill(pid, 0)

	switch {
	case err == nil:
		return Alive, nil
	case errors.Is(err, unix.ESRCH):
		return Gone, nil
	case errors.Is(err, unix.EPERM):
		return Denied, nil
	default:
		return Alive, err
	}
}
