//go:build !unix

package liveness

// Probe reports every positive pid as alive.
//
// There is no portable null signal outside of unix, so work-items are kept
// alive until the worker clears its claim.
func (OSProbe) Probe(pid int) (State, error) {
	if pid <= 0 {
		return Gone, nil
	}

	return Alive, nil
}
