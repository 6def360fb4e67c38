package liveness

// State is the result of probing an OS process.
type State int

const (
	// Alive indicates that the process exists.
	Alive State = iota

	// Gone indicates that the process does not exist.
	Gone

	// Denied indicates that the process exists but the caller lacks permission
	// to signal it. It is treated the same as Alive.
	Denied
)

func (s State) String() string {
	switch s {
	case Alive:
		return "alive"
	case Gone:
		return "gone"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// IsAlive returns true if the process should be considered to be running.
func (s State) IsAlive() bool {
	return s == Alive || s == Denied
}

// Probe checks whether an OS process exists.
type Probe interface {
	Probe(pid int) (State, error)
}

// ProbeFunc is an adaptor that allows a function to be used as a Probe.
type ProbeFunc func(pid int) (State, error)

// Probe calls fn(pid).
func (fn ProbeFunc) Probe(pid int) (State, error) {
	return fn(pid)
}

// OSProbe is a Probe that queries the operating system.
type OSProbe struct{}
