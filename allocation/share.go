package allocation

import "strings"

// Mode is the packing mode used to partition an allocation.
type Mode int

const (
	// Parallel gives each sub-job a contiguous slice of whole nodes.
	Parallel Mode = iota

	// Serial gives each sub-job a single processor on a single node.
	Serial
)

func (m Mode) String() string {
	if m == Serial {
		return "serial"
	}

	return "parallel"
}

// Share is the portion of an allocation's resources assigned to one sub-job.
type Share struct {
	// Nodes is the ordered list of node identifiers assigned to the sub-job.
	// It is nil if the allocation does not label its nodes.
	Nodes []string

	// Processors is the number of processors the sub-job may use.
	Processors int
}

// HasNodes returns true if the share is pinned to specific nodes.
func (s Share) HasNodes() bool {
	return s.Nodes != nil
}

// String returns a human-readable representation of the share.
func (s Share) String() string {
	if !s.HasNodes() {
		return "any node"
	}

	return strings.Join(s.Nodes, ",")
}
