package allocation

import (
	"fmt"
	"sort"
)

// Error is returned when an allocation can not be divided among sub-jobs.
type Error struct {
	SubJobs int
	Nodes   int
	Mode    Mode
}

func (e *Error) Error() string {
	if e.SubJobs <= 0 {
		return fmt.Sprintf("can not allocate resources to %d sub-job(s)", e.SubJobs)
	}

	if e.Mode == Serial {
		return fmt.Sprintf(
			"can not allocate processes, %d sub-job(s) can not be divided evenly among %d node(s)",
			e.SubJobs,
			e.Nodes,
		)
	}

	return fmt.Sprintf(
		"can not allocate nodes, %d node(s) can not be divided evenly among %d sub-job(s)",
		e.Nodes,
		e.SubJobs,
	)
}

// Partition divides an allocation among subJobs sub-jobs.
//
// nodes is the node list of the whole allocation. Duplicates are ignored and
// nodes are assigned in sorted order. If nodes is empty every sub-job receives
// an unlabelled share of ppn processors, or 1 processor in serial mode.
//
// In parallel mode the distinct node count must be a multiple of subJobs. In
// serial mode subJobs must be a multiple of the distinct node count, each node
// is shared by subJobs/nodeCount sub-jobs and every share has 1 processor.
//
// The returned shares are always in the same order for the same inputs.
func Partition(subJobs int, nodes []string, ppn int, mode Mode) ([]Share, error) {
	if subJobs <= 0 {
		return nil, &Error{subJobs, len(nodes), mode}
	}

	shares := make([]Share, subJobs)

	if len(nodes) == 0 {
		n := ppn
		if mode == Serial {
			n = 1
		}

		for i := range shares {
			shares[i] = Share{Processors: n}
		}

		return shares, nil
	}

	distinct := dedupe(nodes)
	count := len(distinct)

	if mode == Serial {
		if subJobs%count != 0 {
			return nil, &Error{subJobs, count, mode}
		}

		for i := range shares {
			shares[i] = Share{
				Nodes:      []string{distinct[i%count]},
				Processors: 1,
			}
		}

		return shares, nil
	}

	if count%subJobs != 0 {
		return nil, &Error{subJobs, count, mode}
	}

	size := count / subJobs

	for i := range shares {
		slice := make([]string, size)
		copy(slice, distinct[i*size:(i+1)*size])

		shares[i] = Share{
			Nodes:      slice,
			Processors: size * ppn,
		}
	}

	return shares, nil
}

// dedupe returns the sorted set of distinct elements of nodes.
func dedupe(nodes []string) []string {
	seen := make(map[string]struct{}, len(nodes))
	distinct := make([]string, 0, len(nodes))

	for _, n := range nodes {
		if _, ok := seen[n]; ok {
			continue
		}

		seen[n] = struct{}{}
		distinct = append(distinct, n)
	}

	sort.Strings(distinct)

	return distinct
}
