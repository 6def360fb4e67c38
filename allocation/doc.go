// Package allocation partitions the compute resources of a single allocation
// among the sub-jobs that run inside it.
package allocation
