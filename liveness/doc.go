// Package liveness keeps the work-items claimed by live worker processes from
// being considered lost by the workflow store.
//
// The monitor periodically inspects the registry of claimed work-items, checks
// that each claiming process still exists and pings the work-item on its
// behalf. Work-items claimed by processes that have exited are left alone so
// that the store eventually requeues them.
package liveness
