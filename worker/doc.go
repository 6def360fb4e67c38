// Package worker is the entry point of each packed worker process.
//
// A worker is started by the supervisor with its configuration in the
// environment. It connects to the orchestrator's shared state service and
// executes work-items from the workflow store until its loop finishes.
package worker
