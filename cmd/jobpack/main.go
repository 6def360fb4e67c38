// Package main is the jobpack command-line tool.
//
// It packs sub-jobs into the current resource allocation. The same binary is
// re-executed to run each worker process.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dogmatiq/jobpack/worker"
	_ "github.com/dogmatiq/jobpack/workflow/memorystore"
	"github.com/moby/sys/reexec"
)

func init() {
	reexec.Register(worker.EntryPoint, worker.Exec)
}

// newContext returns a cancelable context that is canceled when the process
// receives a SIGTERM or SIGINT.
func newContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
		case <-sig:
			cancel()
		}
	}()

	return ctx, cancel
}

func main() {
	if reexec.Init() {
		return
	}

	ctx, cancel := newContext()
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
