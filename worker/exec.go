package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dogmatiq/jobpack/internal/x/loggingx"
)

// Exec is the function registered as EntryPoint. It runs the worker described
// by the environment using the Rapidfire loop and exits the process.
func Exec() {
	cfg, err := ConfigFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		os.Interrupt,
	)
	defer stop()

	err = Main(
		ctx,
		cfg,
		NewRapidfire(cfg.Loop),
		loggingx.NewZap(cfg.Debug),
	)

	stop()

	if err == nil || errors.Is(err, context.Canceled) {
		os.Exit(0)
	}

	fmt.Fprintf(os.Stderr, "worker %d: %s\n", cfg.Index, err)
	os.Exit(1)
}
