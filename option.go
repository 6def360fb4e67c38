package jobpack

import (
	"context"
	"io"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/jobpack/allocation"
	"github.com/dogmatiq/jobpack/liveness"
	"github.com/dogmatiq/jobpack/supervisor"
	"github.com/dogmatiq/jobpack/worker"
	"github.com/dogmatiq/jobpack/workflow"
)

var (
	// DefaultProcessorsPerNode is the default number of processors on each
	// node of the allocation.
	//
	// It is overridden by the WithProcessorsPerNode() option.
	DefaultProcessorsPerNode = 24

	// DefaultStoreLocator is the locator of the default workflow store.
	//
	// It is overridden by the WithStoreLocator() and WithStore() options.
	DefaultStoreLocator = "memory:"

	// DefaultPingInterval is the default interval at which the work-items of
	// live workers are pinged.
	//
	// It is overridden by the WithPingInterval() option.
	DefaultPingInterval = liveness.DefaultPingInterval

	// DefaultMonitorFailurePolicy is the default behavior when the liveness
	// monitor fails.
	//
	// It is overridden by the WithMonitorFailurePolicy() option.
	DefaultMonitorFailurePolicy = ContinueDegraded

	// DefaultLogger is the default target for log messages produced by the
	// orchestrator.
	//
	// It is overridden by the WithLogger() option.
	DefaultLogger = logging.DefaultLogger
)

// MonitorFailurePolicy determines what the orchestrator does when the liveness
// monitor can no longer reach the shared state.
type MonitorFailurePolicy int

const (
	// ContinueDegraded leaves the workers running. Their work-items are no
	// longer pinged. The monitor's error is returned once the workers exit.
	ContinueDegraded MonitorFailurePolicy = iota

	// AbortWorkers terminates the workers.
	AbortWorkers
)

// StoreOpener is a function that opens the workflow store shared by the
// workers.
type StoreOpener func(ctx context.Context) (workflow.Store, error)

// Option configures the behavior of an orchestrator.
type Option func(*options)

// WithSubJobs returns an option that sets the number of sub-jobs, and hence
// worker processes, to pack into the allocation.
func WithSubJobs(n int) Option {
	return func(opts *options) {
		opts.SubJobs = n
	}
}

// WithNodeList returns an option that sets the nodes of the allocation.
//
// Repeated node identifiers are ignored. If this option is omitted the
// allocation does not label its nodes and workers are not pinned to nodes.
func WithNodeList(nodes ...string) Option {
	return func(opts *options) {
		opts.Nodes = append(opts.Nodes, nodes...)
	}
}

// WithProcessorsPerNode returns an option that sets the number of processors
// on each node of the allocation.
//
// If this option is omitted or n is zero, DefaultProcessorsPerNode is used.
func WithProcessorsPerNode(n int) Option {
	if n < 0 {
		panic("processors per node must not be negative")
	}

	return func(opts *options) {
		opts.ProcessorsPerNode = n
	}
}

// WithSerialMode returns an option that packs each sub-job onto a single
// processor rather than dividing the nodes between the sub-jobs.
func WithSerialMode() Option {
	return func(opts *options) {
		opts.Mode = allocation.Serial
	}
}

// WithStoreLocator returns an option that opens the workflow store identified
// by a locator, such as "memory:/path/to/seed.yaml".
//
// If this option is omitted, DefaultStoreLocator is used.
func WithStoreLocator(locator string) Option {
	return WithStore(func(ctx context.Context) (workflow.Store, error) {
		return workflow.Open(ctx, locator)
	})
}

// WithStore returns an option that sets the function used to open the
// workflow store.
func WithStore(fn StoreOpener) Option {
	return func(opts *options) {
		opts.OpenStore = fn
	}
}

// WithPingInterval returns an option that sets the interval at which the
// work-items of live workers are pinged.
//
// If this option is omitted or d is zero, DefaultPingInterval is used.
func WithPingInterval(d time.Duration) Option {
	if d < 0 {
		panic("duration must not be negative")
	}

	return func(opts *options) {
		opts.PingInterval = d
	}
}

// WithLoop returns an option that sets the configuration of each worker's
// work loop.
func WithLoop(c worker.LoopConfig) Option {
	return func(opts *options) {
		opts.Loop = c
	}
}

// WithWorkerCommand returns an option that sets the function used to build the
// command that starts each worker process.
//
// If this option is omitted or fn is nil, supervisor.DefaultCommand is used.
func WithWorkerCommand(fn supervisor.CommandFunc) Option {
	return func(opts *options) {
		opts.Command = fn
	}
}

// WithWorkerOutput returns an option that sets the targets for the output of
// the worker processes.
//
// If this option is omitted the output of the current process is used.
func WithWorkerOutput(stdout, stderr io.Writer) Option {
	return func(opts *options) {
		opts.Stdout = stdout
		opts.Stderr = stderr
	}
}

// WithProbe returns an option that sets the probe used to check whether each
// worker process is still running.
//
// If this option is omitted or p is nil, liveness.OSProbe is used.
func WithProbe(p liveness.Probe) Option {
	return func(opts *options) {
		opts.Probe = p
	}
}

// WithListenAddress returns an option that sets the address on which the
// shared state service listens.
//
// If this option is omitted, sharedstate.DefaultListenAddress is used.
func WithListenAddress(addr string) Option {
	return func(opts *options) {
		opts.ListenAddress = addr
	}
}

// WithSecret returns an option that sets the secret that workers must present
// to the shared state service.
//
// If this option is omitted a random secret is generated.
func WithSecret(s string) Option {
	return func(opts *options) {
		opts.Secret = s
	}
}

// WithLockDir returns an option that sets the directory in which the shared
// lock file is created.
//
// If this option is omitted the default directory for temporary files is used.
func WithLockDir(dir string) Option {
	return func(opts *options) {
		opts.LockDir = dir
	}
}

// WithMonitorFailurePolicy returns an option that sets the behavior when the
// liveness monitor fails.
//
// If this option is omitted, DefaultMonitorFailurePolicy is used.
func WithMonitorFailurePolicy(p MonitorFailurePolicy) Option {
	return func(opts *options) {
		opts.MonitorFailurePolicy = p
		opts.hasPolicy = true
	}
}

// WithDebugWorkers returns an option that enables debug logging in the worker
// processes.
func WithDebugWorkers() Option {
	return func(opts *options) {
		opts.DebugWorkers = true
	}
}

// WithLogger returns an option that sets the target for log messages produced
// by the orchestrator.
//
// If this option is omitted or l is nil DefaultLogger is used.
func WithLogger(l logging.Logger) Option {
	return func(opts *options) {
		opts.Logger = l
	}
}

// options is a container for a fully-resolved set of orchestrator options.
type options struct {
	SubJobs              int
	Nodes                []string
	ProcessorsPerNode    int
	Mode                 allocation.Mode
	OpenStore            StoreOpener
	PingInterval         time.Duration
	Loop                 worker.LoopConfig
	Command              supervisor.CommandFunc
	Stdout, Stderr       io.Writer
	Probe                liveness.Probe
	ListenAddress        string
	Secret               string
	LockDir              string
	MonitorFailurePolicy MonitorFailurePolicy
	DebugWorkers         bool
	Logger               logging.Logger

	hasPolicy bool
}

// resolveOptions returns a fully-populated set of orchestrator options built
// from the given set of option functions.
func resolveOptions(opts ...Option) *options {
	o := &options{}

	for _, fn := range opts {
		fn(o)
	}

	if o.ProcessorsPerNode == 0 {
		o.ProcessorsPerNode = DefaultProcessorsPerNode
	}

	if o.OpenStore == nil {
		WithStoreLocator(DefaultStoreLocator)(o)
	}

	if o.PingInterval == 0 {
		o.PingInterval = DefaultPingInterval
	}

	if !o.hasPolicy {
		o.MonitorFailurePolicy = DefaultMonitorFailurePolicy
	}

	if o.Logger == nil {
		o.Logger = DefaultLogger
	}

	return o
}
