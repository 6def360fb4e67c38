package jobpack

import (
	"context"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/jobpack/allocation"
	"github.com/dogmatiq/jobpack/liveness"
	"github.com/dogmatiq/jobpack/worker"
	"github.com/dogmatiq/jobpack/workflow"
	"github.com/dogmatiq/jobpack/workflow/memorystore"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Option", func() {
	Describe("func WithSubJobs()", func() {
		It("sets the number of sub-jobs", func() {
			opts := resolveOptions(WithSubJobs(4))
			Expect(opts.SubJobs).To(Equal(4))
		})
	})

	Describe("func WithNodeList()", func() {
		It("appends to the node list", func() {
			opts := resolveOptions(
				WithNodeList("n1", "n2"),
				WithNodeList("n3"),
			)

			Expect(opts.Nodes).To(Equal([]string{"n1", "n2", "n3"}))
		})

		It("leaves the node list empty by default", func() {
			opts := resolveOptions()
			Expect(opts.Nodes).To(BeEmpty())
		})
	})

	Describe("func WithProcessorsPerNode()", func() {
		It("sets the number of processors per node", func() {
			opts := resolveOptions(WithProcessorsPerNode(48))
			Expect(opts.ProcessorsPerNode).To(Equal(48))
		})

		It("uses the default if the number is zero", func() {
			opts := resolveOptions(WithProcessorsPerNode(0))
			Expect(opts.ProcessorsPerNode).To(Equal(DefaultProcessorsPerNode))
		})

		It("panics if the number is negative", func() {
			Expect(func() {
				WithProcessorsPerNode(-1)
			}).To(PanicWith("processors per node must not be negative"))
		})
	})

	Describe("func WithSerialMode()", func() {
		It("sets the packing mode", func() {
			opts := resolveOptions(WithSerialMode())
			Expect(opts.Mode).To(Equal(allocation.Serial))
		})

		It("uses parallel mode by default", func() {
			opts := resolveOptions()
			Expect(opts.Mode).To(Equal(allocation.Parallel))
		})
	})

	Describe("func WithStore()", func() {
		It("sets the function used to open the store", func() {
			store := &memorystore.Store{}

			opts := resolveOptions(
				WithStore(func(context.Context) (workflow.Store, error) {
					return store, nil
				}),
			)

			s, err := opts.OpenStore(context.Background())
			Expect(err).ShouldNot(HaveOccurred())
			Expect(s).To(BeIdenticalTo(store))
		})
	})

	Describe("func WithStoreLocator()", func() {
		It("opens the store identified by the locator", func() {
			opts := resolveOptions(WithStoreLocator("<scheme>:<path>"))

			_, err := opts.OpenStore(context.Background())
			Expect(err).To(MatchError("unable to open workflow store '<scheme>:<path>': unrecognised scheme '<scheme>'"))
		})

		It("uses the default locator if no store is specified", func() {
			opts := resolveOptions()

			s, err := opts.OpenStore(context.Background())
			Expect(err).ShouldNot(HaveOccurred())
			Expect(s).To(BeAssignableToTypeOf(&memorystore.Store{}))
		})
	})

	Describe("func WithPingInterval()", func() {
		It("sets the ping interval", func() {
			opts := resolveOptions(WithPingInterval(10 * time.Minute))
			Expect(opts.PingInterval).To(Equal(10 * time.Minute))
		})

		It("uses the default if the interval is zero", func() {
			opts := resolveOptions(WithPingInterval(0))
			Expect(opts.PingInterval).To(Equal(DefaultPingInterval))
		})

		It("panics if the interval is negative", func() {
			Expect(func() {
				WithPingInterval(-1)
			}).To(PanicWith("duration must not be negative"))
		})
	})

	Describe("func WithLoop()", func() {
		It("sets the loop configuration", func() {
			c := worker.LoopConfig{Launches: worker.Forever, Command: []string{"run"}}
			opts := resolveOptions(WithLoop(c))
			Expect(opts.Loop).To(Equal(c))
		})
	})

	Describe("func WithProbe()", func() {
		It("sets the probe", func() {
			opts := resolveOptions(WithProbe(liveness.OSProbe{}))
			Expect(opts.Probe).To(Equal(liveness.OSProbe{}))
		})
	})

	Describe("func WithMonitorFailurePolicy()", func() {
		It("sets the policy", func() {
			opts := resolveOptions(WithMonitorFailurePolicy(AbortWorkers))
			Expect(opts.MonitorFailurePolicy).To(Equal(AbortWorkers))
		})

		It("uses the default if no policy is specified", func() {
			opts := resolveOptions()
			Expect(opts.MonitorFailurePolicy).To(Equal(DefaultMonitorFailurePolicy))
		})
	})

	Describe("func WithLogger()", func() {
		It("sets the logger", func() {
			logger := &logging.BufferedLogger{}
			opts := resolveOptions(WithLogger(logger))
			Expect(opts.Logger).To(BeIdenticalTo(logger))
		})

		It("uses the default if the logger is nil", func() {
			opts := resolveOptions(WithLogger(nil))
			Expect(opts.Logger).To(BeIdenticalTo(DefaultLogger))
		})
	})

	Describe("func WithSecret(), WithListenAddress(), WithLockDir()", func() {
		It("sets the values", func() {
			opts := resolveOptions(
				WithSecret("<secret>"),
				WithListenAddress("127.0.0.1:5123"),
				WithLockDir("/tmp"),
				WithDebugWorkers(),
			)

			Expect(opts.Secret).To(Equal("<secret>"))
			Expect(opts.ListenAddress).To(Equal("127.0.0.1:5123"))
			Expect(opts.LockDir).To(Equal("/tmp"))
			Expect(opts.DebugWorkers).To(BeTrue())
		})
	})
})
