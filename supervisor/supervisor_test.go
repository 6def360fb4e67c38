//go:build unix

package supervisor_test

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/jobpack/allocation"
	"github.com/dogmatiq/jobpack/sharedstate"
	. "github.com/dogmatiq/jobpack/supervisor"
	"github.com/dogmatiq/jobpack/worker"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// syncBuffer is a bytes.Buffer that is safe for concurrent writes.
type syncBuffer struct {
	m   sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.m.Lock()
	defer b.m.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.m.Lock()
	defer b.m.Unlock()
	return b.buf.String()
}

var _ = Describe("type Supervisor", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		stdout *syncBuffer
		sup    *Supervisor
		shares []allocation.Share
		ep     sharedstate.Endpoint
		loop   worker.LoopConfig
	)

	shell := func(script string) CommandFunc {
		return func() *exec.Cmd {
			return exec.Command("sh", "-c", script)
		}
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		stdout = &syncBuffer{}

		sup = &Supervisor{
			Command: shell(`exit 0`),
			Stdout:  stdout,
			Logger:  logging.DiscardLogger{},
		}

		shares = []allocation.Share{
			{Nodes: []string{"n1"}, Processors: 24},
			{Nodes: []string{"n2"}, Processors: 24},
		}

		ep = sharedstate.Endpoint{Address: "127.0.0.1:5123", Secret: "<secret>"}
		loop = worker.LoopConfig{Command: []string{"run"}}
	})

	AfterEach(func() {
		cancel()
	})

	Describe("func Launch()", func() {
		It("starts one process per share", func() {
			procs, err := sup.Launch(ctx, loop, shares, ep, "/tmp/jobpack.lock")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(procs).To(HaveLen(2))

			for i, p := range procs {
				Expect(p.Index).To(Equal(i))
				Expect(p.Share).To(Equal(shares[i]))
				Expect(p.PID()).To(BeNumerically(">", 0))
			}

			Expect(sup.Wait(procs)).To(Succeed())
		})

		It("passes each process its configuration", func() {
			sup.Command = shell(`printf '%s\n' "$` + worker.ConfigEnvVar + `"`)

			procs, err := sup.Launch(ctx, loop, shares, ep, "/tmp/jobpack.lock")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(sup.Wait(procs)).To(Succeed())

			lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
			Expect(lines).To(HaveLen(2))

			for _, l := range lines {
				Expect(l).To(ContainSubstring(`"packed":true`))
				Expect(l).To(ContainSubstring(`"lock_file":"/tmp/jobpack.lock"`))
				Expect(l).To(ContainSubstring(`"Address":"127.0.0.1:5123"`))
			}

			Expect(stdout.String()).To(ContainSubstring(`"Nodes":["n1"]`))
			Expect(stdout.String()).To(ContainSubstring(`"Nodes":["n2"]`))
		})

		It("staggers the start of each process", func() {
			shares = append(shares, allocation.Share{Nodes: []string{"n3"}, Processors: 24})

			start := time.Now()
			procs, err := sup.Launch(ctx, loop, shares, ep, "/tmp/jobpack.lock")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(time.Since(start)).To(BeNumerically(">=", 2*Stagger))

			Expect(sup.Wait(procs)).To(Succeed())
		})

		It("terminates the started processes if a later process can not be started", func() {
			n := 0
			sup.Command = func() *exec.Cmd {
				n++
				if n == 1 {
					return exec.Command("sleep", "30")
				}
				return exec.Command("/nonexistent/command")
			}

			start := time.Now()
			procs, err := sup.Launch(ctx, loop, shares, ep, "/tmp/jobpack.lock")
			Expect(err).To(MatchError(ContainSubstring("unable to start worker 1")))
			Expect(procs).To(BeEmpty())
			Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))
		})

		It("terminates the processes when the context is canceled", func() {
			sup.Command = shell(`exec sleep 30`)

			procs, err := sup.Launch(ctx, loop, shares, ep, "/tmp/jobpack.lock")
			Expect(err).ShouldNot(HaveOccurred())

			cancel()

			for _, p := range procs {
				Eventually(p.Done()).Should(BeClosed())
			}
		})

		It("returns an error if the context is canceled between starts", func() {
			sup.Command = shell(`exec sleep 30`)

			ctx, cancel := context.WithTimeout(ctx, Stagger/2)
			defer cancel()

			procs, err := sup.Launch(ctx, loop, shares, ep, "/tmp/jobpack.lock")
			Expect(err).To(Equal(context.DeadlineExceeded))
			Expect(procs).To(BeEmpty())
		})
	})

	Describe("func Wait()", func() {
		It("waits for every process regardless of failures", func() {
			n := 0
			sup.Command = func() *exec.Cmd {
				n++
				if n == 1 {
					return exec.Command("sh", "-c", "exit 3")
				}
				return exec.Command("sh", "-c", "sleep 0.2; echo done")
			}

			logger := &logging.BufferedLogger{}
			sup.Logger = logger

			procs, err := sup.Launch(ctx, loop, shares, ep, "/tmp/jobpack.lock")
			Expect(err).ShouldNot(HaveOccurred())

			err = sup.Wait(procs)
			Expect(err).To(MatchError("worker 0: exit status 3"))
			Expect(stdout.String()).To(Equal("done\n"))

			Expect(logger.Messages()).To(ContainElement(
				HaveField("Message", HavePrefix("worker 0 (pid ")),
			))
		})
	})

	Describe("func Terminate()", func() {
		It("stops every running process", func() {
			sup.Command = shell(`exec sleep 30`)

			procs, err := sup.Launch(ctx, loop, shares, ep, "/tmp/jobpack.lock")
			Expect(err).ShouldNot(HaveOccurred())

			sup.Terminate(procs)

			err = sup.Wait(procs)
			Expect(err).To(MatchError(ContainSubstring("signal: terminated")))
		})

		It("ignores processes that have already exited", func() {
			procs, err := sup.Launch(ctx, loop, shares, ep, "/tmp/jobpack.lock")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(sup.Wait(procs)).To(Succeed())

			Expect(func() {
				sup.Terminate(procs)
			}).NotTo(Panic())
		})
	})
})
