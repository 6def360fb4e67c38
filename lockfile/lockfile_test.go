//go:build unix

package lockfile_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/dogmatiq/jobpack/lockfile"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func Create()", func() {
	It("creates an empty file in the given directory", func() {
		dir := GinkgoT().TempDir()

		path, err := Create(dir)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(filepath.Dir(path)).To(Equal(dir))

		info, err := os.Stat(path)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(info.Size()).To(BeZero())
	})

	It("returns an error if the directory does not exist", func() {
		_, err := Create(filepath.Join(GinkgoT().TempDir(), "missing"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("func Open()", func() {
	It("returns an error if the file does not exist", func() {
		_, err := Open(filepath.Join(GinkgoT().TempDir(), "missing.lock"))
		Expect(err).To(HaveOccurred())
	})

	It("returns an error if the path is empty", func() {
		_, err := Open("")
		Expect(err).To(MatchError("lock file path is empty"))
	})
})

var _ = Describe("type Lock", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		path   string
		a, b   *Lock
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)

		var err error
		path, err = Create(GinkgoT().TempDir())
		Expect(err).ShouldNot(HaveOccurred())

		a, err = Open(path)
		Expect(err).ShouldNot(HaveOccurred())

		b, err = Open(path)
		Expect(err).ShouldNot(HaveOccurred())
	})

	AfterEach(func() {
		a.Close()
		b.Close()
		cancel()
	})

	Describe("func Lock()", func() {
		It("excludes other handles to the same file", func() {
			err := a.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			ctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
			defer cancel()

			err = b.Lock(ctx)
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		It("excludes other goroutines using the same handle", func() {
			err := a.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			ctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
			defer cancel()

			err = a.Lock(ctx)
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		It("acquires the lock once it is released", func() {
			err := a.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			go func() {
				defer GinkgoRecover()
				time.Sleep(20 * time.Millisecond)
				Expect(a.Unlock()).To(Succeed())
			}()

			err = b.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(b.Unlock()).To(Succeed())
		})

		It("acquires the lock once the holder is closed", func() {
			err := a.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(a.Close()).To(Succeed())

			err = b.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())
		})
	})

	Describe("func Path()", func() {
		It("returns the path of the lock file", func() {
			Expect(a.Path()).To(Equal(path))
		})
	})
})
