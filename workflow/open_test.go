package workflow_test

import (
	"context"
	"errors"

	. "github.com/dogmatiq/jobpack/workflow"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func Open()", func() {
	var opened string

	BeforeEach(func() {
		opened = ""
	})

	It("passes the path to the opener registered for the scheme", func() {
		Register("open-test-ok", func(_ context.Context, path string) (Store, error) {
			opened = path
			return nil, nil
		})

		_, err := Open(context.Background(), "open-test-ok://var/run/items")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(opened).To(Equal("var/run/items"))
	})

	It("wraps errors from the opener", func() {
		Register("open-test-fail", func(context.Context, string) (Store, error) {
			return nil, errors.New("<error>")
		})

		_, err := Open(context.Background(), "open-test-fail:x")
		Expect(err).To(MatchError("unable to open workflow store 'open-test-fail:x': <error>"))
	})

	It("returns an error if the scheme is not registered", func() {
		_, err := Open(context.Background(), "unknown:x")
		Expect(err).To(MatchError("unable to open workflow store 'unknown:x': unrecognised scheme 'unknown'"))
	})
})

var _ = Describe("func Register()", func() {
	It("panics if the scheme is already registered", func() {
		Register("register-test", func(context.Context, string) (Store, error) { return nil, nil })

		Expect(func() {
			Register("register-test", func(context.Context, string) (Store, error) { return nil, nil })
		}).To(PanicWith("a workflow store has already been registered for 'register-test'"))
	})
})

var _ = Describe("type UnknownWorkItemError", func() {
	It("includes the ID in the message", func() {
		err := UnknownWorkItemError{ID: "<id>"}
		Expect(err).To(MatchError("work-item with ID '<id>' does not exist"))
	})
})

var _ = Describe("type Result", func() {
	It("is failed if it has an error", func() {
		Expect(Result{Error: "<error>"}.Failed()).To(BeTrue())
		Expect(Result{}.Failed()).To(BeFalse())
	})
})
