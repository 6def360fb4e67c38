package allocation_test

import (
	"fmt"

	"github.com/dogmatiq/jobpack/allocation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// nodeNames returns n node names of the form "n1", "n2", etc.
func nodeNames(n int) []string {
	var names []string
	for i := 1; i <= n; i++ {
		names = append(names, fmt.Sprintf("n%d", i))
	}
	return names
}

var _ = Describe("func Partition()", func() {
	When("no node list is given", func() {
		It("gives every sub-job ppn processors in parallel mode", func() {
			shares, err := allocation.Partition(4, nil, 16, allocation.Parallel)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(shares).To(HaveLen(4))

			for _, s := range shares {
				Expect(s.Nodes).To(BeNil())
				Expect(s.HasNodes()).To(BeFalse())
				Expect(s.Processors).To(Equal(16))
			}
		})

		It("gives every sub-job a single processor in serial mode", func() {
			for _, n := range []int{1, 3, 7, 32} {
				shares, err := allocation.Partition(n, nil, 24, allocation.Serial)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(shares).To(HaveLen(n))

				for _, s := range shares {
					Expect(s).To(Equal(allocation.Share{Processors: 1}))
				}
			}
		})
	})

	When("a node list is given in parallel mode", func() {
		It("splits 8 nodes among 4 sub-jobs", func() {
			shares, err := allocation.Partition(4, nodeNames(8), 24, allocation.Parallel)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(shares).To(Equal([]allocation.Share{
				{Nodes: []string{"n1", "n2"}, Processors: 48},
				{Nodes: []string{"n3", "n4"}, Processors: 48},
				{Nodes: []string{"n5", "n6"}, Processors: 48},
				{Nodes: []string{"n7", "n8"}, Processors: 48},
			}))
		})

		DescribeTable(
			"it covers every distinct node exactly once with equally sized slices",
			func(subJobs, nodeCount int) {
				nodes := nodeNames(nodeCount)
				input := append(append([]string{}, nodes...), nodes...) // duplicates are ignored

				shares, err := allocation.Partition(subJobs, input, 2, allocation.Parallel)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(shares).To(HaveLen(subJobs))

				var union []string
				for _, s := range shares {
					Expect(s.Nodes).To(HaveLen(nodeCount / subJobs))
					Expect(s.Processors).To(Equal(2 * nodeCount / subJobs))
					union = append(union, s.Nodes...)
				}

				Expect(union).To(ConsistOf(nodes))
			},
			Entry("1 sub-job, 1 node", 1, 1),
			Entry("1 sub-job, 5 nodes", 1, 5),
			Entry("2 sub-jobs, 6 nodes", 2, 6),
			Entry("3 sub-jobs, 9 nodes", 3, 9),
			Entry("8 sub-jobs, 8 nodes", 8, 8),
			Entry("5 sub-jobs, 20 nodes", 5, 20),
		)

		It("assigns nodes in sorted order", func() {
			shares, err := allocation.Partition(2, []string{"d", "b", "c", "a", "b"}, 1, allocation.Parallel)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(shares).To(Equal([]allocation.Share{
				{Nodes: []string{"a", "b"}, Processors: 2},
				{Nodes: []string{"c", "d"}, Processors: 2},
			}))
		})

		It("does not modify the input", func() {
			input := []string{"n2", "n1", "n2"}
			_, err := allocation.Partition(2, input, 1, allocation.Parallel)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(input).To(Equal([]string{"n2", "n1", "n2"}))
		})

		DescribeTable(
			"it returns an error if the nodes can not be divided evenly",
			func(subJobs, nodeCount int) {
				shares, err := allocation.Partition(subJobs, nodeNames(nodeCount), 24, allocation.Parallel)
				Expect(shares).To(BeNil())

				var target *allocation.Error
				Expect(err).To(BeAssignableToTypeOf(target))
				Expect(err).To(MatchError(fmt.Sprintf(
					"can not allocate nodes, %d node(s) can not be divided evenly among %d sub-job(s)",
					nodeCount,
					subJobs,
				)))
			},
			Entry("3 sub-jobs, 8 nodes", 3, 8),
			Entry("2 sub-jobs, 1 node", 2, 1),
			Entry("4 sub-jobs, 6 nodes", 4, 6),
		)
	})

	When("a node list is given in serial mode", func() {
		It("repeats the nodes cyclically with one processor each", func() {
			shares, err := allocation.Partition(6, []string{"b", "a", "c"}, 24, allocation.Serial)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(shares).To(Equal([]allocation.Share{
				{Nodes: []string{"a"}, Processors: 1},
				{Nodes: []string{"b"}, Processors: 1},
				{Nodes: []string{"c"}, Processors: 1},
				{Nodes: []string{"a"}, Processors: 1},
				{Nodes: []string{"b"}, Processors: 1},
				{Nodes: []string{"c"}, Processors: 1},
			}))
		})

		It("does not validate ppn", func() {
			shares, err := allocation.Partition(2, []string{"a"}, 0, allocation.Serial)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(shares).To(HaveLen(2))
		})

		It("returns an error if the sub-jobs can not be divided evenly", func() {
			_, err := allocation.Partition(5, nodeNames(2), 24, allocation.Serial)
			Expect(err).To(MatchError(
				"can not allocate processes, 5 sub-job(s) can not be divided evenly among 2 node(s)",
			))
		})
	})

	It("returns an error if there are no sub-jobs", func() {
		_, err := allocation.Partition(0, nodeNames(2), 24, allocation.Parallel)
		Expect(err).To(MatchError("can not allocate resources to 0 sub-job(s)"))
	})

	It("returns the same shares for the same inputs", func() {
		nodes := []string{"n4", "n2", "n3", "n1", "n3"}

		for _, mode := range []allocation.Mode{allocation.Parallel, allocation.Serial} {
			a, errA := allocation.Partition(2, nodes, 8, mode)
			b, errB := allocation.Partition(2, nodes, 8, mode)

			Expect(errA).ShouldNot(HaveOccurred())
			Expect(errB).ShouldNot(HaveOccurred())
			Expect(a).To(Equal(b))
		}
	})
})

var _ = Describe("type Share", func() {
	Describe("func String()", func() {
		It("joins the node names", func() {
			s := allocation.Share{Nodes: []string{"a", "b"}, Processors: 2}
			Expect(s.String()).To(Equal("a,b"))
		})

		It("describes an unlabelled share", func() {
			s := allocation.Share{Processors: 2}
			Expect(s.String()).To(Equal("any node"))
		})
	})
})
