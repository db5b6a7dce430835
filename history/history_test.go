package history

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ring", func() {
	var ring *Ring

	BeforeEach(func() {
		ring = NewRing(3)
	})

	It("should keep records in push order", func() {
		ring.Push(Record{Time: 0.1})
		ring.Push(Record{Time: 0.2})

		snap := ring.Snapshot()
		Expect(snap).To(HaveLen(2))
		Expect(snap[0].Time).To(Equal(0.1))
		Expect(snap[1].Time).To(Equal(0.2))
	})

	It("should evict the oldest record when full", func() {
		for _, tick := range []float64{0.1, 0.2, 0.3, 0.4} {
			ring.Push(Record{Time: tick})
		}

		Expect(ring.Size()).To(Equal(3))

		snap := ring.Snapshot()
		Expect(snap[0].Time).To(Equal(0.2))
		Expect(snap[2].Time).To(Equal(0.4))
	})

	It("should report the most recent record", func() {
		_, ok := ring.Last()
		Expect(ok).To(BeFalse())

		ring.Push(Record{Time: 0.1, TReal: 310})
		ring.Push(Record{Time: 0.2, TReal: 311})

		last, ok := ring.Last()
		Expect(ok).To(BeTrue())
		Expect(last.TReal).To(Equal(311.0))
	})

	It("should deliver records to a tap", func() {
		tap := ring.Subscribe(4)

		ring.Push(Record{Time: 0.1})
		ring.Push(Record{Time: 0.2})

		Expect((<-tap.Records()).Time).To(Equal(0.1))
		Expect((<-tap.Records()).Time).To(Equal(0.2))
	})

	It("should drop the oldest pending record instead of blocking", func() {
		tap := ring.Subscribe(2)

		ring.Push(Record{Time: 0.1})
		ring.Push(Record{Time: 0.2})
		ring.Push(Record{Time: 0.3})

		Expect((<-tap.Records()).Time).To(Equal(0.2))
		Expect((<-tap.Records()).Time).To(Equal(0.3))
	})

	It("should close a tap's channel on unsubscribe", func() {
		tap := ring.Subscribe(2)
		ring.Unsubscribe(tap)

		_, open := <-tap.Records()
		Expect(open).To(BeFalse())

		// Pushing afterwards must not panic.
		ring.Push(Record{Time: 0.1})
	})
})
