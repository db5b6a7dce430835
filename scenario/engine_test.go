package scenario

import (
	"io"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/tanklab/cstr/registers"
)

var _ = Describe("Engine", func() {
	var (
		mockCtrl *gomock.Controller
		store    *MockStore
		quiet    *log.Logger
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		store = NewMockStore(mockCtrl)
		quiet = log.New(io.Discard, "", 0)
	})

	coolingScenario := Scenario{
		ConditionEvents: []ConditionEvent{{
			Variable:   ReactorTemperature,
			Comparator: GE,
			Threshold:  334.0,
			Action:     Action{"tc_set": 295.0},
			Comment:    "emergency cooling",
		}},
	}

	It("should not fire while the condition is false", func() {
		engine := NewEngine(coolingScenario, store, 0.1, quiet)

		engine.Evaluate(1.0, 310.0, 0.9)
		engine.Evaluate(2.0, 333.99, 0.9)

		Expect(engine.Fired()).To(BeEmpty())
	})

	It("should apply the action exactly once at the first qualifying tick",
		func() {
			store.EXPECT().
				Read(registers.AddrCoolantSet).
				Return(303.0).
				Times(1)
			store.EXPECT().
				Write(registers.AddrCoolantSet, 295.0).
				Times(1)

			engine := NewEngine(coolingScenario, store, 0.1, quiet)

			engine.Evaluate(41.0, 333.0, 0.9)
			engine.Evaluate(41.1, 334.2, 0.9)

			// Still true, already latched.
			engine.Evaluate(41.2, 340.0, 0.9)

			// Back below threshold; the latch must never reset.
			engine.Evaluate(90.0, 320.0, 0.9)
			engine.Evaluate(91.0, 336.0, 0.9)

			fired := engine.Fired()
			Expect(fired).To(HaveLen(1))
			Expect(fired[0].Kind).To(Equal("condition"))
			Expect(fired[0].SimTime).To(BeNumerically("~", 41.1, 1e-9))
		})

	It("should watch concentration when the rule says so", func() {
		sc := Scenario{
			ConditionEvents: []ConditionEvent{{
				Variable:   ReactorConcentration,
				Comparator: LE,
				Threshold:  0.1,
				Action:     Action{"q_set": 80.0},
				Comment:    "reactant depleted",
			}},
		}
		store.EXPECT().Read(registers.AddrFlowSet).Return(100.0)
		store.EXPECT().Write(registers.AddrFlowSet, 80.0)

		engine := NewEngine(sc, store, 0.1, quiet)

		engine.Evaluate(1.0, 500.0, 0.5)
		Expect(engine.Fired()).To(BeEmpty())

		engine.Evaluate(2.0, 500.0, 0.09)
		Expect(engine.Fired()).To(HaveLen(1))
	})

	It("should fire time events within half a tick of their timestamp",
		func() {
			sc := Scenario{
				TimeEvents: []TimeEvent{{
					At:     30.0,
					Action: Action{"tc_set": 303.0},
				}},
			}
			store.EXPECT().Read(registers.AddrCoolantSet).Return(300.0)
			store.EXPECT().Write(registers.AddrCoolantSet, 303.0)

			engine := NewEngine(sc, store, 0.1, quiet)

			engine.Evaluate(29.9, 310.0, 0.9)
			Expect(engine.Fired()).To(BeEmpty())

			engine.Evaluate(30.0, 310.0, 0.9)
			Expect(engine.Fired()).To(HaveLen(1))
		})

	It("should fire a time event whose timestamp fell between ticks",
		func() {
			sc := Scenario{
				TimeEvents: []TimeEvent{{
					At:     30.02,
					Action: Action{"tc_set": 303.0},
				}},
			}
			store.EXPECT().Read(gomock.Any()).Return(300.0)
			store.EXPECT().Write(registers.AddrCoolantSet, 303.0)

			engine := NewEngine(sc, store, 0.1, quiet)

			// Floating-point time accumulation overshot the timestamp.
			engine.Evaluate(30.07, 310.0, 0.9)

			Expect(engine.Fired()).To(HaveLen(1))
		})

	It("should evaluate rules in declaration order within a tick", func() {
		sc := Scenario{
			TimeEvents: []TimeEvent{{
				At:     10.0,
				Action: Action{"tc_set": 303.0},
			}},
			ConditionEvents: []ConditionEvent{{
				Variable:   ReactorTemperature,
				Comparator: GE,
				Threshold:  300.0,
				Action:     Action{"tc_set": 295.0},
			}},
		}

		first := store.EXPECT().Read(registers.AddrCoolantSet).Return(300.0)
		second := store.EXPECT().
			Write(registers.AddrCoolantSet, 303.0).
			After(first)
		third := store.EXPECT().
			Read(registers.AddrCoolantSet).
			Return(303.0).
			After(second)
		store.EXPECT().Write(registers.AddrCoolantSet, 295.0).After(third)

		engine := NewEngine(sc, store, 0.1, quiet)
		engine.Evaluate(10.0, 320.0, 0.9)

		Expect(engine.Fired()).To(HaveLen(2))
	})

	It("should run a scenario again with a fresh engine", func() {
		real := registers.NewStore()
		real.Write(registers.AddrCoolantSet, 303.0)

		first := NewEngine(coolingScenario, real, 0.1, quiet)
		first.Evaluate(1.0, 340.0, 0.9)
		Expect(real.Read(registers.AddrCoolantSet)).To(Equal(295.0))
		Expect(first.Fired()).To(HaveLen(1))

		// The Scenario itself holds no latch state.
		real.Write(registers.AddrCoolantSet, 303.0)
		second := NewEngine(coolingScenario, real, 0.1, quiet)
		second.Evaluate(1.0, 340.0, 0.9)
		Expect(real.Read(registers.AddrCoolantSet)).To(Equal(295.0))
		Expect(second.Fired()).To(HaveLen(1))
	})
})
