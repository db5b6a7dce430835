package scenario

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var validScenario = []byte(`
time_events:
  - at: 30.0
    action: {tc_set: 303.0}
    comment: raise coolant temperature to induce reaction
condition_events:
  - variable: reactor_temperature
    operator: ">="
    threshold: 334.0
    action: {tc_set: 295.0}
    comment: emergency cooling
`)

var _ = Describe("Parse", func() {
	It("should parse a valid scenario", func() {
		sc, err := Parse(validScenario)

		Expect(err).ToNot(HaveOccurred())
		Expect(sc.TimeEvents).To(HaveLen(1))
		Expect(sc.TimeEvents[0].At).To(Equal(30.0))
		Expect(sc.TimeEvents[0].Action).To(
			Equal(Action{"tc_set": 303.0}))
		Expect(sc.ConditionEvents).To(HaveLen(1))
		Expect(sc.ConditionEvents[0].Variable).To(
			Equal(ReactorTemperature))
		Expect(sc.ConditionEvents[0].Comparator).To(Equal(GE))
		Expect(sc.ConditionEvents[0].Threshold).To(Equal(334.0))
	})

	It("should accept an empty scenario", func() {
		sc, err := Parse([]byte(``))

		Expect(err).ToNot(HaveOccurred())
		Expect(sc.TimeEvents).To(BeEmpty())
		Expect(sc.ConditionEvents).To(BeEmpty())
	})

	It("should reject an unknown comparator", func() {
		_, err := Parse([]byte(`
condition_events:
  - variable: reactor_temperature
    operator: "=>"
    threshold: 334.0
    action: {tc_set: 295.0}
`))

		Expect(err).To(MatchError(ContainSubstring(`comparator "=>"`)))
	})

	It("should reject an unknown trigger variable", func() {
		_, err := Parse([]byte(`
condition_events:
  - variable: coolant_flow
    operator: ">="
    threshold: 334.0
    action: {tc_set: 295.0}
`))

		Expect(err).To(
			MatchError(ContainSubstring(`trigger variable "coolant_flow"`)))
	})

	It("should reject an action naming an unknown setpoint", func() {
		_, err := Parse([]byte(`
time_events:
  - at: 10.0
    action: {t_real: 500.0}
`))

		Expect(err).To(MatchError(ContainSubstring(`unknown setpoint "t_real"`)))
	})

	It("should reject a non-finite action value", func() {
		_, err := Parse([]byte(`
time_events:
  - at: 10.0
    action: {tc_set: .nan}
`))

		Expect(err).To(MatchError(ContainSubstring("not finite")))

		_, err = Parse([]byte(`
condition_events:
  - variable: reactor_temperature
    operator: ">="
    threshold: 334.0
    action: {tc_set: .inf}
`))

		Expect(err).To(MatchError(ContainSubstring("not finite")))
	})

	It("should reject an event without an action", func() {
		_, err := Parse([]byte(`
time_events:
  - at: 10.0
    comment: does nothing
`))

		Expect(err).To(MatchError(ContainSubstring("no action")))
	})

	It("should reject a negative timestamp", func() {
		_, err := Parse([]byte(`
time_events:
  - at: -1.0
    action: {q_set: 80.0}
`))

		Expect(err).To(MatchError(ContainSubstring("negative timestamp")))
	})

	It("should reject malformed YAML", func() {
		_, err := Parse([]byte(`time_events: [`))

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ParseComparator", func() {
	It("should cover the closed comparator set", func() {
		for str, want := range map[string]Comparator{
			"<": LT, "<=": LE, ">": GT, ">=": GE, "==": EQ, "=": EQ,
		} {
			got, err := ParseComparator(str)
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal(want))
		}
	})

	It("should evaluate each comparator totally", func() {
		Expect(LT.Eval(1, 2)).To(BeTrue())
		Expect(LT.Eval(2, 2)).To(BeFalse())
		Expect(LE.Eval(2, 2)).To(BeTrue())
		Expect(GT.Eval(3, 2)).To(BeTrue())
		Expect(GT.Eval(2, 2)).To(BeFalse())
		Expect(GE.Eval(2, 2)).To(BeTrue())
		Expect(EQ.Eval(2, 2)).To(BeTrue())
		Expect(EQ.Eval(2, 2.0001)).To(BeFalse())
	})
})
