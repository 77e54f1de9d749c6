package naming

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NameMustBeValid", func() {
	DescribeTable("valid names",
		func(name string) {
			Expect(func() { NameMustBeValid(name) }).NotTo(Panic())
		},
		Entry("single token", "Dev"),
		Entry("hierarchy", "Dev.RxFIFO"),
		Entry("index", "Bench.Host[2]"),
		Entry("multi index", "Grid[1][3].Cell"),
	)

	DescribeTable("invalid names",
		func(name string) {
			Expect(func() { NameMustBeValid(name) }).To(Panic())
		},
		Entry("empty", ""),
		Entry("trailing dot", "Dev."),
		Entry("double dot", "Dev..Rx"),
		Entry("lower case", "dev"),
		Entry("underscore", "Rx_FIFO"),
		Entry("unclosed bracket", "Host[2"),
		Entry("non integer index", "Host[a]"),
	)

	It("should build names", func() {
		Expect(BuildName("", "Dev")).To(Equal("Dev"))
		Expect(BuildName("Dev", "RxFIFO")).To(Equal("Dev.RxFIFO"))
		Expect(BuildNameWithIndex("Bench", "Host", 1)).To(Equal("Bench.Host[1]"))
	})
})
