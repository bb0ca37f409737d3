package currency_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/pix-deposit/internal/currency"
)

var _ = Describe("ParseKeystroke", func() {
	DescribeTable("normalizes raw input",
		func(raw, previous, expected string) {
			Expect(currency.ParseKeystroke(raw, previous)).To(Equal(expected))
		},
		Entry("empty input", "", "", "0.00"),
		Entry("bare separator", ",", "", "0.00"),
		Entry("integer", "5", "", "5.00"),
		Entry("single fractional digit", "12,3", "", "12.30"),
		Entry("two fractional digits", "12,34", "", "12.34"),
		Entry("extra fractional digits are truncated", "12,345", "", "12.34"),
		Entry("truncation never rounds up", "0,999", "", "0.99"),
		Entry("leading zeros collapse", "007", "", "7.00"),
		Entry("leading separator", ",5", "", "0.50"),
		Entry("letters are stripped", "a1b2c", "", "12.00"),
		Entry("only letters", "abc", "", "0.00"),
		Entry("display string", "R$ 1.234,56", "", "1234.56"),
		Entry("grouping dot is ignored", "1.000", "", "1000.00"),
		Entry("second separator keeps previous", "12,34,", "12.34", "12.34"),
		Entry("second separator mid value keeps previous", "1,2,3", "1.20", "1.20"),
		Entry("second separator with bad previous", "1,2,3", "garbage", "0.00"),
		Entry("previous is normalized", "1,,", "007.50", "7.50"),
	)

	It("keeps every prefix of a typed sequence canonical", func() {
		sequences := []string{
			"1234,56",
			"0,,,1",
			"R$ 9.999,999",
			",,12a,3",
			"000000",
			"50,00",
		}

		for _, seq := range sequences {
			previous := currency.Zero
			typed := ""
			for _, r := range seq {
				typed += string(r)
				previous = currency.ParseKeystroke(typed, previous)
				Expect(currency.IsCanonical(previous)).To(BeTrue(), "sequence %q prefix %q gave %q", seq, typed, previous)
			}
		}
	})
})

var _ = Describe("FormatForDisplay", func() {
	DescribeTable("renders pt-BR currency",
		func(canonical, expected string) {
			Expect(currency.FormatForDisplay(canonical)).To(Equal(expected))
		},
		Entry("zero", "0.00", "R$ 0,00"),
		Entry("cents", "12.34", "R$ 12,34"),
		Entry("thousands", "1000.00", "R$ 1.000,00"),
		Entry("millions", "1234567.89", "R$ 1.234.567,89"),
		Entry("beyond float precision", "90071992547409.93", "R$ 90.071.992.547.409,93"),
		Entry("extra fractional digits are truncated", "1.999", "R$ 1,99"),
		Entry("empty", "", "R$ 0,00"),
		Entry("not a number", "abc", "R$ 0,00"),
	)

	DescribeTable("round trips through ParseKeystroke",
		func(value string) {
			Expect(currency.ParseKeystroke(currency.FormatForDisplay(value), "")).To(Equal(value))
		},
		Entry("zero", "0.00"),
		Entry("cents", "12.34"),
		Entry("thousands", "1000.00"),
		Entry("whole amount", "50.00"),
		Entry("beyond float precision", "90071992547409.93"),
		Entry("beyond int64 minor units", "12345678901234567.89"),
	)
})

var _ = Describe("minor units", func() {
	It("converts canonical amounts to cents", func() {
		// Given
		amounts := map[string]int64{"50.00": 5000, "0.01": 1, "1000.00": 100000, "12.34": 1234}

		for canonical, cents := range amounts {
			// When
			got, err := currency.ToMinorUnits(canonical)

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal(cents))
		}
	})

	It("rejects non canonical input", func() {
		_, err := currency.ToMinorUnits("12,30")
		Expect(err).To(MatchError(currency.ErrNotCanonical))
	})

	It("rejects amounts that overflow", func() {
		_, err := currency.ToMinorUnits("99999999999999999999.00")
		Expect(err).To(MatchError(currency.ErrOutOfRange))
	})

	It("renders cents back to canonical form", func() {
		Expect(currency.FromMinorUnits(5000)).To(Equal("50.00"))
		Expect(currency.FromMinorUnits(7)).To(Equal("0.07"))
		Expect(currency.FromMinorUnits(-1)).To(Equal(currency.Zero))
	})
})
