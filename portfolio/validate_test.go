// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package portfolio_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-tracker/data"
	"github.com/penny-vault/pv-tracker/portfolio"
)

var _ = Describe("Validate", func() {
	var (
		nyc   *time.Location
		input *portfolio.ValidationInput
	)

	BeforeEach(func() {
		var err error
		nyc, err = time.LoadLocation("America/New_York")
		Expect(err).To(BeNil())

		input = &portfolio.ValidationInput{
			Transaction: portfolio.TransactionInput{
				UserID:     "user-1",
				Symbol:     "MSFT",
				SymbolType: portfolio.StockSymbol,
				Units:      2,
				Date:       "2022-06-15",
				Type:       portfolio.BuyTransaction,
			},
			User: &portfolio.User{
				ID: "user-1",
			},
			Quote: &data.Quote{Symbol: "MSFT", Price: 250},
			Log: []*portfolio.Transaction{
				buy("MSFT", "2022-01-03", 3, 300),
			},
			// Friday afternoon
			Now:             time.Date(2022, 6, 17, 15, 0, 0, 0, nyc),
			Location:        nyc,
			MaxHistoryYears: 20,
		}
	})

	It("accepts a valid buy", func() {
		Expect(portfolio.Validate(input)).To(Succeed())
	})

	It("accepts a transaction dated today", func() {
		input.Transaction.Date = "2022-06-17"
		Expect(portfolio.Validate(input)).To(Succeed())
	})

	DescribeTable("rejects a transaction",
		func(mutate func(*portfolio.ValidationInput), expected error) {
			mutate(input)
			Expect(portfolio.Validate(input)).To(MatchError(expected))
		},
		Entry("with zero units", func(in *portfolio.ValidationInput) {
			in.Transaction.Units = 0
		}, portfolio.ErrUnitsNotPositive),
		Entry("with negative units", func(in *portfolio.ValidationInput) {
			in.Transaction.Units = -1
		}, portfolio.ErrUnitsNotPositive),
		Entry("with fractional stock units", func(in *portfolio.ValidationInput) {
			in.Transaction.Units = 1.5
		}, portfolio.ErrUnitsNotInteger),
		Entry("for an unknown symbol", func(in *portfolio.ValidationInput) {
			in.Quote = nil
		}, portfolio.ErrSymbolNotFound),
		Entry("with an impossible date", func(in *portfolio.ValidationInput) {
			in.Transaction.Date = "2022-02-30"
		}, portfolio.ErrDateInvalid),
		Entry("with a malformed date", func(in *portfolio.ValidationInput) {
			in.Transaction.Date = "June 15th"
		}, portfolio.ErrDateInvalid),
		Entry("dated tomorrow", func(in *portfolio.ValidationInput) {
			in.Transaction.Date = "2022-06-18"
		}, portfolio.ErrDateInFuture),
		Entry("dated on a Saturday", func(in *portfolio.ValidationInput) {
			in.Transaction.Date = "2022-06-11"
		}, portfolio.ErrDateOnWeekend),
		Entry("dated on a Sunday", func(in *portfolio.ValidationInput) {
			in.Transaction.Date = "2022-06-12"
		}, portfolio.ErrDateOnWeekend),
		Entry("older than the history limit", func(in *portfolio.ValidationInput) {
			in.Transaction.Date = "2001-06-15"
		}, portfolio.ErrDateTooOld),
		Entry("with an unknown type", func(in *portfolio.ValidationInput) {
			in.Transaction.Type = "SHORT"
		}, portfolio.ErrInvalidTransactionType),
	)

	It("checks the rules in order", func() {
		// zero units and a missing quote: the units rule comes first
		input.Transaction.Units = 0
		input.Quote = nil
		Expect(portfolio.Validate(input)).To(MatchError(portfolio.ErrUnitsNotPositive))
	})

	It("allows fractional crypto units", func() {
		input.Transaction.Symbol = "BTC-USD"
		input.Transaction.SymbolType = portfolio.CryptoSymbol
		input.Transaction.Units = 0.25
		Expect(portfolio.Validate(input)).To(Succeed())
	})

	It("skips the history limit when it is disabled", func() {
		input.MaxHistoryYears = 0
		input.Transaction.Date = "2001-06-15"
		Expect(portfolio.Validate(input)).To(Succeed())
	})

	Context("with a Saturday date", func() {
		It("reports DateOnWeekend regardless of the other fields", func() {
			input.Transaction.Date = "2022-06-11"
			input.Transaction.Type = portfolio.SellTransaction
			input.Transaction.Units = 500
			Expect(portfolio.Validate(input)).To(MatchError(portfolio.ErrDateOnWeekend))
		})
	})

	Context("when selling", func() {
		BeforeEach(func() {
			input.Transaction.Type = portfolio.SellTransaction
		})

		It("accepts selling every held unit", func() {
			input.Transaction.Units = 3
			Expect(portfolio.Validate(input)).To(Succeed())
		})

		It("rejects selling 5 units of MSFT when 3 are held", func() {
			input.Transaction.Units = 5
			before := len(input.Log)
			Expect(portfolio.Validate(input)).To(MatchError(portfolio.ErrInsufficientUnits))
			Expect(input.Log).To(HaveLen(before))
		})

		It("rejects selling a symbol that is not held", func() {
			input.Transaction.Symbol = "AAPL"
			input.Quote = &data.Quote{Symbol: "AAPL", Price: 160}
			Expect(portfolio.Validate(input)).To(MatchError(portfolio.ErrInsufficientUnits))
		})

		It("accounts for earlier sells", func() {
			input.Log = append(input.Log, sell("MSFT", "2022-02-01", 2, 310))
			input.Transaction.Units = 2
			Expect(portfolio.Validate(input)).To(MatchError(portfolio.ErrInsufficientUnits))
		})

		It("rejects a sell dated before the buy it depends on", func() {
			input.Log = []*portfolio.Transaction{buy("MSFT", "2022-06-13", 3, 300)}
			input.Transaction.Units = 3
			input.Transaction.Date = "2022-06-10"
			Expect(portfolio.Validate(input)).To(MatchError(portfolio.ErrInsufficientUnits))
		})

		It("rejects a backdated sell that leaves a later sell uncovered", func() {
			input.Log = append(input.Log, sell("MSFT", "2022-06-16", 3, 260))
			input.Transaction.Units = 2
			Expect(portfolio.Validate(input)).To(MatchError(portfolio.ErrInsufficientUnits))

			Expect(portfolio.CheckLog(input.Log)).To(Succeed())
		})

		It("counts buys made on the same day", func() {
			input.Log = append(input.Log, buy("MSFT", "2022-06-15", 2, 250))
			input.Transaction.Units = 5
			Expect(portfolio.Validate(input)).To(Succeed())
		})
	})

	Context("with cash accounting", func() {
		BeforeEach(func() {
			input.User.Settings.CashAccounting = true
			input.User.CashLedger = []portfolio.CashDeposit{
				{Date: "2022-01-01", Amount: 400},
				{Date: "2022-03-01", Amount: 100},
			}
		})

		It("accepts a buy the deposits cover", func() {
			input.Transaction.Units = 2
			Expect(portfolio.Validate(input)).To(Succeed())
		})

		It("rejects a buy that costs more than the deposits", func() {
			input.Transaction.Units = 3
			Expect(portfolio.Validate(input)).To(MatchError(portfolio.ErrInsufficientCash))
		})

		It("uses the custom total value when supplied", func() {
			input.Transaction.Units = 3
			input.Transaction.CustomTotalValue = floatPtr(450)
			Expect(portfolio.Validate(input)).To(Succeed())
		})

		It("ignores cash when accounting is off", func() {
			input.User.Settings.CashAccounting = false
			input.Transaction.Units = 30
			Expect(portfolio.Validate(input)).To(Succeed())
		})
	})
})
