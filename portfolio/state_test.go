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

var _ = Describe("State", func() {
	var (
		nyc   *time.Location
		now   time.Time
		input *portfolio.StateInput
	)

	BeforeEach(func() {
		var err error
		nyc, err = time.LoadLocation("America/New_York")
		Expect(err).To(BeNil())
		now = time.Date(2022, 6, 17, 18, 0, 0, 0, nyc)

		input = &portfolio.StateInput{
			Log: []*portfolio.Transaction{
				buy("AAPL", "2022-06-01", 5, 150),
			},
			Quotes: map[string]*data.Quote{
				"AAPL": {Symbol: "AAPL", Price: 160},
			},
			Now:      now,
			Location: nyc,
		}
	})

	Context("with no starting cash and a 5 unit AAPL position", func() {
		var state *portfolio.PortfolioState

		BeforeEach(func() {
			state = portfolio.AggregateState(input)
		})

		It("values the position at the quote", func() {
			Expect(state.Invested).To(Equal(750.0))
			Expect(state.HoldingsBalance).To(Equal(800.0))
			Expect(state.Balance).To(Equal(800.0))
			Expect(state.CashOnHand).To(Equal(0.0))
		})

		It("reports the gain", func() {
			Expect(state.TotalGainsValue).To(Equal(50.0))
			Expect(state.TotalGainsPercentage).Should(BeNumerically("~", 0.0667, 1e-4))
		})

		It("summarizes the log", func() {
			Expect(state.Date).To(Equal("2022-06-17"))
			Expect(state.BuyCount).To(Equal(1))
			Expect(state.SellCount).To(Equal(0))
			Expect(state.FirstTransactionDate).To(Equal("2022-06-01"))
			Expect(state.LastTransactionDate).To(Equal("2022-06-01"))
		})

		It("describes each holding", func() {
			Expect(state.Holdings).To(HaveLen(1))
			h := state.Holdings[0]
			Expect(h.BreakEvenPrice).To(Equal(150.0))
			Expect(h.Weight).To(Equal(1.0))
			Expect(h.MarketValue).To(Equal(800.0))
		})
	})

	It("is idempotent", func() {
		input.Log = append(input.Log, buy("MSFT", "2022-06-02", 3, 255.55), sell("AAPL", "2022-06-10", 1, 155))
		input.Quotes["MSFT"] = &data.Quote{Symbol: "MSFT", Price: 247.65}
		first := portfolio.AggregateState(input)
		second := portfolio.AggregateState(input)
		Expect(second).To(Equal(first))
	})

	It("weights holdings by invested cost", func() {
		input.Log = append(input.Log, buy("MSFT", "2022-06-02", 1, 250))
		input.Quotes["MSFT"] = &data.Quote{Symbol: "MSFT", Price: 250}
		state := portfolio.AggregateState(input)
		Expect(state.Holdings).To(HaveLen(2))
		Expect(state.Holdings[0].Weight).To(Equal(0.75))
		Expect(state.Holdings[1].Weight).To(Equal(0.25))
	})

	It("skips holdings without a quote but keeps their cost invested", func() {
		input.Log = append(input.Log, buy("GONE", "2022-06-02", 1, 250))
		state := portfolio.AggregateState(input)
		Expect(state.Holdings).To(HaveLen(1))
		Expect(state.Invested).To(Equal(1000.0))
		Expect(state.HoldingsBalance).To(Equal(800.0))
	})

	It("deducts fees from the holdings balance", func() {
		input.Log[0].Fees = 7.5
		state := portfolio.AggregateState(input)
		Expect(state.TransactionFees).To(Equal(7.5))
		Expect(state.HoldingsBalance).To(Equal(792.5))
		Expect(state.TotalGainsValue).To(Equal(42.5))
	})

	Context("with starting cash", func() {
		It("tracks the cash left after buying", func() {
			input.StartingCash = 10000
			state := portfolio.AggregateState(input)
			Expect(state.CashOnHand).To(Equal(9250.0))
			Expect(state.Balance).To(Equal(10050.0))
			Expect(state.TotalGainsValue).To(Equal(50.0))
			Expect(state.TotalGainsPercentage).To(Equal(0.005))
		})
	})

	Context("with a previous snapshot", func() {
		It("reports the change since yesterday", func() {
			input.Previous = &portfolio.PortfolioState{Date: "2022-06-16", Balance: 780}
			state := portfolio.AggregateState(input)
			Expect(state.PreviousBalance).To(Equal(780.0))
			Expect(state.PreviousBalanceChange).To(Equal(20.0))
			Expect(state.PreviousBalanceChangePercentage).To(Equal(0.0256))
		})

		It("ignores a snapshot older than yesterday", func() {
			input.Previous = &portfolio.PortfolioState{Date: "2022-06-14", Balance: 780}
			state := portfolio.AggregateState(input)
			Expect(state.PreviousBalanceChange).To(Equal(0.0))
			Expect(state.PreviousBalanceChangePercentage).To(Equal(0.0))
		})

		It("keeps yesterday's baseline when recomputed twice in a day", func() {
			input.Previous = &portfolio.PortfolioState{Date: "2022-06-16", Balance: 780}
			first := portfolio.AggregateState(input)
			input.Previous = first
			input.Quotes["AAPL"].Price = 170
			second := portfolio.AggregateState(input)
			Expect(second.PreviousBalance).To(Equal(780.0))
			Expect(second.PreviousBalanceChange).To(Equal(70.0))
		})

		It("treats yesterday in the configured timezone", func() {
			// 01:00 UTC on the 18th is still the 17th in New York
			input.Now = time.Date(2022, 6, 18, 1, 0, 0, 0, time.UTC)
			input.Previous = &portfolio.PortfolioState{Date: "2022-06-16", Balance: 780}
			state := portfolio.AggregateState(input)
			Expect(state.Date).To(Equal("2022-06-17"))
			Expect(state.PreviousBalanceChange).To(Equal(20.0))
		})
	})
})
