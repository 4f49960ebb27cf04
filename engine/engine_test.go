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

package engine_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-tracker/data"
	"github.com/penny-vault/pv-tracker/engine"
	"github.com/penny-vault/pv-tracker/portfolio"
	"github.com/penny-vault/pv-tracker/store"
)

type recordingFeed struct {
	mu  sync.Mutex
	err error
	got []*portfolio.Transaction
}

func (f *recordingFeed) PublishTransaction(ctx context.Context, t *portfolio.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, t)
	return f.err
}

// tradingDays returns closes for every weekday from begin through end;
// close(i) is called with the index of the trading day
func tradingDays(begin, end string, close func(int) float64) []data.PricePoint {
	from, _ := time.Parse("2006-01-02", begin)
	to, _ := time.Parse("2006-01-02", end)
	points := make([]data.PricePoint, 0)
	ii := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		points = append(points, data.PricePoint{Date: day.Format("2006-01-02"), Close: close(ii)})
		ii++
	}
	return points
}

func input(userID string, typ portfolio.TransactionType, symbol, date string, units float64) portfolio.TransactionInput {
	return portfolio.TransactionInput{
		UserID:     userID,
		Symbol:     symbol,
		SymbolType: portfolio.StockSymbol,
		Units:      units,
		Date:       date,
		Type:       typ,
	}
}

var _ = Describe("Engine", func() {
	var (
		ctx      context.Context
		db       *store.Memory
		provider *data.MemoryProvider
		feed     *recordingFeed
		eng      *engine.Engine
		now      time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		// Friday afternoon
		now = time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }

		db = store.NewMemory()
		db.PutUser(&portfolio.User{ID: "user-1"})

		provider = data.NewMemoryProvider()
		provider.SetClock(clock)
		provider.SetQuote("AAPL", 150, 149)
		provider.SetQuote("MSFT", 400, 398)
		provider.SetQuote("SPY", 500, 499)
		provider.SetRiskFreeRate(5, nil)

		spy := tradingDays("2024-01-02", "2024-03-14", func(ii int) float64 { return 470 + float64(ii%5)*2 + float64(ii)*0.5 })
		provider.SetHistory("SPY", spy)
		aapl := make([]data.PricePoint, len(spy))
		for ii, pp := range spy {
			aapl[ii] = data.PricePoint{Date: pp.Date, Close: pp.Close * 0.3}
		}
		provider.SetHistory("AAPL", aapl)

		feed = &recordingFeed{}
		eng = engine.New(db, provider,
			engine.WithClock(clock),
			engine.WithLocation(time.UTC),
			engine.WithFeed(feed),
			engine.WithFeeRate(1),
		)
	})

	Describe("ValidateAndExecuteTransaction", func() {
		It("records a BUY priced at the live quote", func() {
			t, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "aapl", "2024-03-12", 5))
			Expect(err).To(BeNil())
			Expect(t.ID).NotTo(BeEmpty())
			Expect(t.Symbol).To(Equal("AAPL"))
			Expect(t.UnitPrice).To(Equal(150.0))
			Expect(t.RealizedReturnValue).To(Equal(0.0))
			Expect(t.Fees).To(Equal(0.0))

			txLog, err := db.GetTransactionLog(ctx, "user-1")
			Expect(err).To(BeNil())
			Expect(txLog).To(HaveLen(1))
			Expect(txLog[0].ID).To(Equal(t.ID))
		})

		It("publishes the transaction to the community feed", func() {
			t, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-12", 5))
			Expect(err).To(BeNil())
			Expect(feed.got).To(HaveLen(1))
			Expect(feed.got[0].ID).To(Equal(t.ID))
		})

		It("keeps the transaction when the feed is down", func() {
			feed.err = errors.New("nats unavailable")
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-12", 5))
			Expect(err).To(BeNil())

			txLog, _ := db.GetTransactionLog(ctx, "user-1")
			Expect(txLog).To(HaveLen(1))
		})

		It("refreshes the stored portfolio state", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-12", 5))
			Expect(err).To(BeNil())

			u, err := db.GetUser(ctx, "user-1")
			Expect(err).To(BeNil())
			Expect(u.State).NotTo(BeNil())
			Expect(u.State.Invested).To(Equal(750.0))
			Expect(u.State.BuyCount).To(Equal(1))
		})

		It("charges the configured fee rate when the user enables fees", func() {
			db.PutUser(&portfolio.User{ID: "user-1", Settings: portfolio.Settings{TransactionFeesActive: true}})
			provider.SetQuote("MSFT", 100, 100)

			t, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "MSFT", "2024-03-12", 10))
			Expect(err).To(BeNil())
			Expect(t.UnitPrice).To(Equal(100.0))
			Expect(t.Fees).To(Equal(10.0))
			Expect(t.RealizedReturnValue).To(Equal(0.0))
		})

		It("prices the trade from a custom total", func() {
			in := input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-12", 3)
			total := 100.0
			in.CustomTotalValue = &total

			t, err := eng.ValidateAndExecuteTransaction(ctx, in)
			Expect(err).To(BeNil())
			Expect(t.UnitPrice).To(Equal(33.33))
		})

		It("computes the realized return of a SELL", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-11", 4))
			Expect(err).To(BeNil())

			provider.SetQuote("AAPL", 165, 150)
			t, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.SellTransaction, "AAPL", "2024-03-13", 2))
			Expect(err).To(BeNil())
			Expect(t.RealizedReturnValue).To(Equal(30.0))
			Expect(t.RealizedReturnChange).To(BeNumerically("~", 0.1, 1e-9))
		})

		It("rejects a SELL of more units than held without touching the log", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "MSFT", "2024-03-11", 3))
			Expect(err).To(BeNil())

			_, err = eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.SellTransaction, "MSFT", "2024-03-12", 5))
			Expect(err).To(MatchError(portfolio.ErrInsufficientUnits))

			txLog, _ := db.GetTransactionLog(ctx, "user-1")
			Expect(txLog).To(HaveLen(1))
			Expect(feed.got).To(HaveLen(1))
		})

		It("rejects a transaction dated on a Saturday", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-09", 1))
			Expect(err).To(MatchError(portfolio.ErrDateOnWeekend))

			txLog, _ := db.GetTransactionLog(ctx, "user-1")
			Expect(txLog).To(BeEmpty())
		})

		It("rejects a symbol without a quote", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "NOPE", "2024-03-12", 1))
			Expect(err).To(MatchError(portfolio.ErrSymbolNotFound))
		})

		It("rejects a BUY that exceeds the deposited cash", func() {
			db.PutUser(&portfolio.User{
				ID:         "user-1",
				Settings:   portfolio.Settings{CashAccounting: true},
				CashLedger: []portfolio.CashDeposit{{Date: "2024-01-02", Amount: 500}},
			})
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-12", 4))
			Expect(err).To(MatchError(portfolio.ErrInsufficientCash))
		})

		It("fails for an unknown user", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-2", portfolio.BuyTransaction, "AAPL", "2024-03-12", 1))
			Expect(err).To(MatchError(portfolio.ErrUserNotFound))
		})

		It("returns provider errors other than an unknown symbol", func() {
			outage := errors.New("provider down")
			provider.SetFailure("AAPL", outage)
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-12", 1))
			Expect(err).To(MatchError(outage))
		})
	})

	Describe("DeleteTransaction", func() {
		var first, second *portfolio.Transaction

		BeforeEach(func() {
			var err error
			first, err = eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "MSFT", "2024-03-11", 3))
			Expect(err).To(BeNil())
			second, err = eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.SellTransaction, "MSFT", "2024-03-12", 2))
			Expect(err).To(BeNil())
		})

		It("refuses to delete a BUY a later SELL depends on", func() {
			_, err := eng.DeleteTransaction(ctx, "user-1", first.ID)
			Expect(err).To(MatchError(portfolio.ErrInsufficientUnits))

			txLog, _ := db.GetTransactionLog(ctx, "user-1")
			Expect(txLog).To(HaveLen(2))
		})

		It("removes the transaction and recomputes the state", func() {
			removed, err := eng.DeleteTransaction(ctx, "user-1", second.ID)
			Expect(err).To(BeNil())
			Expect(removed.ID).To(Equal(second.ID))

			u, _ := db.GetUser(ctx, "user-1")
			Expect(u.State.SellCount).To(Equal(0))
			Expect(u.State.Holdings).To(HaveLen(1))
			Expect(u.State.Holdings[0].Units).To(Equal(3.0))
		})

		It("reports an unknown transaction", func() {
			_, err := eng.DeleteTransaction(ctx, "user-1", "missing")
			Expect(err).To(MatchError(portfolio.ErrTransactionNotFound))
		})

		It("reports a user without history", func() {
			db.PutUser(&portfolio.User{ID: "user-2"})
			_, err := eng.DeleteTransaction(ctx, "user-2", first.ID)
			Expect(err).To(MatchError(portfolio.ErrTransactionHistoryNotFound))
		})
	})

	Describe("RecomputePortfolioState", func() {
		It("values holdings at the latest quote", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-12", 5))
			Expect(err).To(BeNil())

			provider.SetQuote("AAPL", 160, 150)
			state, err := eng.RecomputePortfolioState(ctx, "user-1")
			Expect(err).To(BeNil())
			Expect(state.Invested).To(Equal(750.0))
			Expect(state.HoldingsBalance).To(Equal(800.0))
			Expect(state.TotalGainsValue).To(Equal(50.0))
			Expect(state.TotalGainsPercentage).To(BeNumerically("~", 0.0667, 1e-4))
		})

		It("skips held symbols whose quote fails", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-12", 5))
			Expect(err).To(BeNil())
			_, err = eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "MSFT", "2024-03-12", 1))
			Expect(err).To(BeNil())

			provider.SetFailure("MSFT", errors.New("timeout"))
			state, err := eng.RecomputePortfolioState(ctx, "user-1")
			Expect(err).To(BeNil())
			Expect(state.Holdings).To(HaveLen(1))
			Expect(state.Holdings[0].Symbol).To(Equal("AAPL"))
			Expect(state.Invested).To(Equal(1150.0))
		})

		It("is idempotent", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-12", 5))
			Expect(err).To(BeNil())

			a, err := eng.RecomputePortfolioState(ctx, "user-1")
			Expect(err).To(BeNil())
			b, err := eng.RecomputePortfolioState(ctx, "user-1")
			Expect(err).To(BeNil())
			Expect(b).To(Equal(a))
		})
	})

	Describe("RecomputePortfolioRisk", func() {
		It("stores the risk of a portfolio that tracks the benchmark", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-12", 5))
			Expect(err).To(BeNil())

			res, err := eng.RecomputePortfolioRisk(ctx, "user-1")
			Expect(err).To(BeNil())
			Expect(res.Degraded).To(BeFalse())
			Expect(res.Beta).To(BeNumerically("~", 1.0, 1e-4))
			Expect(res.Volatility).To(BeNumerically(">", 0))

			u, _ := db.GetUser(ctx, "user-1")
			Expect(u.Risk).NotTo(BeNil())
			Expect(u.Risk.Beta).To(Equal(res.Beta))
		})

		It("stores a degraded result when the benchmark is unavailable", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-12", 5))
			Expect(err).To(BeNil())
			provider.SetFailure("SPY", errors.New("provider down"))

			res, err := eng.RecomputePortfolioRisk(ctx, "user-1")
			Expect(err).To(BeNil())
			Expect(res.Degraded).To(BeTrue())
			Expect(res.Beta).To(Equal(0.0))
			Expect(res.Volatility).To(Equal(0.0))
		})
	})

	Describe("Recompute", func() {
		It("saves state and risk together", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-12", 5))
			Expect(err).To(BeNil())

			state, res, err := eng.Recompute(ctx, "user-1")
			Expect(err).To(BeNil())

			u, _ := db.GetUser(ctx, "user-1")
			Expect(u.State).To(Equal(state))
			Expect(u.Risk).To(Equal(res))
		})

		It("updates every user", func() {
			db.PutUser(&portfolio.User{ID: "user-2"})
			updated, failed, err := eng.RecomputeAll(ctx)
			Expect(err).To(BeNil())
			Expect(updated).To(Equal(2))
			Expect(failed).To(BeEmpty())
		})
	})

	Describe("ReconstructGrowth", func() {
		BeforeEach(func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "AAPL", "2024-03-04", 5))
			Expect(err).To(BeNil())
			_, err = eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.SellTransaction, "AAPL", "2024-03-07", 2))
			Expect(err).To(BeNil())
		})

		It("ends with the units currently held", func() {
			points, err := eng.ReconstructGrowth(ctx, "user-1", "aapl")
			Expect(err).To(BeNil())
			Expect(points).NotTo(BeEmpty())
			Expect(points[0].Date).To(Equal("2024-03-04"))
			Expect(points[len(points)-1].Date).To(Equal("2024-03-14"))
			Expect(points[len(points)-1].Units).To(Equal(3.0))

			for ii := 1; ii < len(points); ii++ {
				Expect(points[ii].Date > points[ii-1].Date).To(BeTrue())
			}
		})

		It("appends the combined curve when no symbol is given", func() {
			points, err := eng.ReconstructGrowth(ctx, "user-1", "")
			Expect(err).To(BeNil())

			combined := 0
			for _, p := range points {
				if p.Symbol == portfolio.PortfolioSymbol {
					combined++
				}
			}
			Expect(combined).To(Equal(11))
		})

		It("ends every curve on the same day when a trade is dated today", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "SPY", "2024-03-15", 1))
			Expect(err).To(BeNil())

			points, err := eng.ReconstructGrowth(ctx, "user-1", "")
			Expect(err).To(BeNil())

			last := make(map[string]*portfolio.GrowthPoint)
			combined := 0
			for _, p := range points {
				last[p.Symbol] = p
				if p.Symbol == portfolio.PortfolioSymbol {
					combined++
				}
			}
			Expect(combined).To(Equal(12))
			Expect(last["AAPL"].Date).To(Equal("2024-03-15"))
			Expect(last["SPY"].Date).To(Equal("2024-03-15"))
			Expect(last[portfolio.PortfolioSymbol].Date).To(Equal("2024-03-15"))
			Expect(last[portfolio.PortfolioSymbol].MarketValue).To(BeNumerically("~", last["AAPL"].MarketValue+last["SPY"].MarketValue, 0.01))
		})

		It("leaves out symbols without price history", func() {
			_, err := eng.ValidateAndExecuteTransaction(ctx, input("user-1", portfolio.BuyTransaction, "MSFT", "2024-03-05", 1))
			Expect(err).To(BeNil())

			points, err := eng.ReconstructGrowth(ctx, "user-1", "")
			Expect(err).To(BeNil())
			for _, p := range points {
				Expect(p.Symbol).NotTo(Equal("MSFT"))
			}
		})

		It("requires a transaction history", func() {
			db.PutUser(&portfolio.User{ID: "user-2"})
			_, err := eng.ReconstructGrowth(ctx, "user-2", "")
			Expect(err).To(MatchError(portfolio.ErrTransactionHistoryNotFound))
		})
	})
})
