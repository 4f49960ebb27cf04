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

package portfolio

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-tracker/calendar"
	"github.com/penny-vault/pv-tracker/common"
	"github.com/penny-vault/pv-tracker/data"
)

// StateInput collects the inputs of AggregateState
type StateInput struct {
	Previous *PortfolioState
	Log      []*Transaction

	// Holdings defaults to AggregateHoldings(Log) when nil
	Holdings []*Holding

	// Quotes keyed by normalized symbol; held symbols without a quote are
	// left out of the valuation
	Quotes       map[string]*data.Quote
	StartingCash float64

	Now      time.Time
	Location *time.Location
}

// AggregateState computes the portfolio snapshot. It is a pure function of
// its input: calling it twice with the same input returns equal snapshots.
func AggregateState(in *StateInput) *PortfolioState {
	loc := in.Location
	if loc == nil {
		loc = in.Now.Location()
	}

	holdings := in.Holdings
	if holdings == nil {
		holdings = AggregateHoldings(in.Log)
	}

	state := &PortfolioState{
		Date:         calendar.Today(in.Now, loc),
		StartingCash: common.RoundMoney(in.StartingCash),
		Holdings:     make([]*HoldingState, 0, len(holdings)),
	}

	fees := 0.0
	sorted := SortTransactions(in.Log)
	for _, t := range sorted {
		fees += t.Fees
		switch t.Type {
		case BuyTransaction:
			state.BuyCount++
		case SellTransaction:
			state.SellCount++
		}
	}
	if len(sorted) > 0 {
		state.FirstTransactionDate = sorted[0].Date
		state.LastTransactionDate = sorted[len(sorted)-1].Date
	}

	invested := 0.0
	for _, h := range holdings {
		invested += h.InvestedCost
	}

	marketValue := 0.0
	for _, h := range holdings {
		quote, ok := in.Quotes[common.NormalizeSymbol(h.Symbol)]
		if !ok || quote == nil {
			log.Warn().Str("Symbol", h.Symbol).Float64("Units", h.Units).Msg("no quote for held symbol; excluded from portfolio state")
			continue
		}

		weight := 0.0
		if invested != 0 {
			weight = h.InvestedCost / invested
		}

		value := quote.Price * h.Units
		marketValue += value

		state.Holdings = append(state.Holdings, &HoldingState{
			Symbol:         h.Symbol,
			Units:          h.Units,
			InvestedCost:   common.RoundMoney(h.InvestedCost),
			BreakEvenPrice: common.RoundMoney(h.BreakEvenPrice()),
			Weight:         common.RoundRatio(weight),
			Price:          quote.Price,
			MarketValue:    common.RoundMoney(value),
		})
	}

	holdingsBalance := marketValue - fees

	cashOnHand := 0.0
	if in.StartingCash != 0 {
		cashOnHand = in.StartingCash - invested - fees
	}

	balance := holdingsBalance + cashOnHand

	var gains float64
	if in.StartingCash != 0 {
		gains = balance - in.StartingCash
	} else {
		gains = holdingsBalance - invested
	}

	state.TransactionFees = common.RoundMoney(fees)
	state.Invested = common.RoundMoney(invested)
	state.HoldingsBalance = common.RoundMoney(holdingsBalance)
	state.CashOnHand = common.RoundMoney(cashOnHand)
	state.Balance = common.RoundMoney(balance)
	state.TotalGainsValue = common.RoundMoney(gains)
	state.TotalGainsPercentage = common.RoundPercent(common.RelativeGrowth(balance, invested+cashOnHand))

	applyPreviousDelta(state, in.Previous, in.Now, loc)

	return state
}

// applyPreviousDelta fills the day-over-day change. The baseline is the
// snapshot taken yesterday. A snapshot already taken today is replaced, so
// its own baseline is carried forward when that baseline is yesterday's.
func applyPreviousDelta(state, previous *PortfolioState, now time.Time, loc *time.Location) {
	if previous == nil {
		return
	}

	yesterday := calendar.Yesterday(now, loc)

	var baseline float64
	switch {
	case previous.Date == yesterday:
		baseline = previous.Balance
	case previous.Date == state.Date && previous.PreviousDate == yesterday:
		baseline = previous.PreviousBalance
	default:
		return
	}

	state.PreviousDate = yesterday
	state.PreviousBalance = common.RoundMoney(baseline)
	state.PreviousBalanceChange = common.RoundMoney(state.Balance - baseline)
	state.PreviousBalanceChangePercentage = common.RoundPercent(common.RelativeGrowth(state.Balance, baseline))
}
