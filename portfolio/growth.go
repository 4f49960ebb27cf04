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
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-tracker/calendar"
	"github.com/penny-vault/pv-tracker/common"
	"github.com/penny-vault/pv-tracker/data"
)

// PortfolioSymbol is the symbol MergeGrowth assigns to the combined curve
const PortfolioSymbol = "$PORTFOLIO"

// dayChange is the net unit change of every transaction on one day
type dayChange struct {
	date      string
	units     float64
	unitPrice float64
}

// mergeByDay collapses same-day transactions into one net change so the
// reconstruction applies every transaction of a day at once
func mergeByDay(transactions []*Transaction) []dayChange {
	changes := make([]dayChange, 0, len(transactions))
	for _, t := range transactions {
		delta := t.Units
		if t.Type == SellTransaction {
			delta = -t.Units
		}
		if n := len(changes); n > 0 && changes[n-1].date == t.Date {
			changes[n-1].units += delta
			continue
		}
		changes = append(changes, dayChange{date: t.Date, units: delta, unitPrice: t.UnitPrice})
	}
	return changes
}

// ReconstructGrowth builds the daily valuation of one symbol from its first
// transaction through yesterday (or the last transaction when that is
// later). Units step on the day of each transaction. Days without a close
// (weekends, holidays, gaps in the provider data) are valued at the most
// recent close; days before the first close use the first unit price.
func ReconstructGrowth(txLog []*Transaction, symbol string, prices []data.PricePoint, yesterday string) ([]*GrowthPoint, error) {
	symbol = common.NormalizeSymbol(symbol)
	changes := mergeByDay(TransactionsFor(txLog, symbol))
	if len(changes) == 0 {
		return []*GrowthPoint{}, nil
	}

	first := changes[0].date
	last := changes[len(changes)-1].date
	days, err := calendar.Days(first, calendar.MaxDay(yesterday, last))
	if err != nil {
		return nil, err
	}

	sortedPrices := make([]data.PricePoint, len(prices))
	copy(sortedPrices, prices)
	sort.SliceStable(sortedPrices, func(i, j int) bool { return sortedPrices[i].Date < sortedPrices[j].Date })

	price := changes[0].unitPrice
	priceIdx := 0
	// closes before the first transaction seed the carried-forward price
	for priceIdx < len(sortedPrices) && sortedPrices[priceIdx].Date <= first {
		price = sortedPrices[priceIdx].Close
		priceIdx++
	}

	points := make([]*GrowthPoint, 0, len(days))
	units := 0.0
	cursor := 0
	for _, day := range days {
		for priceIdx < len(sortedPrices) && sortedPrices[priceIdx].Date <= day {
			price = sortedPrices[priceIdx].Close
			priceIdx++
		}

		if cursor < len(changes) && changes[cursor].date == day {
			units += changes[cursor].units
			if units <= unitTolerance {
				units = 0
			}
			cursor++
		}

		points = append(points, &GrowthPoint{
			Symbol:      symbol,
			Date:        day,
			Price:       price,
			Units:       units,
			MarketValue: common.RoundMoney(units * price),
		})
	}

	if cursor != len(changes) {
		log.Error().Str("Symbol", symbol).Int("Missed", len(changes)-cursor).Msg("growth reconstruction did not visit every transaction day")
	}

	return points, nil
}

// MergeGrowth sums per-symbol curves into one portfolio curve keyed by day.
// Each series must be ordered by date. A series contributes nothing before
// its first day and holds its last value on days after it ends, so curves
// ending on different days do not drop out of the total.
func MergeGrowth(series ...[]*GrowthPoint) []*GrowthPoint {
	seen := make(map[string]bool)
	days := make([]string, 0)
	for _, s := range series {
		for _, p := range s {
			if !seen[p.Date] {
				seen[p.Date] = true
				days = append(days, p.Date)
			}
		}
	}
	sort.Strings(days)

	cursors := make([]int, len(series))
	values := make([]float64, len(series))
	merged := make([]*GrowthPoint, 0, len(days))
	for _, day := range days {
		total := 0.0
		for ii, s := range series {
			for cursors[ii] < len(s) && s[cursors[ii]].Date <= day {
				values[ii] = s[cursors[ii]].MarketValue
				cursors[ii]++
			}
			total += values[ii]
		}
		merged = append(merged, &GrowthPoint{
			Symbol:      PortfolioSymbol,
			Date:        day,
			MarketValue: common.RoundMoney(total),
		})
	}

	return merged
}
