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

package risk

import (
	"github.com/penny-vault/pv-tracker/data"
)

// SymbolReturns is the return series of one symbol derived from its daily
// closes
type SymbolReturns struct {
	Symbol             string    `json:"symbol"`
	DailyCloses        []float64 `json:"dailyCloses"`
	DailyReturns       []float64 `json:"dailyReturns"`
	TrailingYearReturn float64   `json:"trailingYearReturn"`
}

// NewSymbolReturns computes day-over-day returns from closes sorted by date.
// Non-positive closes are dropped since no return can be derived from them.
func NewSymbolReturns(symbol string, points []data.PricePoint) *SymbolReturns {
	closes := make([]float64, 0, len(points))
	for _, pp := range points {
		if v := pp.Value(); v > 0 {
			closes = append(closes, v)
		}
	}

	r := &SymbolReturns{
		Symbol:       symbol,
		DailyCloses:  closes,
		DailyReturns: make([]float64, 0, len(closes)),
	}

	for ii := 1; ii < len(closes); ii++ {
		r.DailyReturns = append(r.DailyReturns, closes[ii]/closes[ii-1]-1)
	}

	if len(closes) >= 2 {
		r.TrailingYearReturn = closes[len(closes)-1]/closes[0] - 1
	}

	return r
}
