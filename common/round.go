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

package common

import (
	"math"

	"github.com/shopspring/decimal"
)

// Precision used when values are persisted. Every component rounds through
// the helpers below instead of choosing its own precision.
const (
	// MoneyPrecision applies to currency amounts (prices, balances, fees)
	MoneyPrecision = 2

	// PercentPrecision applies to growth ratios shown to users (0.0534 = 5.34%)
	PercentPrecision = 4

	// RatioPrecision applies to weights and risk statistics
	RatioPrecision = 6
)

// RoundMoney rounds a currency amount to MoneyPrecision decimals
func RoundMoney(v float64) float64 {
	return roundTo(v, MoneyPrecision)
}

// RoundPercent rounds a fractional growth ratio to PercentPrecision decimals
func RoundPercent(v float64) float64 {
	return roundTo(v, PercentPrecision)
}

// RoundRatio rounds a weight or statistic to RatioPrecision decimals
func RoundRatio(v float64) float64 {
	return roundTo(v, RatioPrecision)
}

// DivideMoney returns total / units rounded to MoneyPrecision. Division is
// carried out in decimal arithmetic so values like 1000/3 round the same
// way on every platform. A zero divisor yields 0.
func DivideMoney(total, units float64) float64 {
	if units == 0 || !finite(total) || !finite(units) {
		return 0
	}
	q := decimal.NewFromFloat(total).DivRound(decimal.NewFromFloat(units), MoneyPrecision+4)
	f, _ := q.Round(MoneyPrecision).Float64()
	return f
}

// RelativeGrowth is (newVal - oldVal) / |oldVal| and 0 when oldVal is 0
func RelativeGrowth(newVal, oldVal float64) float64 {
	if oldVal == 0 {
		return 0
	}
	return (newVal - oldVal) / math.Abs(oldVal)
}

func roundTo(v float64, places int32) float64 {
	if !finite(v) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
