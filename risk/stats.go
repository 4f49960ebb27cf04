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
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// TradingDays is the number of trading days used to de-annualize rates
const TradingDays = 252

var (
	ErrNotEnoughData       = errors.New("not enough observations")
	ErrDegenerateVariance  = errors.New("benchmark variance is zero")
	ErrWeightsMismatch     = errors.New("number of weights does not match number of series")
	ErrNonFiniteStatistics = errors.New("statistic is not finite")
)

// Align trims both series to their common trailing window. Both series are
// assumed to end on the same day.
func Align(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return a[len(a)-n:], b[len(b)-n:]
}

// Beta is cov(benchmark, symbol) / var(benchmark) over the aligned window
func Beta(benchmark, symbol []float64) (float64, error) {
	x, y := Align(benchmark, symbol)
	if len(x) < 2 {
		return 0, ErrNotEnoughData
	}
	variance := stat.Variance(x, nil)
	if variance == 0 || math.IsNaN(variance) {
		return 0, ErrDegenerateVariance
	}
	beta := stat.Covariance(x, y, nil) / variance
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0, ErrNonFiniteStatistics
	}
	return beta, nil
}

// AlignedReturns returns the total return of each close series over their
// common trailing window, so both cover the same days
func AlignedReturns(benchmarkCloses, symbolCloses []float64) (float64, float64) {
	x, y := Align(benchmarkCloses, symbolCloses)
	return windowReturn(x), windowReturn(y)
}

func windowReturn(closes []float64) float64 {
	if len(closes) < 2 || closes[0] == 0 {
		return 0
	}
	return closes[len(closes)-1]/closes[0] - 1
}

// Alpha is the return in excess of what beta predicts (Jensen's alpha).
// All rates are fractional.
func Alpha(symbolYearReturn, benchmarkYearReturn, riskFreeRate, beta float64) float64 {
	return symbolYearReturn - riskFreeRate - beta*(benchmarkYearReturn-riskFreeRate)
}

// DailyRiskFreeRate converts an annual fractional rate to its daily
// equivalent over TradingDays
func DailyRiskFreeRate(riskFreeRate float64) float64 {
	return math.Pow(1+riskFreeRate, 1.0/TradingDays) - 1
}

// Sharpe returns the daily Sharpe ratio of the series or nil when it is
// undefined (fewer than two closes or no dispersion)
func Sharpe(closes, returns []float64, riskFreeRate float64) *float64 {
	if len(closes) < 2 || len(returns) < 2 {
		return nil
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return nil
	}
	sharpe := (mean - DailyRiskFreeRate(riskFreeRate)) / std
	if math.IsNaN(sharpe) || math.IsInf(sharpe, 0) {
		return nil
	}
	return &sharpe
}

// CovarianceMatrix builds the symmetric matrix of pairwise covariances.
// Each pair is aligned independently so series of different lengths can
// be combined; the diagonal holds each series' variance.
func CovarianceMatrix(series [][]float64) *mat.SymDense {
	n := len(series)
	cov := mat.NewSymDense(n, nil)
	for ii := 0; ii < n; ii++ {
		for jj := ii; jj < n; jj++ {
			var v float64
			if ii == jj {
				if len(series[ii]) >= 2 {
					v = stat.Variance(series[ii], nil)
				}
			} else {
				x, y := Align(series[ii], series[jj])
				if len(x) >= 2 {
					v = stat.Covariance(x, y, nil)
				}
			}
			cov.SetSym(ii, jj, v)
		}
	}
	return cov
}

// Volatility is sqrt(wᵀ Σ w) for the weights w and covariance matrix Σ
func Volatility(weights []float64, cov *mat.SymDense) (float64, error) {
	if cov.SymmetricDim() != len(weights) {
		return 0, ErrWeightsMismatch
	}
	if len(weights) == 0 {
		return 0, nil
	}
	w := mat.NewVecDense(len(weights), weights)
	variance := mat.Inner(w, cov, w)
	if math.IsNaN(variance) || math.IsInf(variance, 0) {
		return 0, ErrNonFiniteStatistics
	}
	if variance < 0 {
		// rounding residue on a singular matrix
		variance = 0
	}
	return math.Sqrt(variance), nil
}
