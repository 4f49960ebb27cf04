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

package data

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/penny-vault/pv-tracker/common"
)

// MemoryProvider is a Provider backed by in-process maps. It serves
// fixtures to tests and replays captured market data offline.
type MemoryProvider struct {
	mu           sync.RWMutex
	quotes       map[string]*Quote
	histories    map[string][]PricePoint
	failures     map[string]error
	riskFreeRate float64
	rateErr      error
	now          func() time.Time
	calls        map[string]int
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		quotes:    make(map[string]*Quote),
		histories: make(map[string][]PricePoint),
		failures:  make(map[string]error),
		now:       time.Now,
		calls:     make(map[string]int),
	}
}

// SetClock replaces the time source used for the benchmark window
func (m *MemoryProvider) SetClock(now func() time.Time) {
	m.now = now
}

// SetQuote registers the live price of a symbol
func (m *MemoryProvider) SetQuote(symbol string, price, previousClose float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	symbol = common.NormalizeSymbol(symbol)
	m.quotes[symbol] = &Quote{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: previousClose,
		Change:        common.RoundMoney(price - previousClose),
		ChangePercent: common.RoundPercent(common.RelativeGrowth(price, previousClose)),
	}
}

// SetHistory registers the daily closes of a symbol
func (m *MemoryProvider) SetHistory(symbol string, points []PricePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := make([]PricePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })
	m.histories[common.NormalizeSymbol(symbol)] = sorted
}

// SetFailure makes every request for symbol return err
func (m *MemoryProvider) SetFailure(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[common.NormalizeSymbol(symbol)] = err
}

// SetRiskFreeRate sets the rate (percent) or the error returned for it
func (m *MemoryProvider) SetRiskFreeRate(rate float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riskFreeRate = rate
	m.rateErr = err
}

// HistoryCalls reports how many times the history of symbol was requested
func (m *MemoryProvider) HistoryCalls(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[common.NormalizeSymbol(symbol)]
}

func (m *MemoryProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	symbol = common.NormalizeSymbol(symbol)
	if err, ok := m.failures[symbol]; ok {
		return nil, err
	}
	q, ok := m.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	cp := *q
	return &cp, nil
}

func (m *MemoryProvider) GetQuotes(ctx context.Context, symbols []string) ([]*Quote, error) {
	res := make([]*Quote, 0, len(symbols))
	for _, s := range common.NormalizeSymbols(symbols) {
		if q, err := m.GetQuote(ctx, s); err == nil {
			res = append(res, q)
		}
	}
	return res, nil
}

func (m *MemoryProvider) GetHistoricalCloses(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	symbol = common.NormalizeSymbol(symbol)
	m.calls[symbol]++
	if err, ok := m.failures[symbol]; ok {
		return nil, err
	}
	hist, ok := m.histories[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	begin := from.Format("2006-01-02")
	end := to.Format("2006-01-02")
	res := make([]PricePoint, 0, len(hist))
	for _, pp := range hist {
		if pp.Date >= begin && pp.Date <= end {
			res = append(res, pp)
		}
	}
	return res, nil
}

// GetBenchmarkReturns returns every registered close of symbol up to now
func (m *MemoryProvider) GetBenchmarkReturns(ctx context.Context, symbol string) ([]PricePoint, error) {
	to := m.now()
	return m.GetHistoricalCloses(ctx, symbol, time.Time{}, to)
}

func (m *MemoryProvider) GetRiskFreeRate(ctx context.Context) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rateErr != nil {
		return 0, m.rateErr
	}
	return m.riskFreeRate, nil
}
