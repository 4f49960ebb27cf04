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
	"fmt"
	"sort"

	"github.com/penny-vault/pv-tracker/common"
)

// SortTransactions returns a copy of the log ordered by date ascending.
// Transactions on the same day keep their log order.
func SortTransactions(txLog []*Transaction) []*Transaction {
	sorted := make([]*Transaction, len(txLog))
	copy(sorted, txLog)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})
	return sorted
}

// apply returns the holding that results from executing t against h
func (h Holding) apply(t *Transaction) Holding {
	switch t.Type {
	case BuyTransaction:
		return Holding{
			Symbol:       h.Symbol,
			Units:        h.Units + t.Units,
			InvestedCost: h.InvestedCost + t.Units*t.UnitPrice,
		}
	case SellTransaction:
		next := Holding{
			Symbol:       h.Symbol,
			Units:        h.Units - t.Units,
			InvestedCost: h.InvestedCost - t.Units*t.UnitPrice,
		}
		// a closed position starts over from nothing
		if next.Units <= unitTolerance {
			return Holding{Symbol: h.Symbol}
		}
		return next
	default:
		return h
	}
}

// unitTolerance absorbs floating point residue of fractional (crypto) units
const unitTolerance = 1e-9

// AggregateHoldings folds the log into the current open positions sorted by
// symbol. Positions with no units left are omitted.
func AggregateHoldings(txLog []*Transaction) []*Holding {
	positions := make(map[string]Holding)
	for _, t := range SortTransactions(txLog) {
		symbol := common.NormalizeSymbol(t.Symbol)
		current, ok := positions[symbol]
		if !ok {
			current = Holding{Symbol: symbol}
		}
		positions[symbol] = current.apply(t)
	}

	holdings := make([]*Holding, 0, len(positions))
	for _, h := range positions {
		if h.Units <= unitTolerance {
			continue
		}
		h := h
		holdings = append(holdings, &h)
	}

	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Symbol < holdings[j].Symbol
	})

	return holdings
}

// HoldingFor returns the running position in symbol after every transaction
// in the log. The result has zero units when the symbol is not held.
func HoldingFor(txLog []*Transaction, symbol string) Holding {
	return HoldingAsOf(txLog, symbol, "")
}

// HoldingAsOf returns the position in symbol after every transaction dated
// on or before day (YYYY-MM-DD). An empty day includes the whole log.
func HoldingAsOf(txLog []*Transaction, symbol, day string) Holding {
	symbol = common.NormalizeSymbol(symbol)
	h := Holding{Symbol: symbol}
	for _, t := range SortTransactions(txLog) {
		if day != "" && t.Date > day {
			break
		}
		if common.NormalizeSymbol(t.Symbol) != symbol {
			continue
		}
		h = h.apply(t)
	}
	return h
}

// TransactionsFor returns the date ordered transactions of one symbol
func TransactionsFor(txLog []*Transaction, symbol string) []*Transaction {
	symbol = common.NormalizeSymbol(symbol)
	res := make([]*Transaction, 0)
	for _, t := range SortTransactions(txLog) {
		if common.NormalizeSymbol(t.Symbol) == symbol {
			res = append(res, t)
		}
	}
	return res
}

// Symbols lists every distinct symbol that appears in the log
func Symbols(txLog []*Transaction) []string {
	symbols := make([]string, 0)
	for _, t := range txLog {
		symbols = append(symbols, t.Symbol)
	}
	symbols = common.NormalizeSymbols(symbols)
	sort.Strings(symbols)
	return symbols
}

// CheckLog replays the log in date order and returns ErrInsufficientUnits
// for the first SELL that exceeds the units held at that point
func CheckLog(txLog []*Transaction) error {
	positions := make(map[string]Holding)
	for _, t := range SortTransactions(txLog) {
		symbol := common.NormalizeSymbol(t.Symbol)
		current := positions[symbol]
		if t.Type == SellTransaction && current.Units+unitTolerance < t.Units {
			return fmt.Errorf("%w: %s on %s", ErrInsufficientUnits, symbol, t.Date)
		}
		current.Symbol = symbol
		positions[symbol] = current.apply(t)
	}
	return nil
}

// WithoutTransaction returns a copy of the log with id removed along with
// the removed transaction; nil when id is not in the log
func WithoutTransaction(txLog []*Transaction, id string) ([]*Transaction, *Transaction) {
	var removed *Transaction
	res := make([]*Transaction, 0, len(txLog))
	for _, t := range txLog {
		if removed == nil && t.ID == id {
			removed = t
			continue
		}
		res = append(res, t)
	}
	return res, removed
}
