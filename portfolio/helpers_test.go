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
	"github.com/penny-vault/pv-tracker/portfolio"
)

func buy(symbol, date string, units, price float64) *portfolio.Transaction {
	return &portfolio.Transaction{
		ID:         symbol + "-" + date + "-buy",
		UserID:     "user-1",
		Symbol:     symbol,
		SymbolType: portfolio.StockSymbol,
		Units:      units,
		UnitPrice:  price,
		Date:       date,
		Type:       portfolio.BuyTransaction,
	}
}

func sell(symbol, date string, units, price float64) *portfolio.Transaction {
	t := buy(symbol, date, units, price)
	t.ID = symbol + "-" + date + "-sell"
	t.Type = portfolio.SellTransaction
	return t
}

func floatPtr(v float64) *float64 {
	return &v
}
