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
)

type TransactionType string

const (
	BuyTransaction  TransactionType = "BUY"
	SellTransaction TransactionType = "SELL"
)

type SymbolType string

const (
	StockSymbol  SymbolType = "STOCK"
	ETFSymbol    SymbolType = "ETF"
	FundSymbol   SymbolType = "FUND"
	CryptoSymbol SymbolType = "CRYPTO"
)

// Transaction is an executed, fully priced trade. Transactions are never
// mutated after execution; they are only appended to or removed from the log.
type Transaction struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"userId"`
	Symbol               string          `json:"symbol"`
	SymbolType           SymbolType      `json:"symbolType"`
	Units                float64         `json:"units"`
	UnitPrice            float64         `json:"unitPrice"`
	Date                 string          `json:"date"`
	Type                 TransactionType `json:"type"`
	Fees                 float64         `json:"fees"`
	RealizedReturnValue  float64         `json:"realizedReturnValue"`
	RealizedReturnChange float64         `json:"realizedReturnChange"`
	SourceID             string          `json:"sourceId"`
}

// TransactionInput is a proposed trade as submitted by a user
type TransactionInput struct {
	UserID     string          `json:"userId"`
	Symbol     string          `json:"symbol"`
	SymbolType SymbolType      `json:"symbolType"`
	Units      float64         `json:"units"`
	Date       string          `json:"date"`
	Type       TransactionType `json:"type"`

	// CustomTotalValue overrides the quote when set; the unit price becomes
	// CustomTotalValue / Units
	CustomTotalValue *float64 `json:"customTotalValue,omitempty"`
}

// Holding is the current position in one symbol derived from the log
type Holding struct {
	Symbol       string  `json:"symbol"`
	Units        float64 `json:"units"`
	InvestedCost float64 `json:"investedCost"`
}

// BreakEvenPrice is the average price paid per unit
func (h Holding) BreakEvenPrice() float64 {
	if h.Units == 0 {
		return 0
	}
	return h.InvestedCost / h.Units
}

// HoldingState is a holding valued at the current quote
type HoldingState struct {
	Symbol         string  `json:"symbol"`
	Units          float64 `json:"units"`
	InvestedCost   float64 `json:"investedCost"`
	BreakEvenPrice float64 `json:"breakEvenPrice"`
	Weight         float64 `json:"weight"`
	Price          float64 `json:"price"`
	MarketValue    float64 `json:"marketValue"`
}

// PortfolioState is the snapshot persisted after every change to the log
type PortfolioState struct {
	Date                            string          `json:"date"`
	StartingCash                    float64         `json:"startingCash"`
	CashOnHand                      float64         `json:"cashOnHand"`
	Invested                        float64         `json:"invested"`
	HoldingsBalance                 float64         `json:"holdingsBalance"`
	Balance                         float64         `json:"balance"`
	TotalGainsValue                 float64         `json:"totalGainsValue"`
	TotalGainsPercentage            float64         `json:"totalGainsPercentage"`
	BuyCount                        int             `json:"buyCount"`
	SellCount                       int             `json:"sellCount"`
	TransactionFees                 float64         `json:"transactionFees"`
	FirstTransactionDate            string          `json:"firstTransactionDate,omitempty"`
	LastTransactionDate             string          `json:"lastTransactionDate,omitempty"`
	PreviousDate                    string          `json:"previousDate,omitempty"`
	PreviousBalance                 float64         `json:"previousBalance"`
	PreviousBalanceChange           float64         `json:"previousBalanceChange"`
	PreviousBalanceChangePercentage float64         `json:"previousBalanceChangePercentage"`
	Holdings                        []*HoldingState `json:"holdings"`
}

// GrowthPoint is the value of a position on one calendar day
type GrowthPoint struct {
	Symbol      string  `json:"symbol"`
	Date        string  `json:"date"`
	Price       float64 `json:"price"`
	Units       float64 `json:"units"`
	MarketValue float64 `json:"marketValue"`
}

// PortfolioRisk holds the weight-weighted risk statistics of the holdings.
// Degraded is set when the computation failed and every value is zero.
type PortfolioRisk struct {
	Beta       float64   `json:"beta"`
	Alpha      float64   `json:"alpha"`
	Sharpe     *float64  `json:"sharpe"`
	Volatility float64   `json:"volatility"`
	ComputedAt time.Time `json:"computedAt"`
	Degraded   bool      `json:"degraded"`
}

type Settings struct {
	CashAccounting        bool    `json:"cashAccounting"`
	TransactionFeesActive bool    `json:"transactionFeesActive"`
	FeeRatePercent        float64 `json:"feeRatePercent"`
	MaxHistoryYears       int     `json:"maxHistoryYears"`
	Benchmark             string  `json:"benchmark,omitempty"`
}

type CashDeposit struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// User is the document a user's portfolio is stored in
type User struct {
	ID         string          `json:"id"`
	Settings   Settings        `json:"settings"`
	CashLedger []CashDeposit   `json:"cashLedger"`
	State      *PortfolioState `json:"state,omitempty"`
	Risk       *PortfolioRisk  `json:"risk,omitempty"`
}

// DepositedCash is the sum of every recorded cash deposit
func (u *User) DepositedCash() float64 {
	total := 0.0
	for _, d := range u.CashLedger {
		total += d.Amount
	}
	return total
}

// StartingCash is the cash the portfolio started with; 0 when cash
// accounting is off
func (u *User) StartingCash() float64 {
	if !u.Settings.CashAccounting {
		return 0
	}
	return u.DepositedCash()
}
