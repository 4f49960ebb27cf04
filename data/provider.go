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
	"time"
)

// Quote is the latest known price of a symbol
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previousClose"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Timestamp     time.Time `json:"timestamp"`
}

// PricePoint is the close of a symbol on one calendar day (YYYY-MM-DD)
type PricePoint struct {
	Date     string  `json:"date"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
}

// Value returns the split and dividend adjusted close when the provider
// supplied one and the raw close otherwise
func (pp PricePoint) Value() float64 {
	if pp.AdjClose > 0 {
		return pp.AdjClose
	}
	return pp.Close
}

// Provider is the market data contract the engine depends on
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetQuotes(ctx context.Context, symbols []string) ([]*Quote, error)

	// GetHistoricalCloses returns daily closes between from and to inclusive
	// sorted by date ascending
	GetHistoricalCloses(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error)

	// GetBenchmarkReturns returns the trailing year of daily closes of a
	// benchmark symbol
	GetBenchmarkReturns(ctx context.Context, symbol string) ([]PricePoint, error)

	// GetRiskFreeRate returns the current risk free rate in percent
	GetRiskFreeRate(ctx context.Context) (float64, error)
}
