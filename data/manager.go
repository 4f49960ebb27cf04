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
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/penny-vault/pv-tracker/common"
	"github.com/penny-vault/pv-tracker/observability/opentelemetry"
)

// QuoteSource supplies live quotes and end-of-day history
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetQuotes(ctx context.Context, symbols []string) ([]*Quote, error)
	GetHistoricalCloses(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error)
}

// RateSource supplies the risk free rate in percent
type RateSource interface {
	GetRiskFreeRate(ctx context.Context) (float64, error)
}

// Manager implements Provider on top of a quote source and a rate source.
// Historical closes are cached through the common cache.
type Manager struct {
	quotes   QuoteSource
	rates    RateSource
	useCache bool
	now      func() time.Time
}

// NewManager creates a new data manager
func NewManager(quotes QuoteSource, rates RateSource, useCache bool) *Manager {
	return &Manager{
		quotes:   quotes,
		rates:    rates,
		useCache: useCache,
		now:      time.Now,
	}
}

// SetClock replaces the time source used to compute trailing windows
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Manager) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	return m.quotes.GetQuote(ctx, common.NormalizeSymbol(symbol))
}

func (m *Manager) GetQuotes(ctx context.Context, symbols []string) ([]*Quote, error) {
	return m.quotes.GetQuotes(ctx, common.NormalizeSymbols(symbols))
}

// GetHistoricalCloses returns closes for the range, consulting the cache first
func (m *Manager) GetHistoricalCloses(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "data.GetHistoricalCloses")
	defer span.End()

	symbol = common.NormalizeSymbol(symbol)
	key := fmt.Sprintf("closes:%s:%s:%s", symbol, from.Format("20060102"), to.Format("20060102"))
	span.SetAttributes(attribute.String("Symbol", symbol), attribute.String("CacheKey", key))

	if m.useCache {
		if raw, err := common.CacheGet(ctx, key); err == nil {
			points := []PricePoint{}
			if err := json.Unmarshal(raw, &points); err == nil {
				span.SetAttributes(attribute.Bool("CacheHit", true))
				return points, nil
			}
			log.Warn().Str("CacheKey", key).Msg("discarding undecodable cache entry")
		} else if !errors.Is(err, common.ErrCacheMiss) {
			log.Warn().Err(err).Str("CacheKey", key).Msg("cache read failed")
		}
	}

	points, err := m.quotes.GetHistoricalCloses(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	if m.useCache {
		if raw, err := json.Marshal(points); err == nil {
			if err := common.CacheSet(ctx, key, raw); err != nil {
				log.Warn().Err(err).Str("CacheKey", key).Msg("cache write failed")
			}
		}
	}

	return points, nil
}

// GetBenchmarkReturns returns the trailing year of closes ending yesterday
func (m *Manager) GetBenchmarkReturns(ctx context.Context, symbol string) ([]PricePoint, error) {
	to := m.now().AddDate(0, 0, -1)
	from := to.AddDate(-1, 0, 0)
	return m.GetHistoricalCloses(ctx, symbol, from, to)
}

func (m *Manager) GetRiskFreeRate(ctx context.Context) (float64, error) {
	if m.rates == nil {
		return 0, ErrProviderUnavailable
	}
	return m.rates.GetRiskFreeRate(ctx)
}
