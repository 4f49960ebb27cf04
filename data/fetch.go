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

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/penny-vault/pv-tracker/common"
	"github.com/penny-vault/pv-tracker/observability/opentelemetry"
)

// maximum number of concurrent requests issued by the fetch helpers
const fetchChunkSize = 10

type quoteResult struct {
	Ticker string
	Quote  *Quote
	Err    error
}

type historyResult struct {
	Ticker string
	Data   []PricePoint
	Err    error
}

func partitionArray(arr []string, size int) [][]string {
	var chunks [][]string
	for size < len(arr) {
		arr, chunks = arr[size:], append(chunks, arr[0:size:size])
	}
	return append(chunks, arr)
}

// FetchQuotes requests a quote for every symbol in parallel. Failed symbols
// are logged and reported in the error map; the remaining quotes are returned.
func FetchQuotes(ctx context.Context, p Provider, symbols []string) (map[string]*Quote, map[string]error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "data.FetchQuotes")
	defer span.End()

	symbols = common.NormalizeSymbols(symbols)
	res := make(map[string]*Quote, len(symbols))
	errs := make(map[string]error)
	ch := make(chan quoteResult)

	for _, chunk := range partitionArray(symbols, fetchChunkSize) {
		for ii := range chunk {
			go quoteWorker(ctx, ch, p, chunk[ii])
		}

		for range chunk {
			v := <-ch
			if v.Err == nil && v.Quote != nil {
				res[v.Ticker] = v.Quote
			} else {
				if v.Err == nil {
					v.Err = ErrSymbolNotFound
				}
				log.Warn().Err(v.Err).Str("Ticker", v.Ticker).Msg("cannot fetch quote")
				errs[v.Ticker] = v.Err
			}
		}
	}

	span.SetAttributes(attribute.Int("Fetched", len(res)), attribute.Int("Failed", len(errs)))
	return res, errs
}

func quoteWorker(ctx context.Context, result chan<- quoteResult, p Provider, symbol string) {
	if err := ctx.Err(); err != nil {
		result <- quoteResult{Ticker: symbol, Err: err}
		return
	}
	q, err := p.GetQuote(ctx, symbol)
	result <- quoteResult{
		Ticker: symbol,
		Quote:  q,
		Err:    err,
	}
}

// FetchHistories requests the closes of every symbol between from and to in
// parallel with the same partial failure semantics as FetchQuotes
func FetchHistories(ctx context.Context, p Provider, symbols []string, from, to time.Time) (map[string][]PricePoint, map[string]error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "data.FetchHistories")
	defer span.End()

	symbols = common.NormalizeSymbols(symbols)
	res := make(map[string][]PricePoint, len(symbols))
	errs := make(map[string]error)
	ch := make(chan historyResult)

	for _, chunk := range partitionArray(symbols, fetchChunkSize) {
		for ii := range chunk {
			go historyWorker(ctx, ch, p, chunk[ii], from, to)
		}

		for range chunk {
			v := <-ch
			if v.Err == nil {
				res[v.Ticker] = v.Data
			} else {
				log.Warn().Err(v.Err).Str("Ticker", v.Ticker).Msg("cannot download ticker history")
				errs[v.Ticker] = v.Err
			}
		}
	}

	span.SetAttributes(attribute.Int("Fetched", len(res)), attribute.Int("Failed", len(errs)))
	return res, errs
}

func historyWorker(ctx context.Context, result chan<- historyResult, p Provider, symbol string, from, to time.Time) {
	if err := ctx.Err(); err != nil {
		result <- historyResult{Ticker: symbol, Err: err}
		return
	}
	data, err := p.GetHistoricalCloses(ctx, symbol, from, to)
	result <- historyResult{
		Ticker: symbol,
		Data:   data,
		Err:    err,
	}
}
