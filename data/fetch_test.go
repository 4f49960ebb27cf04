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

package data_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-tracker/data"
)

var _ = Describe("Fetch", func() {
	var (
		ctx      context.Context
		provider *data.MemoryProvider
		errDown  = errors.New("connection reset")
	)

	BeforeEach(func() {
		ctx = context.Background()
		provider = data.NewMemoryProvider()
		provider.SetQuote("AAPL", 160, 150)
		provider.SetQuote("MSFT", 250, 250)
		provider.SetFailure("DOWN", errDown)
		provider.SetHistory("AAPL", []data.PricePoint{
			{Date: "2022-01-04", Close: 179.70},
			{Date: "2022-01-03", Close: 182.01},
		})
	})

	Context("when fetching quotes", func() {
		It("returns the successful subset and reports failures", func() {
			quotes, errs := data.FetchQuotes(ctx, provider, []string{"aapl", "MSFT", "DOWN", "NOPE", "AAPL"})
			Expect(quotes).To(HaveLen(2))
			Expect(quotes).To(HaveKey("AAPL"))
			Expect(quotes).To(HaveKey("MSFT"))
			Expect(errs).To(HaveLen(2))
			Expect(errs["DOWN"]).To(MatchError(errDown))
			Expect(errs["NOPE"]).To(MatchError(data.ErrSymbolNotFound))
		})

		It("handles more symbols than one chunk", func() {
			symbols := make([]string, 0, 25)
			for ii := 0; ii < 25; ii++ {
				sym := fmt.Sprintf("S%02d", ii)
				provider.SetQuote(sym, float64(ii+1), float64(ii+1))
				symbols = append(symbols, sym)
			}
			quotes, errs := data.FetchQuotes(ctx, provider, symbols)
			Expect(quotes).To(HaveLen(25))
			Expect(errs).To(BeEmpty())
			Expect(quotes["S24"].Price).To(Equal(25.0))
		})

		It("returns nothing for an empty request", func() {
			quotes, errs := data.FetchQuotes(ctx, provider, nil)
			Expect(quotes).To(BeEmpty())
			Expect(errs).To(BeEmpty())
		})

		It("stops issuing requests once the context is cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			quotes, errs := data.FetchQuotes(cancelled, provider, []string{"AAPL", "MSFT"})
			Expect(quotes).To(BeEmpty())
			Expect(errs["AAPL"]).To(MatchError(context.Canceled))
		})
	})

	Context("when fetching histories", func() {
		It("returns sorted closes per symbol", func() {
			from := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
			to := time.Date(2022, 1, 31, 0, 0, 0, 0, time.UTC)
			histories, errs := data.FetchHistories(ctx, provider, []string{"AAPL", "DOWN"}, from, to)
			Expect(histories).To(HaveKey("AAPL"))
			Expect(histories["AAPL"][0].Date).To(Equal("2022-01-03"))
			Expect(errs).To(HaveKey("DOWN"))
		})
	})
})
