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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-tracker/common"
	"github.com/penny-vault/pv-tracker/data"
)

var _ = Describe("Manager", func() {
	var (
		ctx      context.Context
		provider *data.MemoryProvider
		manager  *data.Manager
		from, to time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		Expect(common.SetupCache()).To(Succeed())

		provider = data.NewMemoryProvider()
		provider.SetHistory("SPY", []data.PricePoint{
			{Date: "2022-06-15", Close: 379.20},
			{Date: "2022-06-16", Close: 366.65},
		})
		provider.SetRiskFreeRate(1.74, nil)

		manager = data.NewManager(provider, provider, true)
		manager.SetClock(func() time.Time { return time.Date(2022, 6, 17, 12, 0, 0, 0, time.UTC) })

		from = time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
		to = time.Date(2022, 6, 30, 0, 0, 0, 0, time.UTC)
	})

	It("serves repeated history requests from the cache", func() {
		first, err := manager.GetHistoricalCloses(ctx, "spy", from, to)
		Expect(err).To(BeNil())
		second, err := manager.GetHistoricalCloses(ctx, "SPY", from, to)
		Expect(err).To(BeNil())

		Expect(second).To(Equal(first))
		Expect(provider.HistoryCalls("SPY")).To(Equal(1))
	})

	It("skips the cache when disabled", func() {
		uncached := data.NewManager(provider, provider, false)
		_, err := uncached.GetHistoricalCloses(ctx, "SPY", from, to)
		Expect(err).To(BeNil())
		_, err = uncached.GetHistoricalCloses(ctx, "SPY", from, to)
		Expect(err).To(BeNil())
		Expect(provider.HistoryCalls("SPY")).To(Equal(2))
	})

	It("returns the trailing year for a benchmark", func() {
		points, err := manager.GetBenchmarkReturns(ctx, "SPY")
		Expect(err).To(BeNil())
		Expect(points).To(HaveLen(2))
	})

	It("passes through the risk free rate", func() {
		rate, err := manager.GetRiskFreeRate(ctx)
		Expect(err).To(BeNil())
		Expect(rate).To(Equal(1.74))
	})

	It("reports an unavailable rate source", func() {
		noRates := data.NewManager(provider, nil, false)
		_, err := noRates.GetRiskFreeRate(ctx)
		Expect(errors.Is(err, data.ErrProviderUnavailable)).To(BeTrue())
	})
})
