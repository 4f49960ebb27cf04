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

package common_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-tracker/common"
)

var _ = Describe("Cache", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		viper.Set("cache.redis", false)
		viper.Set("cache.local_size", 16)
		Expect(common.SetupCache()).To(Succeed())
	})

	It("returns the value that was stored", func() {
		payload := []byte(`[{"date":"2022-01-03","close":182.01}]`)
		Expect(common.CacheSet(ctx, "AAPL:2022", payload)).To(Succeed())

		val, err := common.CacheGet(ctx, "AAPL:2022")
		Expect(err).NotTo(HaveOccurred())
		Expect(val).To(Equal(payload))
	})

	It("reports a miss for unknown keys", func() {
		_, err := common.CacheGet(ctx, "MISSING")
		Expect(err).To(MatchError(common.ErrCacheMiss))
	})

	It("forgets values after a purge", func() {
		Expect(common.CacheSet(ctx, "MSFT", []byte("x"))).To(Succeed())
		common.CachePurge()
		_, err := common.CacheGet(ctx, "MSFT")
		Expect(err).To(MatchError(common.ErrCacheMiss))
	})

	It("round trips through lz4", func() {
		in := []byte("the quick brown fox jumps over the lazy dog, the quick brown fox")
		compressed, err := common.Compress(in)
		Expect(err).NotTo(HaveOccurred())
		out, err := common.Decompress(compressed)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))
	})
})
