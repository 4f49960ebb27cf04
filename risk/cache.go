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

package risk

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
)

const DefaultCacheSize = 512

type cacheEntry struct {
	returns  *SymbolReturns
	storedAt time.Time
}

// ReturnCache holds computed return series keyed by symbol. Entries expire
// after ttl; a ttl of zero keeps them until they are evicted by size.
// Concurrent first population of the same symbol is harmless, the last
// writer wins.
type ReturnCache struct {
	entries *lru.Cache
	ttl     time.Duration
	now     func() time.Time
}

func NewReturnCache(size int, ttl time.Duration) (*ReturnCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New(size)
	if err != nil {
		log.Error().Err(err).Int("Size", size).Msg("could not create return cache")
		return nil, err
	}
	return &ReturnCache{
		entries: entries,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// SetClock replaces the time source used to expire entries
func (c *ReturnCache) SetClock(now func() time.Time) {
	c.now = now
}

func (c *ReturnCache) Get(symbol string) (*SymbolReturns, bool) {
	v, ok := c.entries.Get(symbol)
	if !ok {
		return nil, false
	}
	entry := v.(*cacheEntry)
	if c.ttl > 0 && c.now().Sub(entry.storedAt) >= c.ttl {
		c.entries.Remove(symbol)
		return nil, false
	}
	return entry.returns, true
}

func (c *ReturnCache) Add(returns *SymbolReturns) {
	c.entries.Add(returns.Symbol, &cacheEntry{
		returns:  returns,
		storedAt: c.now(),
	})
}

// Clear drops every entry
func (c *ReturnCache) Clear() {
	c.entries.Purge()
}

func (c *ReturnCache) Len() int {
	return c.entries.Len()
}
