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

package common

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ErrCacheMiss = errors.New("key not found in cache")
)

var rdb *redis.Client
var cache *lru.Cache
var cacheMu sync.Mutex

// SetupCache creates the local LRU tier and, when cache.redis is set,
// connects the shared redis tier. Values are stored lz4 compressed in both.
func SetupCache() error {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if viper.GetBool("cache.redis") {
		opt, err := redis.ParseURL(viper.GetString("cache.redis_url"))
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			return err
		}
		rdb = redis.NewClient(opt)
	} else {
		rdb = nil
	}

	size := viper.GetInt("cache.local_size")
	if size <= 0 {
		size = 1024
	}

	var err error
	cache, err = lru.New(size)
	if err != nil {
		log.Error().Err(err).Int("Size", size).Msg("could not create LRU cache")
		return err
	}

	return nil
}

func localCache() *lru.Cache {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache == nil {
		cache, _ = lru.New(1024)
	}
	return cache
}

func ttl() time.Duration {
	return time.Duration(viper.GetInt("cache.ttl")) * time.Second
}

func CacheSet(ctx context.Context, key string, bytes []byte) error {
	b2, err := Compress(bytes)
	if err != nil {
		return err
	}
	localCache().Add(key, b2)

	if rdb != nil {
		return rdb.Set(ctx, key, b2, ttl()).Err()
	}
	return nil
}

// CacheGet returns the decompressed value stored under key or ErrCacheMiss
func CacheGet(ctx context.Context, key string) ([]byte, error) {
	if v, ok := localCache().Get(key); ok {
		return Decompress(v.([]byte))
	}

	if rdb != nil {
		val, err := rdb.GetEx(ctx, key, ttl()).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		if err != nil {
			return nil, err
		}
		localCache().Add(key, val)
		return Decompress(val)
	}

	return nil, ErrCacheMiss
}

// CachePurge drops every entry of the local tier
func CachePurge() {
	localCache().Purge()
}
