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

import "github.com/spf13/viper"

// SetDefaults registers the default value of every configuration key the
// tracker reads. It is safe to call more than once.
func SetDefaults() {
	viper.SetDefault("timezone", DefaultTimezone)

	viper.SetDefault("log.level", "warning")
	viper.SetDefault("log.output", "stdout")

	viper.SetDefault("engine.fee_rate_percent", 0.0)
	viper.SetDefault("engine.max_history_years", 20)
	viper.SetDefault("engine.benchmark", "SPY")
	viper.SetDefault("engine.risk_free_fallback", 4.5)

	viper.SetDefault("risk.cache_size", 512)
	viper.SetDefault("risk.cache_ttl", "0s")

	viper.SetDefault("cache.local_size", 1024)
	viper.SetDefault("cache.ttl", 86400)
	viper.SetDefault("cache.redis", false)

	viper.SetDefault("tiingo.url", "https://api.tiingo.com")
	viper.SetDefault("tiingo.rate_limit", 5.0)
	viper.SetDefault("tiingo.timeout", "30s")
	viper.SetDefault("fred.url", "https://fred.stlouisfed.org")
	viper.SetDefault("fred.series", "DGS3MO")

	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("surrealdb.namespace", "pvtracker")
	viper.SetDefault("surrealdb.database", "pvtracker")

	viper.SetDefault("nats.feed_subject", "community.transactions")
}
