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

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-tracker/common"
)

func init() {
	cobra.OnInitialize(common.SetDefaults)

	// Logging configuration
	viper.BindEnv("log.level", "PVT_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "PVT_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "PVT_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "PVT_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Write human readable log lines instead of JSON")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Document store
	viper.BindEnv("store.backend", "PVT_STORE")
	rootCmd.PersistentFlags().String("store", "memory", "Document store backend one of: `memory`, `postgres`, or `surrealdb`")
	viper.BindPFlag("store.backend", rootCmd.PersistentFlags().Lookup("store"))

	viper.BindEnv("store.dry_run", "PVT_DRY_RUN")
	rootCmd.PersistentFlags().Bool("dry-run", false, "Use the in-memory store and disable the community feed so nothing is persisted or published")
	viper.BindPFlag("store.dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))

	viper.BindEnv("database.url", "DATABASE_URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	viper.BindEnv("surrealdb.url", "SURREALDB_URL")
	rootCmd.PersistentFlags().String("surrealdb-url", "", "SurrealDB websocket endpoint")
	viper.BindPFlag("surrealdb.url", rootCmd.PersistentFlags().Lookup("surrealdb-url"))

	viper.BindEnv("surrealdb.username", "SURREALDB_USER")
	viper.BindEnv("surrealdb.password", "SURREALDB_PASS")

	// Market data
	viper.BindEnv("tiingo.token", "TIINGO_TOKEN")
	rootCmd.PersistentFlags().String("tiingo-token", "", "Tiingo API token")
	viper.BindPFlag("tiingo.token", rootCmd.PersistentFlags().Lookup("tiingo-token"))

	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis server used as a shared price history cache")
	viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("redis-url"))

	// Community feed
	viper.BindEnv("nats.server", "NATS_SERVER")
	rootCmd.PersistentFlags().String("nats-server", "", "NATS server the community feed is published to, if blank the feed is disabled")
	viper.BindPFlag("nats.server", rootCmd.PersistentFlags().Lookup("nats-server"))

	viper.BindEnv("nats.credentials", "NATS_CREDENTIALS")

	// Tracing
	viper.BindEnv("otlp.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OTLP collector traces are exported to, if blank tracing is disabled")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))

	viper.BindEnv("timezone", "PVT_TIMEZONE")
}

var rootCmd = &cobra.Command{
	Use:     "pvtracker",
	Version: common.CurrentVersion.String(),
	Short:   "Penny Vault tracker computes the state and risk of user portfolios",
	Long: `Records buy and sell transactions and derives holdings, cash, gains,
a daily growth curve, and risk statistics relative to a benchmark.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
