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

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-tracker/data/database"
	"github.com/penny-vault/pv-tracker/portfolio"
)

var (
	ErrUnknownBackend = errors.New("unknown store backend")
)

const (
	MemoryBackend    = "memory"
	PostgresBackend  = "postgres"
	SurrealDBBackend = "surrealdb"
)

// Store is the document store holding users and their transaction logs.
// Each call reads or writes a single user's data. Unknown users yield
// portfolio.ErrUserNotFound; removing a transaction that is not in the log
// yields portfolio.ErrTransactionNotFound.
type Store interface {
	GetUser(ctx context.Context, userID string) (*portfolio.User, error)

	// GetTransactionLog returns the user's executed transactions in the
	// order they were appended. A user without transactions has an empty log.
	GetTransactionLog(ctx context.Context, userID string) ([]*portfolio.Transaction, error)

	AppendTransaction(ctx context.Context, t *portfolio.Transaction) error
	RemoveTransaction(ctx context.Context, userID, transactionID string) (*portfolio.Transaction, error)

	UpdatePortfolioState(ctx context.Context, userID string, state *portfolio.PortfolioState) error
	UpdatePortfolioRisk(ctx context.Context, userID string, risk *portfolio.PortfolioRisk) error

	// UpdatePortfolio writes state and risk together; a nil value leaves
	// the stored one untouched
	UpdatePortfolio(ctx context.Context, userID string, state *portfolio.PortfolioState, risk *portfolio.PortfolioRisk) error

	ListUsers(ctx context.Context) ([]string, error)
}

// New opens the backend named by store.backend. When store.dry_run is set
// the in-memory store is returned whatever the backend.
func New(ctx context.Context) (Store, error) {
	backend := strings.ToLower(viper.GetString("store.backend"))
	subLog := log.With().Str("Backend", backend).Logger()

	if viper.GetBool("store.dry_run") {
		subLog.Info().Msg("dry run, using in-memory store")
		return NewMemory(), nil
	}

	switch backend {
	case "", MemoryBackend:
		subLog.Info().Msg("using in-memory store")
		return NewMemory(), nil
	case PostgresBackend:
		if err := database.Connect(ctx); err != nil {
			return nil, err
		}
		return NewPostgres(), nil
	case SurrealDBBackend:
		return ConnectSurrealDB(ctx, SurrealDBConfig{
			URL:       viper.GetString("surrealdb.url"),
			Namespace: viper.GetString("surrealdb.namespace"),
			Database:  viper.GetString("surrealdb.database"),
			Username:  viper.GetString("surrealdb.username"),
			Password:  viper.GetString("surrealdb.password"),
		})
	default:
		subLog.Error().Msg("unknown store backend")
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}
