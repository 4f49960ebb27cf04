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

package database

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type PgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
}

var (
	ErrEmptyUserID = errors.New("userID cannot be an empty string")
	ErrNoPool      = errors.New("database pool is not configured")
)

const (
	// ServiceRole is the role connections log in as; it may only create
	// user roles and switch to them
	ServiceRole = "pvtracker"

	// UserGroupRole owns the row level security policies every user role
	// inherits
	UserGroupRole = "pvtracker_user"
)

var (
	pool             PgxIface
	openTransactions map[string]string
	openMu           sync.Mutex
)

func createRole(ctx context.Context, userID string) error {
	if userID == "" {
		log.Error().Stack().Msg("userID cannot be an empty string")
		return ErrEmptyUserID
	}

	subLog := log.With().Str("UserID", userID).Logger()
	subLog.Info().Msg("creating role for user")

	trx, err := serviceTrx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not begin service transaction")
		return err
	}

	// identifiers cannot be passed as parameters so they are sanitized here
	ident := pgx.Identifier{userID}
	for _, sql := range []string{
		fmt.Sprintf("CREATE ROLE %s WITH nologin IN ROLE %s", ident.Sanitize(), pgx.Identifier{UserGroupRole}.Sanitize()),
		fmt.Sprintf("GRANT %s TO %s", ident.Sanitize(), pgx.Identifier{ServiceRole}.Sanitize()),
	} {
		if _, err := trx.Exec(ctx, sql); err != nil {
			subLog.Error().Stack().Err(err).Str("Query", sql).Msg("could not create user role")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit user role")
		return err
	}

	return nil
}

func serviceTrx(ctx context.Context) (pgx.Tx, error) {
	if pool == nil {
		return nil, ErrNoPool
	}

	trx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := trx.Exec(ctx, fmt.Sprintf("SET ROLE %s", pgx.Identifier{ServiceRole}.Sanitize())); err != nil {
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	return trx, nil
}

func track(trx pgx.Tx, userID string) *TrackedTx {
	_, file, lineno, ok := runtime.Caller(2)
	wrapped := &TrackedTx{
		Tx:   trx,
		id:   uuid.New().String(),
		user: userID,
	}

	openMu.Lock()
	openTransactions[wrapped.id] = fmt.Sprintf("[%v] %s:%d", ok, file, lineno)
	openMu.Unlock()

	return wrapped
}

func untrack(id string) {
	openMu.Lock()
	delete(openTransactions, id)
	openMu.Unlock()
}

func SetPool(myPool PgxIface) {
	openMu.Lock()
	openTransactions = make(map[string]string)
	openMu.Unlock()
	pool = myPool
}

// Connect opens the connection pool configured by database.url
func Connect(ctx context.Context) error {
	myPool, err := pgxpool.Connect(ctx, viper.GetString("database.url"))
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not connect to pool")
		return err
	}
	if err = myPool.Ping(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not ping database server")
		return err
	}
	SetPool(myPool)
	return nil
}

// LogOpenTransactions writes an INFO log for each transaction that has not
// been committed or rolled back
func LogOpenTransactions() {
	openMu.Lock()
	defer openMu.Unlock()
	for k, v := range openTransactions {
		log.Info().Str("TrxID", k).Str("Caller", v).Msg("open transaction")
	}
}

// Trx begins a transaction as the service role. It is used for work that
// spans users such as listing them.
func Trx(ctx context.Context) (pgx.Tx, error) {
	trx, err := serviceTrx(ctx)
	if err != nil {
		return nil, err
	}
	return track(trx, ServiceRole), nil
}

// TrxForUser begins a transaction restricted to the rows of userID. The
// user's role is created on first use.
func TrxForUser(ctx context.Context, userID string) (pgx.Tx, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if pool == nil {
		return nil, ErrNoPool
	}

	trx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	wrapped := track(trx, userID)

	subLog := log.With().Str("UserID", userID).Logger()

	sql := fmt.Sprintf("SET ROLE %s", pgx.Identifier{userID}.Sanitize())
	if _, err = wrapped.Exec(ctx, sql); err != nil {
		subLog.Warn().Err(err).Msg("role does not exist")
		if err := wrapped.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			return nil, err
		}
		if err := createRole(ctx, userID); err != nil {
			return nil, err
		}
		return TrxForUser(ctx, userID)
	}

	return wrapped, nil
}
