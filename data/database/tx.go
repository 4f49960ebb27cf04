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

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnsupported = errors.New("unsupported function")
)

// TrackedTx records itself in the open transaction list until it is
// committed or rolled back so leaked transactions can be reported
type TrackedTx struct {
	pgx.Tx
	id   string
	user string
}

func (t *TrackedTx) Begin(ctx context.Context) (pgx.Tx, error) {
	log.Error().Str("UserID", t.user).Msg("nested transactions are not supported")
	return nil, ErrUnsupported
}

func (t *TrackedTx) BeginFunc(ctx context.Context, f func(pgx.Tx) error) error {
	log.Error().Str("UserID", t.user).Msg("nested transactions are not supported")
	return ErrUnsupported
}

func (t *TrackedTx) Commit(ctx context.Context) error {
	untrack(t.id)
	return t.Tx.Commit(ctx)
}

func (t *TrackedTx) Rollback(ctx context.Context) error {
	untrack(t.id)
	return t.Tx.Rollback(ctx)
}
