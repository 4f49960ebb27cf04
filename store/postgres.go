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
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/penny-vault/pv-tracker/calendar"
	"github.com/penny-vault/pv-tracker/data/database"
	"github.com/penny-vault/pv-tracker/observability/opentelemetry"
	"github.com/penny-vault/pv-tracker/portfolio"
)

const transactionColumns = "id, symbol, symbol_type, units, unit_price, event_date, tx_type, fees, realized_return_value, realized_return_change, source_id"

// Postgres stores users in the users table and their logs in the
// transactions table. Every statement runs as the user's own role so row
// level security confines it to that user's rows.
type Postgres struct{}

func NewPostgres() *Postgres {
	return &Postgres{}
}

func rollback(ctx context.Context, trx pgx.Tx, userID string) {
	if err := trx.Rollback(ctx); err != nil {
		log.Error().Stack().Err(err).Str("UserID", userID).Msg("could not rollback transaction")
	}
}

func (p *Postgres) GetUser(ctx context.Context, userID string) (*portfolio.User, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "store.GetUser")
	defer span.End()
	span.SetAttributes(attribute.String("UserID", userID))

	trx, err := database.TrxForUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not begin transaction")
		return nil, err
	}

	var settings, ledger, state, risk []byte
	sql := "SELECT settings, cash_ledger, state, risk FROM users WHERE id=$1"
	err = trx.QueryRow(ctx, sql, userID).Scan(&settings, &ledger, &state, &risk)
	if errors.Is(err, pgx.ErrNoRows) {
		rollback(ctx, trx, userID)
		return nil, portfolio.ErrUserNotFound
	}
	if err != nil {
		log.Error().Stack().Err(err).Str("UserID", userID).Str("Query", sql).Msg("could not load user")
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		rollback(ctx, trx, userID)
		return nil, err
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Err(err).Str("UserID", userID).Msg("could not commit transaction")
	}

	u := &portfolio.User{ID: userID}
	for _, col := range []struct {
		raw []byte
		dst interface{}
	}{
		{settings, &u.Settings},
		{ledger, &u.CashLedger},
		{state, &u.State},
		{risk, &u.Risk},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			log.Error().Err(err).Str("UserID", userID).Msg("could not decode user document")
			return nil, err
		}
	}

	return u, nil
}

func (p *Postgres) GetTransactionLog(ctx context.Context, userID string) ([]*portfolio.Transaction, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "store.GetTransactionLog")
	defer span.End()
	span.SetAttributes(attribute.String("UserID", userID))

	trx, err := database.TrxForUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not begin transaction")
		return nil, err
	}

	sql := "SELECT " + transactionColumns + " FROM transactions WHERE user_id=$1 ORDER BY seq"
	rows, err := trx.Query(ctx, sql, userID)
	if err != nil {
		log.Error().Stack().Err(err).Str("UserID", userID).Str("Query", sql).Msg("could not load transaction log")
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		rollback(ctx, trx, userID)
		return nil, err
	}
	defer rows.Close()

	txLog := make([]*portfolio.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows, userID)
		if err != nil {
			log.Error().Err(err).Str("UserID", userID).Msg("could not scan transaction")
			rollback(ctx, trx, userID)
			return nil, err
		}
		txLog = append(txLog, t)
	}
	if err := rows.Err(); err != nil {
		rollback(ctx, trx, userID)
		return nil, err
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Err(err).Str("UserID", userID).Msg("could not commit transaction")
	}

	span.SetAttributes(attribute.Int("NumTransactions", len(txLog)))
	return txLog, nil
}

func (p *Postgres) AppendTransaction(ctx context.Context, t *portfolio.Transaction) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "store.AppendTransaction")
	defer span.End()

	trx, err := database.TrxForUser(ctx, t.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not begin transaction")
		return err
	}

	sql := `INSERT INTO transactions (user_id, ` + transactionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = trx.Exec(ctx, sql, t.UserID, t.ID, t.Symbol, string(t.SymbolType), t.Units, t.UnitPrice,
		t.Date, string(t.Type), t.Fees, t.RealizedReturnValue, t.RealizedReturnChange, t.SourceID)
	if err != nil {
		log.Error().Stack().Err(err).Str("UserID", t.UserID).Str("TransactionID", t.ID).Msg("could not insert transaction")
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		rollback(ctx, trx, t.UserID)
		return err
	}

	return trx.Commit(ctx)
}

func (p *Postgres) RemoveTransaction(ctx context.Context, userID, transactionID string) (*portfolio.Transaction, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "store.RemoveTransaction")
	defer span.End()

	trx, err := database.TrxForUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not begin transaction")
		return nil, err
	}

	sql := "DELETE FROM transactions WHERE user_id=$1 AND id=$2 RETURNING " + transactionColumns
	t, err := scanTransaction(trx.QueryRow(ctx, sql, userID, transactionID), userID)
	if errors.Is(err, pgx.ErrNoRows) {
		rollback(ctx, trx, userID)
		return nil, portfolio.ErrTransactionNotFound
	}
	if err != nil {
		log.Error().Stack().Err(err).Str("UserID", userID).Str("TransactionID", transactionID).Msg("could not delete transaction")
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		rollback(ctx, trx, userID)
		return nil, err
	}

	if err := trx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *Postgres) UpdatePortfolioState(ctx context.Context, userID string, state *portfolio.PortfolioState) error {
	return p.UpdatePortfolio(ctx, userID, state, nil)
}

func (p *Postgres) UpdatePortfolioRisk(ctx context.Context, userID string, risk *portfolio.PortfolioRisk) error {
	return p.UpdatePortfolio(ctx, userID, nil, risk)
}

// UpdatePortfolio writes state and risk in a single statement
func (p *Postgres) UpdatePortfolio(ctx context.Context, userID string, state *portfolio.PortfolioState, risk *portfolio.PortfolioRisk) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "store.UpdatePortfolio")
	defer span.End()
	span.SetAttributes(attribute.String("UserID", userID))

	stateArg, err := jsonArg(state != nil, state)
	if err != nil {
		return err
	}
	riskArg, err := jsonArg(risk != nil, risk)
	if err != nil {
		return err
	}

	trx, err := database.TrxForUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not begin transaction")
		return err
	}

	sql := "UPDATE users SET state=COALESCE($2, state), risk=COALESCE($3, risk) WHERE id=$1"
	tag, err := trx.Exec(ctx, sql, userID, stateArg, riskArg)
	if err != nil {
		log.Error().Stack().Err(err).Str("UserID", userID).Msg("could not update portfolio")
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		rollback(ctx, trx, userID)
		return err
	}
	if tag.RowsAffected() == 0 {
		rollback(ctx, trx, userID)
		return portfolio.ErrUserNotFound
	}

	return trx.Commit(ctx)
}

func (p *Postgres) ListUsers(ctx context.Context) ([]string, error) {
	trx, err := database.Trx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := trx.Query(ctx, "SELECT id FROM users ORDER BY id")
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not list users")
		rollback(ctx, trx, database.ServiceRole)
		return nil, err
	}
	defer rows.Close()

	users := make([]string, 0, 100)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Warn().Err(err).Msg("could not scan user id")
			continue
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		rollback(ctx, trx, database.ServiceRole)
		return nil, err
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Err(err).Msg("could not commit transaction")
	}
	return users, nil
}

func jsonArg(present bool, v interface{}) (interface{}, error) {
	if !present {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanTransaction(row pgx.Row, userID string) (*portfolio.Transaction, error) {
	var (
		t                  portfolio.Transaction
		symbolType, txType string
		eventDate          time.Time
	)
	err := row.Scan(&t.ID, &t.Symbol, &symbolType, &t.Units, &t.UnitPrice, &eventDate, &txType,
		&t.Fees, &t.RealizedReturnValue, &t.RealizedReturnChange, &t.SourceID)
	if err != nil {
		return nil, err
	}
	t.UserID = userID
	t.SymbolType = portfolio.SymbolType(symbolType)
	t.Type = portfolio.TransactionType(txType)
	t.Date = calendar.FormatDay(eventDate)
	return &t, nil
}
