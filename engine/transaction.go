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

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/penny-vault/pv-tracker/common"
	"github.com/penny-vault/pv-tracker/data"
	"github.com/penny-vault/pv-tracker/observability/opentelemetry"
	"github.com/penny-vault/pv-tracker/portfolio"
)

// ValidateAndExecuteTransaction checks the proposed trade, prices it and
// appends it to the user's log. Nothing is persisted when validation fails.
// The state is recomputed afterwards; a failure there is logged but does
// not undo the trade.
func (e *Engine) ValidateAndExecuteTransaction(ctx context.Context, in portfolio.TransactionInput) (*portfolio.Transaction, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "engine.ValidateAndExecuteTransaction")
	defer span.End()

	in.Symbol = common.NormalizeSymbol(in.Symbol)
	span.SetAttributes(
		attribute.String("UserID", in.UserID),
		attribute.String("Symbol", in.Symbol),
		attribute.String("Type", string(in.Type)),
	)
	subLog := log.With().Str("UserID", in.UserID).Str("Symbol", in.Symbol).Logger()

	user, err := e.store.GetUser(ctx, in.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load user")
		return nil, err
	}
	user = e.settings(user)

	txLog, err := e.store.GetTransactionLog(ctx, in.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load transaction log")
		return nil, err
	}

	quote, err := e.provider.GetQuote(ctx, in.Symbol)
	if err != nil {
		if !errors.Is(err, data.ErrSymbolNotFound) {
			subLog.Error().Err(err).Msg("could not fetch quote")
			span.RecordError(err)
			span.SetStatus(codes.Error, "quote unavailable")
			return nil, err
		}
		quote = nil
	}

	if err := portfolio.Validate(&portfolio.ValidationInput{
		Transaction:     in,
		User:            user,
		Quote:           quote,
		Log:             txLog,
		Now:             e.now(),
		Location:        e.loc,
		MaxHistoryYears: user.Settings.MaxHistoryYears,
	}); err != nil {
		subLog.Info().Err(err).Msg("transaction rejected")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	t, err := portfolio.Execute(&portfolio.ExecutionInput{
		Transaction: in,
		User:        user,
		Quote:       quote,
		Log:         txLog,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execution failed")
		return nil, err
	}

	if err := e.store.AppendTransaction(ctx, t); err != nil {
		subLog.Error().Err(err).Str("TransactionID", t.ID).Msg("could not append transaction")
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not persist transaction")
		return nil, err
	}
	span.SetAttributes(attribute.String("TransactionID", t.ID))

	if e.feed != nil {
		if err := e.feed.PublishTransaction(ctx, t); err != nil {
			subLog.Warn().Err(err).Str("TransactionID", t.ID).Msg("could not share transaction with the community feed")
		}
	}

	if _, err := e.RecomputePortfolioState(ctx, in.UserID); err != nil {
		subLog.Warn().Err(err).Str("TransactionID", t.ID).Msg("transaction saved but portfolio state is stale")
	}

	return t, nil
}

// DeleteTransaction removes a transaction from the log and recomputes the
// state. A removal that would leave a later SELL without enough units is
// refused with ErrInsufficientUnits.
func (e *Engine) DeleteTransaction(ctx context.Context, userID, transactionID string) (*portfolio.Transaction, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "engine.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("UserID", userID), attribute.String("TransactionID", transactionID))

	subLog := log.With().Str("UserID", userID).Str("TransactionID", transactionID).Logger()

	if _, err := e.store.GetUser(ctx, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load user")
		return nil, err
	}

	txLog, err := e.store.GetTransactionLog(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load transaction log")
		return nil, err
	}
	if len(txLog) == 0 {
		return nil, portfolio.ErrTransactionHistoryNotFound
	}

	remaining, target := portfolio.WithoutTransaction(txLog, transactionID)
	if target == nil {
		return nil, portfolio.ErrTransactionNotFound
	}

	if err := portfolio.CheckLog(remaining); err != nil {
		subLog.Info().Err(err).Msg("refusing to delete transaction")
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete would oversell")
		return nil, err
	}

	removed, err := e.store.RemoveTransaction(ctx, userID, transactionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not remove transaction")
		return nil, fmt.Errorf("remove transaction: %w", err)
	}

	if _, err := e.RecomputePortfolioState(ctx, userID); err != nil {
		subLog.Warn().Err(err).Msg("transaction removed but portfolio state is stale")
	}

	return removed, nil
}
