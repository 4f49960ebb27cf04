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
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/penny-vault/pv-tracker/portfolio"
)

const (
	userTable        = "user"
	transactionTable = "transaction"
)

type SurrealDBConfig struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// user documents are keyed by user id; the record id lives outside the
// content so no field may be named id
type surrealUser struct {
	UserID     string                    `json:"user_id"`
	Settings   portfolio.Settings        `json:"settings"`
	CashLedger []portfolio.CashDeposit   `json:"cash_ledger"`
	State      *portfolio.PortfolioState `json:"state,omitempty"`
	Risk       *portfolio.PortfolioRisk  `json:"risk,omitempty"`
}

type surrealTransaction struct {
	UserID      string                `json:"user_id"`
	Seq         int64                 `json:"seq"`
	Transaction portfolio.Transaction `json:"transaction"`
}

// SurrealDB stores one document per user in the user table and one per
// executed transaction in the transaction table
type SurrealDB struct {
	db  *surrealdb.DB
	now func() time.Time
}

// ConnectSurrealDB signs in, selects the namespace and ensures the tables
// exist
func ConnectSurrealDB(ctx context.Context, cfg SurrealDBConfig) (*SurrealDB, error) {
	subLog := log.With().Str("URL", cfg.URL).Str("Namespace", cfg.Namespace).Str("Database", cfg.Database).Logger()

	db, err := surrealdb.New(cfg.URL)
	if err != nil {
		subLog.Error().Err(err).Msg("could not connect to surrealdb")
		return nil, fmt.Errorf("connect to surrealdb: %w", err)
	}

	if cfg.Username != "" {
		if _, err := db.SignIn(ctx, map[string]interface{}{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			subLog.Error().Err(err).Msg("could not sign in to surrealdb")
			return nil, fmt.Errorf("sign in to surrealdb: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		subLog.Error().Err(err).Msg("could not select namespace")
		return nil, fmt.Errorf("select namespace/database: %w", err)
	}

	for _, table := range []string{userTable, transactionTable} {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("define table %s: %w", table, err)
		}
	}

	subLog.Info().Msg("surrealdb store initialized")
	return &SurrealDB{db: db, now: time.Now}, nil
}

func (s *SurrealDB) Close() {
	if err := s.db.Close(context.Background()); err != nil {
		log.Warn().Err(err).Msg("could not close surrealdb connection")
	}
}

func (s *SurrealDB) getUser(ctx context.Context, userID string) (*surrealUser, error) {
	rec, err := surrealdb.Select[surrealUser](ctx, s.db, surrealmodels.NewRecordID(userTable, userID))
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	if rec == nil {
		return nil, portfolio.ErrUserNotFound
	}
	return rec, nil
}

func (s *SurrealDB) putUser(ctx context.Context, rec *surrealUser) error {
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID(userTable, rec.UserID),
		"record": rec,
	}
	if _, err := surrealdb.Query[[]surrealUser](ctx, s.db, "UPSERT $rid CONTENT $record", vars); err != nil {
		log.Error().Err(err).Str("UserID", rec.UserID).Msg("could not write user document")
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// PutUser creates or replaces a user document
func (s *SurrealDB) PutUser(ctx context.Context, u *portfolio.User) error {
	return s.putUser(ctx, &surrealUser{
		UserID:     u.ID,
		Settings:   u.Settings,
		CashLedger: u.CashLedger,
		State:      u.State,
		Risk:       u.Risk,
	})
}

func (s *SurrealDB) GetUser(ctx context.Context, userID string) (*portfolio.User, error) {
	rec, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &portfolio.User{
		ID:         rec.UserID,
		Settings:   rec.Settings,
		CashLedger: rec.CashLedger,
		State:      rec.State,
		Risk:       rec.Risk,
	}, nil
}

func (s *SurrealDB) GetTransactionLog(ctx context.Context, userID string) ([]*portfolio.Transaction, error) {
	if _, err := s.getUser(ctx, userID); err != nil {
		return nil, err
	}

	sql := "SELECT * FROM transaction WHERE user_id = $user_id ORDER BY seq ASC"
	results, err := surrealdb.Query[[]surrealTransaction](ctx, s.db, sql, map[string]any{"user_id": userID})
	if err != nil {
		log.Error().Err(err).Str("UserID", userID).Msg("could not query transaction log")
		return nil, fmt.Errorf("query transaction log: %w", err)
	}

	txLog := make([]*portfolio.Transaction, 0)
	if results != nil && len(*results) > 0 {
		rows := (*results)[0].Result
		// ORDER BY is applied by the server; keep the sort stable locally
		// for records written within the same nanosecond
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
		for ii := range rows {
			t := rows[ii].Transaction
			txLog = append(txLog, &t)
		}
	}
	return txLog, nil
}

func (s *SurrealDB) AppendTransaction(ctx context.Context, t *portfolio.Transaction) error {
	if _, err := s.getUser(ctx, t.UserID); err != nil {
		return err
	}

	rec := &surrealTransaction{
		UserID:      t.UserID,
		Seq:         s.now().UnixNano(),
		Transaction: *t,
	}
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID(transactionTable, t.ID),
		"record": rec,
	}
	if _, err := surrealdb.Query[[]surrealTransaction](ctx, s.db, "CREATE $rid CONTENT $record", vars); err != nil {
		log.Error().Err(err).Str("UserID", t.UserID).Str("TransactionID", t.ID).Msg("could not append transaction")
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (s *SurrealDB) RemoveTransaction(ctx context.Context, userID, transactionID string) (*portfolio.Transaction, error) {
	rid := surrealmodels.NewRecordID(transactionTable, transactionID)
	rec, err := surrealdb.Select[surrealTransaction](ctx, s.db, rid)
	if err != nil {
		return nil, fmt.Errorf("select transaction: %w", err)
	}
	if rec == nil || rec.UserID != userID {
		return nil, portfolio.ErrTransactionNotFound
	}

	if _, err := surrealdb.Delete[surrealTransaction](ctx, s.db, rid); err != nil {
		log.Error().Err(err).Str("UserID", userID).Str("TransactionID", transactionID).Msg("could not delete transaction")
		return nil, fmt.Errorf("delete transaction: %w", err)
	}

	t := rec.Transaction
	return &t, nil
}

func (s *SurrealDB) UpdatePortfolioState(ctx context.Context, userID string, state *portfolio.PortfolioState) error {
	return s.UpdatePortfolio(ctx, userID, state, nil)
}

func (s *SurrealDB) UpdatePortfolioRisk(ctx context.Context, userID string, risk *portfolio.PortfolioRisk) error {
	return s.UpdatePortfolio(ctx, userID, nil, risk)
}

func (s *SurrealDB) UpdatePortfolio(ctx context.Context, userID string, state *portfolio.PortfolioState, risk *portfolio.PortfolioRisk) error {
	rec, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if state != nil {
		rec.State = state
	}
	if risk != nil {
		rec.Risk = risk
	}
	return s.putUser(ctx, rec)
}

func (s *SurrealDB) ListUsers(ctx context.Context) ([]string, error) {
	records, err := surrealdb.Select[[]surrealUser](ctx, s.db, surrealmodels.Table(userTable))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]string, 0)
	if records != nil {
		for _, rec := range *records {
			users = append(users, rec.UserID)
		}
	}
	sort.Strings(users)
	return users, nil
}
