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
	"sort"
	"sync"

	"github.com/penny-vault/pv-tracker/portfolio"
)

// Memory keeps every document in process. Values are copied on the way in
// and out so callers never share state with the store.
type Memory struct {
	mu    sync.RWMutex
	users map[string]*portfolio.User
	logs  map[string][]*portfolio.Transaction
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]*portfolio.User),
		logs:  make(map[string][]*portfolio.Transaction),
	}
}

// PutUser creates or replaces a user document; the log is kept
func (m *Memory) PutUser(u *portfolio.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = cloneUser(u)
}

func (m *Memory) GetUser(ctx context.Context, userID string) (*portfolio.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, portfolio.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (m *Memory) GetTransactionLog(ctx context.Context, userID string) ([]*portfolio.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.users[userID]; !ok {
		return nil, portfolio.ErrUserNotFound
	}
	txLog := m.logs[userID]
	res := make([]*portfolio.Transaction, len(txLog))
	for ii, t := range txLog {
		cp := *t
		res[ii] = &cp
	}
	return res, nil
}

func (m *Memory) AppendTransaction(ctx context.Context, t *portfolio.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[t.UserID]; !ok {
		return portfolio.ErrUserNotFound
	}
	cp := *t
	m.logs[t.UserID] = append(m.logs[t.UserID], &cp)
	return nil
}

func (m *Memory) RemoveTransaction(ctx context.Context, userID, transactionID string) (*portfolio.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return nil, portfolio.ErrUserNotFound
	}
	txLog := m.logs[userID]
	for ii, t := range txLog {
		if t.ID == transactionID {
			m.logs[userID] = append(txLog[:ii:ii], txLog[ii+1:]...)
			return t, nil
		}
	}
	return nil, portfolio.ErrTransactionNotFound
}

func (m *Memory) UpdatePortfolioState(ctx context.Context, userID string, state *portfolio.PortfolioState) error {
	return m.UpdatePortfolio(ctx, userID, state, nil)
}

func (m *Memory) UpdatePortfolioRisk(ctx context.Context, userID string, risk *portfolio.PortfolioRisk) error {
	return m.UpdatePortfolio(ctx, userID, nil, risk)
}

func (m *Memory) UpdatePortfolio(ctx context.Context, userID string, state *portfolio.PortfolioState, risk *portfolio.PortfolioRisk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return portfolio.ErrUserNotFound
	}
	if state != nil {
		u.State = cloneState(state)
	}
	if risk != nil {
		u.Risk = cloneRisk(risk)
	}
	return nil
}

func (m *Memory) ListUsers(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]string, 0, len(m.users))
	for id := range m.users {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

func cloneUser(u *portfolio.User) *portfolio.User {
	cp := *u
	cp.CashLedger = append([]portfolio.CashDeposit(nil), u.CashLedger...)
	cp.State = cloneState(u.State)
	cp.Risk = cloneRisk(u.Risk)
	return &cp
}

func cloneState(s *portfolio.PortfolioState) *portfolio.PortfolioState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Holdings = make([]*portfolio.HoldingState, len(s.Holdings))
	for ii, h := range s.Holdings {
		hs := *h
		cp.Holdings[ii] = &hs
	}
	return &cp
}

func cloneRisk(r *portfolio.PortfolioRisk) *portfolio.PortfolioRisk {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Sharpe != nil {
		s := *r.Sharpe
		cp.Sharpe = &s
	}
	return &cp
}
