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
	"time"

	"github.com/penny-vault/pv-tracker/data"
	"github.com/penny-vault/pv-tracker/portfolio"
	"github.com/penny-vault/pv-tracker/risk"
	"github.com/penny-vault/pv-tracker/store"
)

// FeedPublisher receives every executed transaction
type FeedPublisher interface {
	PublishTransaction(ctx context.Context, t *portfolio.Transaction) error
}

type Option func(*Engine)

func WithFeed(feed FeedPublisher) Option {
	return func(e *Engine) {
		e.feed = feed
	}
}

func WithRisk(r *risk.Engine) Option {
	return func(e *Engine) {
		e.risk = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		e.loc = loc
	}
}

// WithMaxHistoryYears bounds the age of new transactions for users that do
// not set their own limit
func WithMaxHistoryYears(years int) Option {
	return func(e *Engine) {
		e.maxHistoryYears = years
	}
}

// WithFeeRate is the fee in percent of the trade value charged to users
// that enable fees without choosing a rate
func WithFeeRate(percent float64) Option {
	return func(e *Engine) {
		e.feeRatePercent = percent
	}
}

// Engine runs the portfolio operations of one user at a time against a
// document store and a market data provider
type Engine struct {
	store    store.Store
	provider data.Provider
	risk     *risk.Engine
	feed     FeedPublisher

	now             func() time.Time
	loc             *time.Location
	maxHistoryYears int
	feeRatePercent  float64
}

func New(st store.Store, provider data.Provider, opts ...Option) *Engine {
	e := &Engine{
		store:           st,
		provider:        provider,
		now:             time.Now,
		loc:             time.UTC,
		maxHistoryYears: 20,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.risk == nil {
		e.risk = risk.NewEngine(provider, risk.WithClock(e.now), risk.WithLocation(e.loc))
	}
	return e
}

func (e *Engine) Risk() *risk.Engine {
	return e.risk
}

// settings fills the engine defaults into the user's settings
func (e *Engine) settings(u *portfolio.User) *portfolio.User {
	cp := *u
	if cp.Settings.MaxHistoryYears == 0 {
		cp.Settings.MaxHistoryYears = e.maxHistoryYears
	}
	if cp.Settings.TransactionFeesActive && cp.Settings.FeeRatePercent == 0 {
		cp.Settings.FeeRatePercent = e.feeRatePercent
	}
	return &cp
}
