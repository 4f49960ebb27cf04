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

package messenger

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-tracker/portfolio"
)

const DefaultFeedSubject = "community.transactions"

// Publisher is the part of a JetStream context the feed uses
type Publisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// CommunityTransaction is the anonymized form of a trade shared with other
// users. It carries no user id, unit count or realized return.
type CommunityTransaction struct {
	SourceID   string                    `json:"source_id"`
	Symbol     string                    `json:"symbol"`
	SymbolType portfolio.SymbolType      `json:"symbol_type"`
	Type       portfolio.TransactionType `json:"type"`
	Date       string                    `json:"date"`
	UnitPrice  float64                   `json:"unit_price"`
}

// Feed publishes executed transactions to the community subject
type Feed struct {
	js      Publisher
	subject string
}

func NewFeed(js Publisher, subject string) *Feed {
	if subject == "" {
		subject = DefaultFeedSubject
	}
	return &Feed{
		js:      js,
		subject: subject,
	}
}

func (f *Feed) Subject() string {
	return f.subject
}

// PublishTransaction sends t to the feed. The source id, or the transaction
// id when there is none, is the message id so the server drops redeliveries
// of the same transaction.
func (f *Feed) PublishTransaction(ctx context.Context, t *portfolio.Transaction) error {
	payload, err := json.Marshal(CommunityTransaction{
		SourceID:   t.SourceID,
		Symbol:     t.Symbol,
		SymbolType: t.SymbolType,
		Type:       t.Type,
		Date:       t.Date,
		UnitPrice:  t.UnitPrice,
	})
	if err != nil {
		log.Error().Err(err).Str("TransactionID", t.ID).Msg("could not serialize transaction to JSON")
		return err
	}

	msgID := t.SourceID
	if msgID == "" {
		msgID = t.ID
	}
	opts := []nats.PubOpt{nats.Context(ctx)}
	if msgID != "" {
		opts = append(opts, nats.MsgId(msgID))
	}

	if _, err := f.js.Publish(f.subject, payload, opts...); err != nil {
		log.Error().Err(err).Str("TransactionID", t.ID).Str("Subject", f.subject).Msg("could not publish transaction")
		return err
	}

	return nil
}
