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
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var natsConnection *nats.Conn
var jetStream nats.JetStreamContext

// Initialize connects to the server named by nats.server. Without a server
// the community feed stays disabled.
func Initialize() error {
	var err error
	url := viper.GetString("nats.server")
	if url == "" {
		log.Info().Msg("nats.server not set; community feed disabled")
		return nil
	}

	opts := make([]nats.Option, 0, 2)
	opts = append(opts, nats.Name("pvtracker"))
	credentialsFile := viper.GetString("nats.credentials")
	if credentialsFile != "" {
		opts = append(opts, nats.UserCredentials(credentialsFile))
	}

	log.Info().Str("NATSServer", url).Str("Credentials", credentialsFile).Msg("connecting to NATS server")
	if natsConnection, err = nats.Connect(url, opts...); err != nil {
		log.Error().Err(err).Msg("could not connect to NATS server")
		return err
	}

	jetStream, err = natsConnection.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		log.Error().Err(err).Msg("could not create jetstream context")
		return err
	}

	return nil
}

// Close drains pending messages and closes the connection
func Close() {
	if natsConnection == nil {
		return
	}
	if err := natsConnection.Drain(); err != nil {
		log.Warn().Err(err).Msg("could not drain NATS connection")
	}
	natsConnection = nil
	jetStream = nil
}

// DefaultFeed returns the community feed on the shared connection or nil
// when Initialize did not connect
func DefaultFeed() *Feed {
	if jetStream == nil {
		return nil
	}
	return NewFeed(jetStream, viper.GetString("nats.feed_subject"))
}
