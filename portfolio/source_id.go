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

package portfolio

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// SourceID is a digest of the transaction id and the fields of the trade.
// Republishing a transaction hashes to the same value, which lets consumers
// of the community feed discard redeliveries, while two separately entered
// trades with the same fields stay distinct.
func SourceID(t *Transaction) (string, error) {
	h := blake3.New()

	if _, err := fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|", t.ID, t.UserID, t.Date, t.Symbol, t.SymbolType, t.Type); err != nil {
		log.Error().Stack().Err(err).Msg("could not write transaction identity to blake3 hasher")
		return "", err
	}

	if _, err := fmt.Fprintf(h, "%.8f|%.5f|%.5f", t.Units, t.UnitPrice, t.Fees); err != nil {
		log.Error().Stack().Err(err).Msg("could not write transaction amounts to blake3 hasher")
		return "", err
	}

	digest := h.Digest()
	buf := make([]byte, 16)
	n, err := digest.Read(buf)
	if err != nil {
		return "", err
	}
	if n != 16 {
		return "", ErrGenerateHash
	}

	return hex.EncodeToString(buf), nil
}
