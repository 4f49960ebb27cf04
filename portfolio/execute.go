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
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-tracker/common"
	"github.com/penny-vault/pv-tracker/data"
)

// ExecutionInput is a transaction that passed Validate together with the
// values it is priced against
type ExecutionInput struct {
	Transaction TransactionInput
	User        *User
	Quote       *data.Quote
	Log         []*Transaction
}

// Execute prices a validated transaction. It does not persist anything.
func Execute(in *ExecutionInput) (*Transaction, error) {
	req := in.Transaction
	if in.Quote == nil {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, common.NormalizeSymbol(req.Symbol))
	}
	if !(req.Units > 0) {
		return nil, ErrUnitsNotPositive
	}

	symbol := common.NormalizeSymbol(req.Symbol)
	subLog := log.With().Str("UserID", req.UserID).Str("Symbol", symbol).Logger()

	unitPrice := in.Quote.Price
	if req.CustomTotalValue != nil {
		unitPrice = common.DivideMoney(*req.CustomTotalValue, req.Units)
	}

	t := &Transaction{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		Symbol:     symbol,
		SymbolType: req.SymbolType,
		Units:      req.Units,
		UnitPrice:  unitPrice,
		Date:       req.Date,
		Type:       req.Type,
	}

	if req.Type == SellTransaction {
		// break even is the position on the sell's date, before it is applied
		breakEven := HoldingAsOf(in.Log, symbol, req.Date).BreakEvenPrice()
		t.RealizedReturnValue = common.RoundMoney((unitPrice - breakEven) * req.Units)
		if breakEven != 0 {
			t.RealizedReturnChange = common.RoundPercent((unitPrice - breakEven) / breakEven)
		}
	}

	if in.User != nil && in.User.Settings.TransactionFeesActive {
		t.Fees = common.RoundMoney((req.Units * unitPrice / 100) * in.User.Settings.FeeRatePercent)
	}

	sourceID, err := SourceID(t)
	if err != nil {
		subLog.Error().Err(err).Msg("could not compute transaction source id")
		return nil, err
	}
	t.SourceID = sourceID

	subLog.Debug().Str("TransactionID", t.ID).Str("Type", string(t.Type)).Float64("Units", t.Units).
		Float64("UnitPrice", t.UnitPrice).Float64("Fees", t.Fees).Msg("executed transaction")

	return t, nil
}
