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
	"math"
	"time"

	"github.com/penny-vault/pv-tracker/calendar"
	"github.com/penny-vault/pv-tracker/common"
	"github.com/penny-vault/pv-tracker/data"
)

// ValidationInput is everything Validate needs. It holds no reference to a
// store or provider; the caller resolves the quote and the log first.
type ValidationInput struct {
	Transaction TransactionInput
	User        *User

	// Quote is nil when the symbol did not resolve to a live quote
	Quote *data.Quote
	Log   []*Transaction

	Now      time.Time
	Location *time.Location

	// MaxHistoryYears bounds how far back a transaction may be dated; 0
	// disables the check
	MaxHistoryYears int
}

// Validate checks a proposed transaction against the rules below, in order,
// and returns the first violation
//
//  1. units > 0
//  2. units are whole unless the symbol is a crypto currency
//  3. the symbol has a live quote
//  4. the date is a valid calendar day
//  5. the date is before now
//  6. the date is not a Saturday or Sunday
//  7. the date is within MaxHistoryYears of now
//  8. a BUY does not cost more than the deposited cash (cash accounting only)
//  9. a SELL does not exceed the units held on its date and leaves every
//     later SELL covered
func Validate(in *ValidationInput) error {
	t := in.Transaction

	if t.Type != BuyTransaction && t.Type != SellTransaction {
		return fmt.Errorf("%w: %q", ErrInvalidTransactionType, t.Type)
	}

	if !(t.Units > 0) {
		return ErrUnitsNotPositive
	}

	if t.SymbolType != CryptoSymbol && math.Trunc(t.Units) != t.Units {
		return ErrUnitsNotInteger
	}

	if in.Quote == nil {
		return fmt.Errorf("%w: %s", ErrSymbolNotFound, common.NormalizeSymbol(t.Symbol))
	}

	loc := in.Location
	if loc == nil {
		loc = in.Now.Location()
	}

	day, err := calendar.ParseDay(t.Date, loc)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrDateInvalid, t.Date)
	}

	if !day.Before(in.Now) {
		return ErrDateInFuture
	}

	if calendar.IsWeekend(day) {
		return ErrDateOnWeekend
	}

	if in.MaxHistoryYears > 0 && day.Before(calendar.YearsBefore(in.Now, in.MaxHistoryYears, loc)) {
		return fmt.Errorf("%w: limit is %d years", ErrDateTooOld, in.MaxHistoryYears)
	}

	switch t.Type {
	case BuyTransaction:
		if in.User != nil && in.User.Settings.CashAccounting {
			cost := common.RoundMoney(t.Units * in.Quote.Price)
			if t.CustomTotalValue != nil {
				cost = common.RoundMoney(*t.CustomTotalValue)
			}
			if cost > common.RoundMoney(in.User.DepositedCash()) {
				return ErrInsufficientCash
			}
		}
	case SellTransaction:
		held := HoldingAsOf(in.Log, t.Symbol, t.Date)
		if held.Units+unitTolerance < t.Units {
			return fmt.Errorf("%w: %s holds %g units on %s", ErrInsufficientUnits, held.Symbol, held.Units, t.Date)
		}
		// a backdated sell must also leave every later sell covered
		candidate := &Transaction{
			Symbol:    common.NormalizeSymbol(t.Symbol),
			Units:     t.Units,
			UnitPrice: in.Quote.Price,
			Date:      t.Date,
			Type:      SellTransaction,
		}
		withCandidate := make([]*Transaction, 0, len(in.Log)+1)
		withCandidate = append(withCandidate, in.Log...)
		if err := CheckLog(append(withCandidate, candidate)); err != nil {
			return err
		}
	}

	return nil
}
