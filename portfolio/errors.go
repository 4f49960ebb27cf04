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

import "errors"

// Validation errors are user correctable; each names the rule that failed.
var (
	ErrUserNotFound               = errors.New("user not found")
	ErrTransactionHistoryNotFound = errors.New("transaction history not found")
	ErrSymbolNotFound             = errors.New("symbol not found")
	ErrUnitsNotPositive           = errors.New("units must be greater than zero")
	ErrUnitsNotInteger            = errors.New("units must be a whole number for non-crypto symbols")
	ErrDateInvalid                = errors.New("date is not a valid YYYY-MM-DD calendar day")
	ErrDateInFuture               = errors.New("date is in the future")
	ErrDateOnWeekend              = errors.New("date falls on a weekend")
	ErrDateTooOld                 = errors.New("date is older than the allowed history")
	ErrInsufficientCash           = errors.New("not enough cash on hand")
	ErrInsufficientUnits          = errors.New("not enough units held")
	ErrInvalidTransactionType     = errors.New("transaction type must be BUY or SELL")
	ErrTransactionNotFound        = errors.New("transaction not found")
)

var (
	ErrGenerateHash = errors.New("could not generate transaction source id")
)

// IsValidationError reports whether err is one of the user correctable errors
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrSymbolNotFound, ErrUnitsNotPositive, ErrUnitsNotInteger, ErrDateInvalid,
		ErrDateInFuture, ErrDateOnWeekend, ErrDateTooOld, ErrInsufficientCash,
		ErrInsufficientUnits, ErrInvalidTransactionType,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
