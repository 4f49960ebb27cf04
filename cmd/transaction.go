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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/penny-vault/pv-tracker/portfolio"
)

var (
	txSymbolType  string
	txDate        string
	txCustomTotal float64
)

func init() {
	transactionAddCmd.Flags().StringVar(&txSymbolType, "symbol-type", string(portfolio.StockSymbol), "Kind of security one of: STOCK, ETF, FUND, or CRYPTO")
	transactionAddCmd.Flags().StringVar(&txDate, "date", "", "Trade date specified as YYYY-MM-DD")
	transactionAddCmd.Flags().Float64Var(&txCustomTotal, "total", 0, "Total value of the trade; overrides the live quote")
	transactionAddCmd.MarkFlagRequired("date")

	transactionCmd.AddCommand(transactionAddCmd)
	transactionCmd.AddCommand(transactionDeleteCmd)
	rootCmd.AddCommand(transactionCmd)
}

var transactionCmd = &cobra.Command{
	Use:   "transaction",
	Short: "Add or delete transactions in a user's log",
}

var transactionAddCmd = &cobra.Command{
	Use:   "add userID BUY|SELL symbol units",
	Short: "Validate, price and record a transaction",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		var units float64
		if _, err := fmt.Sscanf(args[3], "%g", &units); err != nil {
			return fmt.Errorf("units must be a number: %w", err)
		}

		in := portfolio.TransactionInput{
			UserID:     args[0],
			Type:       portfolio.TransactionType(strings.ToUpper(args[1])),
			Symbol:     args[2],
			SymbolType: portfolio.SymbolType(strings.ToUpper(txSymbolType)),
			Units:      units,
			Date:       txDate,
		}
		if cmd.Flags().Changed("total") {
			total := txCustomTotal
			in.CustomTotalValue = &total
		}

		ctx := context.Background()
		eng, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		t, err := eng.ValidateAndExecuteTransaction(ctx, in)
		if err != nil {
			if portfolio.IsValidationError(err) {
				return fmt.Errorf("transaction rejected: %w", err)
			}
			return err
		}

		printTransaction(t)
		return nil
	},
}

var transactionDeleteCmd = &cobra.Command{
	Use:   "delete userID transactionID",
	Short: "Remove a transaction from a user's log",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		eng, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		t, err := eng.DeleteTransaction(ctx, args[0], args[1])
		if err != nil {
			if errors.Is(err, portfolio.ErrInsufficientUnits) {
				return fmt.Errorf("a later sale depends on this transaction: %w", err)
			}
			return err
		}

		fmt.Println("deleted")
		printTransaction(t)
		return nil
	},
}

func printTransaction(t *portfolio.Transaction) {
	w := newTable()
	printRow(w, "ID", t.ID)
	printRow(w, "Date", t.Date)
	printRow(w, "Type", t.Type)
	printRow(w, "Symbol", fmt.Sprintf("%s (%s)", t.Symbol, t.SymbolType))
	printRow(w, "Units", fmt.Sprintf("%g", t.Units))
	printRow(w, "Unit price", formatMoney(t.UnitPrice))
	printRow(w, "Fees", formatMoney(t.Fees))
	if t.Type == portfolio.SellTransaction {
		printRow(w, "Realized", fmt.Sprintf("%s (%s)", formatMoney(t.RealizedReturnValue), formatRatio(t.RealizedReturnChange)))
	}
	w.Flush()
}

func printState(s *portfolio.PortfolioState) {
	w := newTable()
	printRow(w, "Date", s.Date)
	printRow(w, "Balance", formatMoney(s.Balance))
	printRow(w, "Holdings", formatMoney(s.HoldingsBalance))
	printRow(w, "Cash", formatMoney(s.CashOnHand))
	printRow(w, "Invested", formatMoney(s.Invested))
	printRow(w, "Gains", fmt.Sprintf("%s (%s)", formatMoney(s.TotalGainsValue), formatRatio(s.TotalGainsPercentage)))
	printRow(w, "Day change", fmt.Sprintf("%s (%s)", formatMoney(s.PreviousBalanceChange), formatRatio(s.PreviousBalanceChangePercentage)))
	printRow(w, "Fees", formatMoney(s.TransactionFees))
	printRow(w, "Trades", fmt.Sprintf("%d buys, %d sells", s.BuyCount, s.SellCount))
	if s.FirstTransactionDate != "" {
		printRow(w, "Active", fmt.Sprintf("%s to %s", s.FirstTransactionDate, s.LastTransactionDate))
	}
	w.Flush()

	if len(s.Holdings) == 0 {
		return
	}

	fmt.Println()
	w = newTable()
	printRow(w, "SYMBOL", "UNITS", "BREAK EVEN", "PRICE", "VALUE", "WEIGHT")
	for _, h := range s.Holdings {
		printRow(w, h.Symbol, fmt.Sprintf("%g", h.Units), formatMoney(h.BreakEvenPrice), formatMoney(h.Price), formatMoney(h.MarketValue), formatRatio(h.Weight))
	}
	w.Flush()
}
