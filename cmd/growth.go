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
	"fmt"

	"github.com/spf13/cobra"
)

var growthSymbol string

func init() {
	growthCmd.Flags().StringVar(&growthSymbol, "symbol", "", "Only reconstruct the growth of this symbol")
	rootCmd.AddCommand(growthCmd)
}

var growthCmd = &cobra.Command{
	Use:   "growth userID",
	Short: "Print the day by day value of a user's positions",
	Long: `Reconstruct the daily market value of each position from its first
transaction through yesterday. Without --symbol every symbol in the log is
printed followed by the combined portfolio curve.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		eng, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		points, err := eng.ReconstructGrowth(ctx, args[0], growthSymbol)
		if err != nil {
			return err
		}

		w := newTable()
		printRow(w, "SYMBOL", "DATE", "PRICE", "UNITS", "VALUE")
		for _, p := range points {
			printRow(w, p.Symbol, p.Date, formatMoney(p.Price), fmt.Sprintf("%g", p.Units), formatMoney(p.MarketValue))
		}
		return w.Flush()
	},
}
