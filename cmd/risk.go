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
	"time"

	"github.com/spf13/cobra"

	"github.com/penny-vault/pv-tracker/portfolio"
)

func init() {
	rootCmd.AddCommand(riskCmd)
}

var riskCmd = &cobra.Command{
	Use:   "risk userID",
	Short: "Recompute the risk statistics of a user's holdings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		eng, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := eng.RecomputePortfolioRisk(ctx, args[0])
		if err != nil {
			return err
		}
		printRisk(res)
		return nil
	},
}

func printRisk(res *portfolio.PortfolioRisk) {
	w := newTable()
	printRow(w, "Beta", fmt.Sprintf("%.4f", res.Beta))
	printRow(w, "Alpha", fmt.Sprintf("%.4f", res.Alpha))
	if res.Sharpe != nil {
		printRow(w, "Sharpe", fmt.Sprintf("%.4f", *res.Sharpe))
	} else {
		printRow(w, "Sharpe", "n/a")
	}
	printRow(w, "Volatility", formatRatio(res.Volatility))
	printRow(w, "Computed", res.ComputedAt.Format(time.RFC3339))
	if res.Degraded {
		printRow(w, "Degraded", "yes")
	}
	w.Flush()
}
