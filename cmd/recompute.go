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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var recomputeAll bool
var recomputeStateOnly bool

func init() {
	recomputeCmd.Flags().BoolVar(&recomputeAll, "all", false, "Recompute every user in the store")
	recomputeCmd.Flags().BoolVar(&recomputeStateOnly, "state-only", false, "Only recompute the portfolio state, leave risk untouched")
	rootCmd.AddCommand(recomputeCmd)
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute [userID]",
	Short: "Recompute the portfolio state and risk of a user",
	Long: `Derive the portfolio state from the user's transaction log and the
current quotes, compute the risk statistics, and save both. With --all every
user in the store is recomputed; users that fail are reported and skipped.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if recomputeAll && len(args) != 0 {
			return errors.New("--all does not take a user id")
		}
		if !recomputeAll && len(args) != 1 {
			return errors.New("requires a user id or --all")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		eng, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if recomputeAll {
			updated, failed, err := eng.RecomputeAll(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("NumUpdated", updated).Int("NumFailed", len(failed)).Msg("recomputed portfolios")
			fmt.Printf("updated %d users, %d failed\n", updated, len(failed))
			for userID, err := range failed {
				fmt.Printf("  %s: %s\n", userID, err)
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d users could not be recomputed", len(failed))
			}
			return nil
		}

		userID := args[0]
		if recomputeStateOnly {
			state, err := eng.RecomputePortfolioState(ctx, userID)
			if err != nil {
				return err
			}
			printState(state)
			return nil
		}

		state, res, err := eng.Recompute(ctx, userID)
		if err != nil {
			return err
		}
		printState(state)
		fmt.Println()
		printRisk(res)
		return nil
	},
}
