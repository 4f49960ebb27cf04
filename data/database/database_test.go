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

package database_test

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/penny-vault/pv-tracker/data/database"
)

var _ = Describe("Database", func() {
	var (
		dbPool pgxmock.PgxConnIface
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(dbPool.ExpectationsWereMet()).To(Succeed())
	})

	It("switches to the user's role", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectExec(`SET ROLE "user-1"`).WillReturnResult(pgconn.CommandTag("SET ROLE"))
		dbPool.ExpectCommit()

		trx, err := database.TrxForUser(ctx, "user-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(trx.Commit(ctx)).To(Succeed())
	})

	It("creates a missing role", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectExec(`SET ROLE "user-1"`).WillReturnError(errors.New("role does not exist"))
		dbPool.ExpectRollback()

		dbPool.ExpectBegin()
		dbPool.ExpectExec(`SET ROLE "pvtracker"`).WillReturnResult(pgconn.CommandTag("SET ROLE"))
		dbPool.ExpectExec(`CREATE ROLE "user-1" WITH nologin IN ROLE "pvtracker_user"`).WillReturnResult(pgconn.CommandTag("CREATE ROLE"))
		dbPool.ExpectExec(`GRANT "user-1" TO "pvtracker"`).WillReturnResult(pgconn.CommandTag("GRANT ROLE"))
		dbPool.ExpectCommit()

		dbPool.ExpectBegin()
		dbPool.ExpectExec(`SET ROLE "user-1"`).WillReturnResult(pgconn.CommandTag("SET ROLE"))
		dbPool.ExpectRollback()

		trx, err := database.TrxForUser(ctx, "user-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(trx.Rollback(ctx)).To(Succeed())
	})

	It("refuses an empty user id", func() {
		_, err := database.TrxForUser(ctx, "")
		Expect(err).To(MatchError(database.ErrEmptyUserID))
	})

	It("does not nest transactions", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectExec("SET ROLE").WillReturnResult(pgconn.CommandTag("SET ROLE"))
		dbPool.ExpectRollback()

		trx, err := database.Trx(ctx)
		Expect(err).NotTo(HaveOccurred())
		_, err = trx.Begin(ctx)
		Expect(err).To(MatchError(database.ErrUnsupported))
		Expect(trx.Rollback(ctx)).To(Succeed())
	})
})
