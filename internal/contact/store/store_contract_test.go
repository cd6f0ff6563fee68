/*
 * Copyright (c) 2025, WSO2 LLC. (http://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package store

import (
	"context"
	goerrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wso2/identity-contact-resolution-service/internal/contact/model"
	"github.com/wso2/identity-contact-resolution-service/internal/system/errors"
)

func contactIds(contacts []model.Contact) []int64 {
	ids := make([]int64, 0, len(contacts))
	for _, contact := range contacts {
		ids = append(ids, contact.Id)
	}
	return ids
}

// runContactStoreContract checks the behaviour every backend must share. The backend must start
// without contacts using the addresses below. atomic tells whether a failed unit of work leaves no
// writes behind.
func runContactStoreContract(t *testing.T, transactor TransactorInterface, atomic bool) {
	ctx := context.Background()
	require.NoError(t, transactor.InitSchema(ctx))
	require.NoError(t, transactor.Ping(ctx))

	var primary, secondary *model.Contact
	err := transactor.WithinTx(ctx, []string{"contact:email:contract@example.com", "contact:phone:+100"},
		func(s ContactStoreInterface) error {
			var err error
			primary, err = s.Create(ctx, model.Contact{Email: "contract@example.com", PhoneNumber: "+100",
				LinkPrecedence: model.Primary})
			if err != nil {
				return err
			}
			linked := primary.Id
			secondary, err = s.Create(ctx, model.Contact{Email: "other@example.com", PhoneNumber: "+100",
				LinkedId: &linked, LinkPrecedence: model.Secondary})
			return err
		})
	require.NoError(t, err)
	require.NotNil(t, primary)
	require.NotNil(t, secondary)
	assert.NotZero(t, primary.Id)
	assert.Greater(t, secondary.Id, primary.Id)
	assert.False(t, primary.CreatedAt.IsZero())
	assert.False(t, secondary.CreatedAt.Before(primary.CreatedAt))

	t.Run("reads", func(t *testing.T) {
		err := transactor.WithinTx(ctx, nil, func(s ContactStoreInterface) error {
			byEmail, err := s.FindBySignals(ctx, "contract@example.com", "")
			require.NoError(t, err)
			assert.Equal(t, []int64{primary.Id}, contactIds(byEmail))

			byPhone, err := s.FindBySignals(ctx, "", "+100")
			require.NoError(t, err)
			assert.Equal(t, []int64{primary.Id, secondary.Id}, contactIds(byPhone))

			byEither, err := s.FindBySignals(ctx, "other@example.com", "+999")
			require.NoError(t, err)
			assert.Equal(t, []int64{secondary.Id}, contactIds(byEither))

			none, err := s.FindBySignals(ctx, "", "")
			require.NoError(t, err)
			assert.Empty(t, none)

			members, err := s.FindComponentMembers(ctx, primary.Id)
			require.NoError(t, err)
			assert.Equal(t, []int64{primary.Id, secondary.Id}, contactIds(members))

			fromPrimary, err := s.FindLinkedEitherDirection(ctx, primary.Id)
			require.NoError(t, err)
			assert.Equal(t, []int64{secondary.Id}, contactIds(fromPrimary))

			fromSecondary, err := s.FindLinkedEitherDirection(ctx, secondary.Id)
			require.NoError(t, err)
			assert.Equal(t, []int64{primary.Id}, contactIds(fromSecondary))

			found, err := s.FindById(ctx, secondary.Id)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, "other@example.com", found.Email)
			assert.True(t, found.IsLinkedTo(primary.Id))

			missing, err := s.FindById(ctx, secondary.Id+1000)
			require.NoError(t, err)
			assert.Nil(t, missing)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed unit of work is discarded", func(t *testing.T) {
		if !atomic {
			t.Skip("backend commits writes as they happen")
		}
		errBoom := goerrors.New("boom")
		err := transactor.WithinTx(ctx, []string{"contact:email:rollback@example.com"},
			func(s ContactStoreInterface) error {
				if _, err := s.Create(ctx, model.Contact{Email: "rollback@example.com",
					LinkPrecedence: model.Primary}); err != nil {
					return err
				}
				return errBoom
			})
		assert.ErrorIs(t, err, errBoom)

		_ = transactor.WithinTx(ctx, nil, func(s ContactStoreInterface) error {
			found, err := s.FindBySignals(ctx, "rollback@example.com", "")
			require.NoError(t, err)
			assert.Empty(t, found)
			return nil
		})
	})

	t.Run("update changes link", func(t *testing.T) {
		err := transactor.WithinTx(ctx, nil, func(s ContactStoreInterface) error {
			promoted := *secondary
			promoted.Promote()
			require.NoError(t, s.Update(ctx, promoted))

			found, err := s.FindById(ctx, secondary.Id)
			require.NoError(t, err)
			assert.True(t, found.IsPrimary())
			assert.Nil(t, found.LinkedId)

			found.LinkTo(primary.Id)
			require.NoError(t, s.Update(ctx, *found))
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("rejects invalid writes", func(t *testing.T) {
		err := transactor.WithinTx(ctx, nil, func(s ContactStoreInterface) error {
			_, createErr := s.Create(ctx, model.Contact{Email: "x@example.com", LinkPrecedence: model.Secondary})
			var serverErr *errors.ServerError
			assert.ErrorAs(t, createErr, &serverErr)

			updateErr := s.Update(ctx, model.Contact{Id: secondary.Id + 1000, LinkPrecedence: model.Primary})
			assert.ErrorAs(t, updateErr, &serverErr)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("lock keys are taken once per unit of work", func(t *testing.T) {
		err := transactor.WithinTx(ctx, []string{"contact:email:held@example.com"},
			func(s ContactStoreInterface) error {
				again, err := s.LockKeys(ctx, []string{"contact:email:held@example.com"})
				require.NoError(t, err)
				assert.False(t, again)

				if _, ok := transactor.(*MemoryTransactor); ok {
					return nil
				}
				extended, err := s.LockKeys(ctx, []string{"contact:email:held@example.com", "contact:phone:+200"})
				require.NoError(t, err)
				assert.True(t, extended)
				return nil
			})
		require.NoError(t, err)
	})
}
