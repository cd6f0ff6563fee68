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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wso2/identity-contact-resolution-service/internal/system/mongodb"
	"github.com/wso2/identity-contact-resolution-service/test/setup"
)

func setupMongoTransactor(t *testing.T, lockTimeout time.Duration) *MongoTransactor {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongodb container test in short mode")
	}
	ctx := context.Background()

	mongo, err := setup.SetupTestMongo(ctx, "contacts_test")
	require.NoError(t, err)
	t.Cleanup(func() { mongo.Terminate(context.Background()) })

	return NewMongoTransactor(mongo.MongoDB, false, lockTimeout)
}

func TestMongoTransactor_Contract(t *testing.T) {
	runContactStoreContract(t, setupMongoTransactor(t, 2*time.Second), false)
}

func TestMongoTransactor_LeaseBlocksOtherUnitOfWork(t *testing.T) {
	transactor := setupMongoTransactor(t, 150*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, transactor.InitSchema(ctx))

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- transactor.WithinTx(ctx, []string{"contact:phone:+1"}, func(s ContactStoreInterface) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	err := transactor.WithinTx(ctx, []string{"contact:phone:+1"}, func(s ContactStoreInterface) error {
		return nil
	})
	assert.ErrorIs(t, err, mongodb.ErrLockTimeout)

	close(release)
	require.NoError(t, <-done)

	require.NoError(t, transactor.WithinTx(ctx, []string{"contact:phone:+1"},
		func(s ContactStoreInterface) error { return nil }))
}
