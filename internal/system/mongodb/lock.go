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

package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/wso2/identity-contact-resolution-service/internal/system/database/lock"
	"github.com/wso2/identity-contact-resolution-service/internal/system/errors"
	"github.com/wso2/identity-contact-resolution-service/internal/system/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const lockPollInterval = 20 * time.Millisecond

// MongoLock implements a lease lock with one document per key in a dedicated collection. A held
// lock is a document whose _id is the key; a lease past expires_at may be taken over.
type MongoLock struct {
	Collection *mongo.Collection
	TTL        time.Duration
}

func NewMongoLock(db *mongo.Database, collection string, ttl time.Duration) *MongoLock {
	return &MongoLock{
		Collection: db.Collection(collection),
		TTL:        ttl,
	}
}

// EnsureIndexes lets MongoDB expire abandoned leases on its own.
func (l *MongoLock) EnsureIndexes(ctx context.Context) error {
	_, err := l.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

// Acquire tries once to take the lease for key.
func (l *MongoLock) Acquire(ctx context.Context, key string) (bool, error) {

	now := time.Now()
	_, err := l.Collection.InsertOne(ctx, bson.M{
		"_id":        key,
		"created_at": now,
		"expires_at": now.Add(l.TTL),
	})
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, err
	}

	// Held by someone else: take it over only when the lease has expired.
	if _, delErr := l.Collection.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lt": now}}); delErr != nil {
		return false, delErr
	}
	return false, nil
}

func (l *MongoLock) Release(ctx context.Context, key string) error {
	_, err := l.Collection.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

// AcquireAll takes every key in sorted order, polling until timeout. On failure the keys already
// taken are released. The returned function releases all of them.
func (l *MongoLock) AcquireAll(ctx context.Context, keys []string, timeout time.Duration) (func(), error) {

	logger := log.GetLogger()
	deadline := time.Now().Add(timeout)
	var held []string
	release := func() {
		for _, key := range held {
			// Release even when the request context is already cancelled.
			if err := l.Release(context.Background(), key); err != nil {
				logger.Warn("Failed to release contact lock", log.String("key", key), log.Error(err))
			}
		}
	}

	for _, key := range lock.SortedUniqueKeys(keys) {
		for {
			acquired, err := l.Acquire(ctx, key)
			if err != nil {
				release()
				errorMsg := fmt.Sprintf("Failed to acquire lock for key: %s", key)
				logger.Debug(errorMsg, log.Error(err))
				return nil, errors.NewServerError(errors.WithDescription(errors.LOCK_ACQUIRE, errorMsg), err)
			}
			if acquired {
				held = append(held, key)
				break
			}
			if time.Now().After(deadline) {
				release()
				errorMsg := fmt.Sprintf("Timed out waiting for lock on key: %s", key)
				return nil, errors.NewServerError(errors.WithDescription(errors.LOCK_ACQUIRE, errorMsg), ErrLockTimeout)
			}
			select {
			case <-ctx.Done():
				release()
				return nil, ctx.Err()
			case <-time.After(lockPollInterval):
			}
		}
	}
	return release, nil
}
