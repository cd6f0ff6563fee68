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

package lock

import (
	"context"
	"fmt"
	"hash/fnv" // For hashing string keys to integers
	"sort"
	"time"

	"github.com/wso2/identity-contact-resolution-service/internal/system/database/client"
	"github.com/wso2/identity-contact-resolution-service/internal/system/errors"
	"github.com/wso2/identity-contact-resolution-service/internal/system/log"
)

// TxLock acquires locks that live as long as the surrounding transaction.
type TxLock interface {
	AcquireAll(ctx context.Context, q client.Querier, keys []string) error
}

// PostgresXactLock implements TxLock using PostgreSQL transaction scoped advisory locks. The locks
// are released by the server on commit or rollback, so there is no Release.
type PostgresXactLock struct {
	timeout time.Duration
}

func NewPostgresXactLock(timeout time.Duration) *PostgresXactLock {
	return &PostgresXactLock{timeout: timeout}
}

// GenerateLockKey hashes a string key into the bigint space used by pg_advisory_xact_lock.
func GenerateLockKey(key string) (int64, error) {

	h := fnv.New64a()
	_, err := h.Write([]byte(key))
	if err != nil {
		errorMsg := fmt.Sprintf("failed to hash lock key '%s'", key)
		log.GetLogger().Debug(errorMsg, log.Error(err))
		return 0, errors.NewServerError(errors.WithDescription(errors.LOCK_KEY_GEN, errorMsg), err)
	}
	return int64(h.Sum64()), nil
}

// SortedUniqueKeys returns the keys deduplicated and sorted. Every caller acquiring locks in this
// order means two requests never wait on each other crosswise.
func SortedUniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	unique := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}
	sort.Strings(unique)
	return unique
}

// AcquireAll blocks until every key is locked or the lock timeout elapses.
func (l *PostgresXactLock) AcquireAll(ctx context.Context, q client.Querier, keys []string) error {

	logger := log.GetLogger()
	if l.timeout > 0 {
		// SET does not take bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", l.timeout.Milliseconds())
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			errorMsg := "Failed to set lock timeout for advisory locks."
			logger.Debug(errorMsg, log.Error(err))
			return errors.NewServerError(errors.WithDescription(errors.LOCK_ACQUIRE, errorMsg), err)
		}
	}

	for _, key := range SortedUniqueKeys(keys) {
		lockID, err := GenerateLockKey(key)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", lockID); err != nil {
			errorMsg := fmt.Sprintf("Failed to execute pg_advisory_xact_lock for key: %s", key)
			logger.Debug(errorMsg, log.Error(err))
			return errors.NewServerError(errors.WithDescription(errors.LOCK_ACQUIRE, errorMsg), err)
		}
		logger.Debug("Advisory lock acquired", log.String("key", key), log.Int64("lock_id", lockID))
	}
	return nil
}
