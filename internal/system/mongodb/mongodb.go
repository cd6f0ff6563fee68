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
	"errors"
	"fmt"
	"time"

	"github.com/wso2/identity-contact-resolution-service/internal/system/config"
	"github.com/wso2/identity-contact-resolution-service/internal/system/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// MongoDB struct holds the client and database handle
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Connect opens a MongoDB connection for the configured URI and verifies it with a ping.
func Connect(ctx context.Context, conf config.MongoDBConfig) (*MongoDB, error) {

	if conf.URI == "" {
		return nil, fmt.Errorf("mongodb uri is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb client creation failed: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping failed: %w", err)
	}

	log.GetLogger().Info("Connected to MongoDB", log.String("database", conf.Database))
	return &MongoDB{
		Client:   client,
		Database: client.Database(conf.Database),
	}, nil
}

// ErrLockTimeout is returned when a lease could not be taken before the lock timeout.
var ErrLockTimeout = errors.New("timed out waiting for contact lock")
