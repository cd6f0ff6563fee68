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

package setup

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wso2/identity-contact-resolution-service/internal/system/config"
	"github.com/wso2/identity-contact-resolution-service/internal/system/log"
	"github.com/wso2/identity-contact-resolution-service/internal/system/mongodb"
)

type TestMongo struct {
	Container testcontainers.Container
	MongoDB   *mongodb.MongoDB
}

// SetupTestMongo starts a standalone MongoDB. Standalone servers do not support transactions, so
// the returned config leaves them disabled.
func SetupTestMongo(ctx context.Context, database string) (*TestMongo, error) {
	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	db, err := mongodb.Connect(ctx, config.MongoDBConfig{
		URI:      fmt.Sprintf("mongodb://%s:%s", host, port.Port()),
		Database: database,
	})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	log.GetLogger().Info("MongoDB container started", log.String("host", host), log.String("port", port.Port()))
	return &TestMongo{Container: container, MongoDB: db}, nil
}

func (m *TestMongo) Terminate(ctx context.Context) {
	_ = m.MongoDB.Client.Disconnect(ctx)
	_ = m.Container.Terminate(ctx)
}
