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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wso2/identity-contact-resolution-service/internal/system/constants"
)

func TestParseConfig_AppliesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("log:\n  log_level: DEBUG\n"))
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Log.LogLevel)
	assert.Equal(t, "0.0.0.0", cfg.Addr.Host)
	assert.Equal(t, 8900, cfg.Addr.Port)
	assert.Equal(t, constants.PostgresStore, cfg.Store.Type)
	assert.Equal(t, "disable", cfg.DataSource.SSLMode)
	assert.Equal(t, constants.MaxRetryAttempts, cfg.Resolver.MaxRetryAttempts)
	assert.Equal(t, constants.RetryDelay, cfg.Resolver.RetryDelay())
	assert.Equal(t, constants.LockTimeout, cfg.Resolver.LockTimeout())
}

func TestParseConfig_ExpandsEnvironment(t *testing.T) {
	t.Setenv("CONTACT_DB_PASSWORD", "s3cret")
	raw := `
store:
  type: mongodb
datasource:
  hostname: db
  port: 5432
  password: ${CONTACT_DB_PASSWORD}
resolver:
  max_retry_attempts: 7
  retry_delay_ms: 20
`
	cfg, err := ParseConfig([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, constants.MongoDBStore, cfg.Store.Type)
	assert.Equal(t, "s3cret", cfg.DataSource.Password)
	assert.Equal(t, 5432, cfg.DataSource.Port)
	assert.Equal(t, 7, cfg.Resolver.MaxRetryAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.Resolver.RetryDelay())
}

func TestParseConfig_InvalidYAML(t *testing.T) {
	_, err := ParseConfig([]byte("addr: [unterminated"))
	assert.Error(t, err)
}

func TestLoadConfig_ReadsFromServiceHome(t *testing.T) {
	home := t.TempDir()
	confDir := filepath.Join(home, "repository", "conf")
	require.NoError(t, os.MkdirAll(confDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "deployment.yaml"),
		[]byte("addr:\n  port: 9100\n"), 0o600))

	cfg, err := LoadConfig(home, "/repository/conf/deployment.yaml")
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Addr.Port)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir(), "/repository/conf/deployment.yaml")
	assert.Error(t, err)
}
