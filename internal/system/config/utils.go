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
	"path"
	"time"

	"github.com/wso2/identity-contact-resolution-service/internal/system/constants"
	"gopkg.in/yaml.v2"
)

// LoadConfig reads the deployment file, expands ${ENV} references and applies defaults.
func LoadConfig(serviceHome, filePath string) (*Config, error) {
	file, err := os.ReadFile(path.Join(serviceHome, filePath))
	if err != nil {
		return nil, err
	}
	return ParseConfig(file)
}

// ParseConfig decodes a YAML deployment document.
func ParseConfig(raw []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Addr.Host == "" {
		c.Addr.Host = "0.0.0.0"
	}
	if c.Addr.Port == 0 {
		c.Addr.Port = 8900
	}
	if c.Log.LogLevel == "" {
		c.Log.LogLevel = "INFO"
	}
	if c.Store.Type == "" {
		c.Store.Type = constants.PostgresStore
	}
	if c.DataSource.SSLMode == "" {
		c.DataSource.SSLMode = "disable"
	}
	if c.MongoDB.Database == "" {
		c.MongoDB.Database = "contacts"
	}
	if c.Resolver.MaxRetryAttempts <= 0 {
		c.Resolver.MaxRetryAttempts = constants.MaxRetryAttempts
	}
	if c.Resolver.RetryDelayMs <= 0 {
		c.Resolver.RetryDelayMs = int(constants.RetryDelay / time.Millisecond)
	}
	if c.Resolver.LockTimeoutMs <= 0 {
		c.Resolver.LockTimeoutMs = int(constants.LockTimeout / time.Millisecond)
	}
}

// RetryDelay returns the configured back-off between identify retries.
func (r ResolverConfig) RetryDelay() time.Duration {
	return time.Duration(r.RetryDelayMs) * time.Millisecond
}

// LockTimeout returns how long a caller waits for the per-signal locks.
func (r ResolverConfig) LockTimeout() time.Duration {
	return time.Duration(r.LockTimeoutMs) * time.Millisecond
}
