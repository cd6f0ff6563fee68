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

package managers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contactProvider "github.com/wso2/identity-contact-resolution-service/internal/contact/provider"
	"github.com/wso2/identity-contact-resolution-service/internal/contact/store"
	healthProvider "github.com/wso2/identity-contact-resolution-service/internal/health_check/provider"
	"github.com/wso2/identity-contact-resolution-service/internal/system/config"
	"github.com/wso2/identity-contact-resolution-service/internal/system/constants"
	"github.com/wso2/identity-contact-resolution-service/internal/system/metrics"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	registry := prometheus.NewRegistry()
	transactor := store.NewMemoryTransactor()

	mux := http.NewServeMux()
	err := NewServiceManager(mux, Dependencies{
		ContactProvider: contactProvider.NewContactProvider(transactor, config.ResolverConfig{},
			metrics.New(registry)),
		HealthProvider: healthProvider.NewHealthCheckProvider(transactor),
		Gatherer:       registry,
	}).RegisterServices(constants.ApiBasePath)
	require.NoError(t, err)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestRegisterServices_RoutesContactEndpoints(t *testing.T) {
	mux := newTestMux(t)

	first := do(mux, http.MethodPost, "/identify", `{"email":"a@example.com","phoneNumber":"1"}`)
	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `{"primaryContactId":1,"emails":["a@example.com"],"phoneNumbers":["1"],"secondaryContactIds":[]}`,
		first.Body.String())

	second := do(mux, http.MethodPost, constants.ApiBasePath+"/identify", `{"email":"b@example.com","phoneNumber":"1"}`)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, `{"primaryContactId":1,"emails":["a@example.com","b@example.com"],"phoneNumbers":["1"],
		"secondaryContactIds":[2]}`, second.Body.String())

	lookup := do(mux, http.MethodGet, constants.ApiBasePath+"/contacts/2", "")
	require.Equal(t, http.StatusOK, lookup.Code)
	assert.JSONEq(t, second.Body.String(), lookup.Body.String())

	invalid := do(mux, http.MethodPost, "/identify", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, invalid.Code)

	assert.Equal(t, http.StatusMethodNotAllowed, do(mux, http.MethodGet, "/identify", "").Code)
	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodGet, constants.ApiBasePath+"/unknown", "").Code)
}

func TestRegisterServices_HealthAndMetrics(t *testing.T) {
	mux := newTestMux(t)

	assert.Equal(t, http.StatusOK, do(mux, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(mux, http.MethodGet, "/ready", "").Code)

	do(mux, http.MethodPost, "/identify", `{"email":"a@example.com"}`)
	scrape := do(mux, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, scrape.Code)
	assert.Contains(t, scrape.Body.String(), `contact_identify_outcomes_total{outcome="new_primary"} 1`)
}
