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
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	contactProvider "github.com/wso2/identity-contact-resolution-service/internal/contact/provider"
	healthProvider "github.com/wso2/identity-contact-resolution-service/internal/health_check/provider"
	"github.com/wso2/identity-contact-resolution-service/internal/system/constants"
	"github.com/wso2/identity-contact-resolution-service/internal/system/services"
)

type ServiceManagerInterface interface {
	RegisterServices(apiBasePath string) error
}

// Dependencies are the providers the registered services are built from. A nil Gatherer leaves
// /metrics unregistered.
type Dependencies struct {
	ContactProvider contactProvider.ContactProviderInterface
	HealthProvider  healthProvider.HealthCheckProviderInterface
	Gatherer        prometheus.Gatherer
}

type ServiceManager struct {
	mux  *http.ServeMux
	deps Dependencies
}

// NewServiceManager creates a new instance of ServiceManager.
func NewServiceManager(mux *http.ServeMux, deps Dependencies) ServiceManagerInterface {

	return &ServiceManager{
		mux:  mux,
		deps: deps,
	}
}

func (sm *ServiceManager) RegisterServices(apiBasePath string) error {

	contactService := services.NewContactService(sm.deps.ContactProvider)
	healthService := services.NewHealthService(sm.deps.HealthProvider)

	sm.mux.HandleFunc(constants.HealthApiPath, healthService.Route)
	sm.mux.HandleFunc(constants.ReadyApiPath, healthService.Route)
	if sm.deps.Gatherer != nil {
		sm.mux.Handle(constants.MetricsApiPath, promhttp.HandlerFor(sm.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Unversioned paths kept for existing clients
	sm.mux.HandleFunc(constants.IdentifyApiPath, contactService.Route)
	sm.mux.HandleFunc(constants.ContactsApiPath+"/", contactService.Route)

	// Single dispatcher for everything under the API base path
	sm.mux.HandleFunc(apiBasePath+"/", func(w http.ResponseWriter, r *http.Request) {
		relativePath := strings.TrimPrefix(r.URL.Path, apiBasePath)

		switch {
		case strings.HasPrefix(relativePath, constants.IdentifyApiPath),
			strings.HasPrefix(relativePath, constants.ContactsApiPath):
			r.URL.Path = relativePath
			contactService.Route(w, r)
		default:
			http.NotFound(w, r)
		}
	})
	return nil
}
