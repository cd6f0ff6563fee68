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

package provider

import (
	"github.com/wso2/identity-contact-resolution-service/internal/contact/service"
	"github.com/wso2/identity-contact-resolution-service/internal/contact/store"
	"github.com/wso2/identity-contact-resolution-service/internal/system/config"
	"github.com/wso2/identity-contact-resolution-service/internal/system/metrics"
)

// ContactProviderInterface defines the interface for the contact provider.
type ContactProviderInterface interface {
	GetContactService() service.ContactServiceInterface
}

// ContactProvider builds the contact service on the store it is given.
type ContactProvider struct {
	contactService service.ContactServiceInterface
}

func NewContactProvider(transactor store.TransactorInterface, resolverConf config.ResolverConfig,
	serviceMetrics *metrics.Metrics) ContactProviderInterface {

	return &ContactProvider{
		contactService: service.NewContactService(transactor, resolverConf, serviceMetrics),
	}
}

// GetContactService returns the contact service instance.
func (cp *ContactProvider) GetContactService() service.ContactServiceInterface {
	return cp.contactService
}
