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

package services

import (
	"net/http"
	"strings"

	"github.com/wso2/identity-contact-resolution-service/internal/contact/handler"
	"github.com/wso2/identity-contact-resolution-service/internal/contact/provider"
	"github.com/wso2/identity-contact-resolution-service/internal/system/constants"
)

// ContactService handles routing for the contact resolution endpoints.
type ContactService struct {
	contactHandler *handler.ContactHandler
}

func NewContactService(contactProvider provider.ContactProviderInterface) *ContactService {
	return &ContactService{
		contactHandler: handler.NewContactHandler(contactProvider.GetContactService()),
	}
}

// Route dispatches requests whose path is relative to the API base path.
func (s *ContactService) Route(w http.ResponseWriter, r *http.Request) {

	path := strings.TrimSuffix(r.URL.Path, "/")
	method := r.Method

	switch {
	case method == http.MethodPost && path == constants.IdentifyApiPath:
		s.contactHandler.IdentifyContact(w, r)

	case method == http.MethodGet && strings.HasPrefix(path, constants.ContactsApiPath+"/"):
		s.contactHandler.GetContact(w, r)

	case path == constants.IdentifyApiPath || strings.HasPrefix(path, constants.ContactsApiPath+"/"):
		w.Header().Set("Allow", allowedMethods(path))
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)

	default:
		http.NotFound(w, r)
	}
}

func allowedMethods(path string) string {
	if path == constants.IdentifyApiPath {
		return http.MethodPost
	}
	return http.MethodGet
}
