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

package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/wso2/identity-contact-resolution-service/internal/contact/model"
	"github.com/wso2/identity-contact-resolution-service/internal/contact/service"
	"github.com/wso2/identity-contact-resolution-service/internal/system/constants"
	sysContext "github.com/wso2/identity-contact-resolution-service/internal/system/context"
	"github.com/wso2/identity-contact-resolution-service/internal/system/errors"
	"github.com/wso2/identity-contact-resolution-service/internal/system/utils"
)

const maxRequestBodyBytes = 64 << 10

type ContactHandler struct {
	contactService service.ContactServiceInterface
}

func NewContactHandler(contactService service.ContactServiceInterface) *ContactHandler {
	return &ContactHandler{
		contactService: contactService,
	}
}

// IdentifyContact handles POST /identify.
func (ch *ContactHandler) IdentifyContact(w http.ResponseWriter, r *http.Request) {

	traceID := sysContext.GetOrGenerateTraceID(r.Context())

	var req model.IdentifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		errMsg := errors.WithDescription(errors.BAD_REQUEST, utils.HandleDecodeError(err, "identify"))
		utils.HandleError(w, errors.NewClientErrorWithTraceID(errMsg, http.StatusBadRequest, traceID), traceID)
		return
	}

	consolidated, err := ch.contactService.Identify(r.Context(), req)
	if err != nil {
		utils.HandleError(w, err, traceID)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, consolidated)
}

// GetContact handles GET /contacts/{id}.
func (ch *ContactHandler) GetContact(w http.ResponseWriter, r *http.Request) {

	traceID := sysContext.GetOrGenerateTraceID(r.Context())

	raw, contactId, ok := extractContactId(r.URL.Path)
	if !ok {
		errMsg := errors.WithDescription(errors.BAD_REQUEST,
			fmt.Sprintf("Contact id '%s' is not a positive integer.", raw))
		utils.HandleError(w, errors.NewClientErrorWithTraceID(errMsg, http.StatusBadRequest, traceID), traceID)
		return
	}

	consolidated, err := ch.contactService.GetConsolidatedContact(r.Context(), contactId)
	if err != nil {
		utils.HandleError(w, err, traceID)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, consolidated)
}

func extractContactId(path string) (string, int64, bool) {
	raw := strings.Trim(strings.TrimPrefix(path, constants.ContactsApiPath), "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	return raw, id, err == nil && id > 0
}
