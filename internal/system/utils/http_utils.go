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

package utils

import (
	"encoding/json"
	"errors" // Standard Go errors package
	"net/http"

	customerrors "github.com/wso2/identity-contact-resolution-service/internal/system/errors"
	"github.com/wso2/identity-contact-resolution-service/internal/system/log"
)

// HandleError sends an HTTP error response based on the provided error. Client errors carry their
// catalogue entry; anything else is logged and rendered as a 500 without internals.
func HandleError(w http.ResponseWriter, err error, traceID string) {

	var clientError *customerrors.ClientError
	if ok := errors.As(err, &clientError); ok {
		body := clientError.ErrorMessage
		if body.TraceID == "" {
			body.TraceID = traceID
		}
		WriteJSONResponse(w, clientError.StatusCode, body)
		return
	}

	logger := log.GetLogger()
	var serverError *customerrors.ServerError
	if ok := errors.As(err, &serverError); ok {
		logger.Error(serverError.Error(), log.String("trace_id", traceID), log.String("code", serverError.Code),
			log.Error(serverError.Unwrap()))
	} else {
		logger.Error("Unexpected error while serving request", log.String("trace_id", traceID), log.Error(err))
	}

	WriteJSONResponse(w, http.StatusInternalServerError, customerrors.ErrorMessage{
		Code:    customerrors.INTERNAL_SERVER_ERROR.Code,
		Message: customerrors.INTERNAL_SERVER_ERROR.Message,
		TraceID: traceID,
	})
}

// WriteJSONResponse is a common helper for JSON encoding.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
