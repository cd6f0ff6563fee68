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

package errors

const errorPrefix = "CIR-"

var (
	// Server error codes

	FETCH_CONTACT = ErrorMessage{
		Code:    errorPrefix + "15002",
		Message: "Error while fetching contact(s).",
	}

	ADD_CONTACT = ErrorMessage{
		Code:    errorPrefix + "15003",
		Message: "Error while adding contact.",
	}

	UPDATE_CONTACT = ErrorMessage{
		Code:    errorPrefix + "15004",
		Message: "Error while updating contact.",
	}

	LOCK_ACQUIRE = ErrorMessage{
		Code:    errorPrefix + "15005",
		Message: "Advisory lock acquisition failed",
	}

	DB_CLIENT_INIT = ErrorMessage{
		Code:    errorPrefix + "15006",
		Message: "Unable to initialize database client.",
	}

	LOCK_KEY_GEN = ErrorMessage{
		Code:    errorPrefix + "15008",
		Message: "Error generating advisory lock key",
	}

	TX_BEGIN = ErrorMessage{
		Code:    errorPrefix + "15009",
		Message: "Unable to start a transaction.",
	}

	TX_COMMIT = ErrorMessage{
		Code:    errorPrefix + "15010",
		Message: "Unable to commit the transaction.",
	}

	INTERNAL_SERVER_ERROR = ErrorMessage{
		Code:    errorPrefix + "15000",
		Message: "Internal server error.",
	}

	SCHEMA_INIT = ErrorMessage{
		Code:    errorPrefix + "15011",
		Message: "Unable to initialize the contact schema.",
	}

	// Client error codes
	BAD_REQUEST = ErrorMessage{
		Code:    errorPrefix + "11001",
		Message: "Invalid body format.",
	}

	INVALID_CONTACT_INPUT = ErrorMessage{
		Code:        errorPrefix + "11002",
		Message:     "Invalid contact input.",
		Description: "Invalid contact input. Provide at least email or phoneNumber.",
	}

	CONTACT_NOT_FOUND = ErrorMessage{
		Code:        errorPrefix + "11003",
		Message:     "Contact not found.",
		Description: "No contact record found for the given contact id.",
	}
)
