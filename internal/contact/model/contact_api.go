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

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wso2/identity-contact-resolution-service/internal/system/utils"
)

// IdentifyRequest carries the contact signals of an identify call. phoneNumber is accepted either
// as a JSON string or a JSON number.
type IdentifyRequest struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

func (r *IdentifyRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Email       *string         `json:"email"`
		PhoneNumber json.RawMessage `json:"phoneNumber"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Email = ""
	if raw.Email != nil {
		r.Email = *raw.Email
	}

	phone, err := decodePhoneNumber(raw.PhoneNumber)
	if err != nil {
		return &utils.FieldError{Field: "phoneNumber", Err: err}
	}
	r.PhoneNumber = phone
	return nil
}

func decodePhoneNumber(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", fmt.Errorf("phoneNumber must be a string or a number")
	}
	return n.String(), nil
}

// Normalize trims surrounding whitespace from both signals.
func (r IdentifyRequest) Normalize() IdentifyRequest {
	return IdentifyRequest{
		Email:       strings.TrimSpace(r.Email),
		PhoneNumber: strings.TrimSpace(r.PhoneNumber),
	}
}

// IsEmpty reports whether neither signal is present.
func (r IdentifyRequest) IsEmpty() bool {
	n := r.Normalize()
	return n.Email == "" && n.PhoneNumber == ""
}

// ConsolidatedContact is the merged view of one identity component.
type ConsolidatedContact struct {
	PrimaryContactId    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIds []int64  `json:"secondaryContactIds"`
}
