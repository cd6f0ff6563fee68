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
	"fmt"
	"time"
)

// LinkPrecedence tells whether a contact is the canonical record of its identity or subsumed by one.
type LinkPrecedence string

const (
	Primary   LinkPrecedence = "primary"
	Secondary LinkPrecedence = "secondary"
)

func ParseLinkPrecedence(value string) (LinkPrecedence, error) {
	switch LinkPrecedence(value) {
	case Primary:
		return Primary, nil
	case Secondary:
		return Secondary, nil
	default:
		return "", fmt.Errorf("unknown link precedence: %q", value)
	}
}

type Contact struct {
	Id             int64          `json:"id" bson:"_id"`
	Email          string         `json:"email,omitempty" bson:"email,omitempty"`
	PhoneNumber    string         `json:"phoneNumber,omitempty" bson:"phone_number,omitempty"`
	LinkedId       *int64         `json:"linkedId" bson:"linked_id"`
	LinkPrecedence LinkPrecedence `json:"linkPrecedence" bson:"link_precedence"`
	CreatedAt      time.Time      `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" bson:"updated_at"`
	DeletedAt      *time.Time     `json:"deletedAt,omitempty" bson:"deleted_at"`
}

func (c Contact) IsPrimary() bool {
	return c.LinkPrecedence == Primary
}

// IsLinkedTo reports whether the contact is a secondary pointing at primaryId.
func (c Contact) IsLinkedTo(primaryId int64) bool {
	return c.LinkPrecedence == Secondary && c.LinkedId != nil && *c.LinkedId == primaryId
}

// LinkTo turns the contact into a secondary of primaryId.
func (c *Contact) LinkTo(primaryId int64) {
	linked := primaryId
	c.LinkPrecedence = Secondary
	c.LinkedId = &linked
}

// Promote turns the contact into a primary with no link.
func (c *Contact) Promote() {
	c.LinkPrecedence = Primary
	c.LinkedId = nil
}

// Precedes orders contacts oldest first; contacts created at the same instant fall back to the
// smaller id.
func (c Contact) Precedes(other Contact) bool {
	if !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.Before(other.CreatedAt)
	}
	return c.Id < other.Id
}

// Validate checks the link invariants of a single record: a primary carries no link and a
// secondary links to some other contact.
func (c Contact) Validate() error {
	switch c.LinkPrecedence {
	case Primary:
		if c.LinkedId != nil {
			return fmt.Errorf("primary contact %d must not link to contact %d", c.Id, *c.LinkedId)
		}
	case Secondary:
		if c.LinkedId == nil {
			return fmt.Errorf("secondary contact %d has no linked contact", c.Id)
		}
		if *c.LinkedId == c.Id {
			return fmt.Errorf("secondary contact %d links to itself", c.Id)
		}
	default:
		return fmt.Errorf("contact %d has unknown link precedence %q", c.Id, c.LinkPrecedence)
	}
	return nil
}
