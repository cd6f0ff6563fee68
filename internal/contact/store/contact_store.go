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

package store

import (
	"context"
	"sort"

	"github.com/wso2/identity-contact-resolution-service/internal/contact/model"
)

// ContactStoreInterface is the view of contact storage available inside one unit of work.
// Every read skips soft deleted contacts.
type ContactStoreInterface interface {
	// FindBySignals returns contacts whose email equals email or whose phone number equals
	// phoneNumber. Empty signals never match.
	FindBySignals(ctx context.Context, email, phoneNumber string) ([]model.Contact, error)
	// FindComponentMembers returns the contact rootId and every contact linked to it.
	FindComponentMembers(ctx context.Context, rootId int64) ([]model.Contact, error)
	// FindLinkedEitherDirection returns contacts linked to contactId and the contact it links to.
	FindLinkedEitherDirection(ctx context.Context, contactId int64) ([]model.Contact, error)
	FindById(ctx context.Context, contactId int64) (*model.Contact, error)
	// Create assigns the id and timestamps of the new contact.
	Create(ctx context.Context, contact model.Contact) (*model.Contact, error)
	// Update persists the link precedence and linked id of an existing contact.
	Update(ctx context.Context, contact model.Contact) error
	// LockKeys extends the locks of the unit of work with keys. Keys already held are skipped.
	// It reports whether any new key was taken.
	LockKeys(ctx context.Context, keys []string) (bool, error)
}

// TransactorInterface runs work atomically against a contact store backend.
type TransactorInterface interface {
	// WithinTx holds the locks named by lockKeys for the whole unit of work, commits when fn
	// returns nil and discards every write otherwise.
	WithinTx(ctx context.Context, lockKeys []string, fn func(store ContactStoreInterface) error) error
	// InitSchema creates tables, collections and indexes when missing.
	InitSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// newKeys returns the keys not yet in held and marks them as held.
func newKeys(held map[string]struct{}, keys []string) []string {
	var fresh []string
	for _, key := range keys {
		if _, ok := held[key]; ok || key == "" {
			continue
		}
		held[key] = struct{}{}
		fresh = append(fresh, key)
	}
	return fresh
}

func heldSet(keys []string) map[string]struct{} {
	held := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		held[key] = struct{}{}
	}
	return held
}

// sortContacts orders contacts oldest first.
func sortContacts(contacts []model.Contact) {
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].Precedes(contacts[j])
	})
}
