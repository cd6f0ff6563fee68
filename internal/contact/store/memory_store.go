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
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/wso2/identity-contact-resolution-service/internal/contact/model"
	"github.com/wso2/identity-contact-resolution-service/internal/system/errors"
)

// MemoryTransactor keeps contacts in process memory. A single mutex serializes every unit of work,
// which is stricter than per signal locking, and writes are staged on a copy that only replaces
// the live state on success.
type MemoryTransactor struct {
	mu       sync.Mutex
	contacts map[int64]model.Contact
	nextId   int64
	clock    func() time.Time
}

func NewMemoryTransactor() *MemoryTransactor {
	return &MemoryTransactor{
		contacts: make(map[int64]model.Contact),
		clock:    time.Now,
	}
}

// WithClock replaces the time source used for created and updated timestamps.
func (t *MemoryTransactor) WithClock(clock func() time.Time) *MemoryTransactor {
	t.clock = clock
	return t
}

// Seed stores contacts as given, assigning ids to those without one. Used to load fixtures.
func (t *MemoryTransactor) Seed(contacts ...model.Contact) []model.Contact {
	t.mu.Lock()
	defer t.mu.Unlock()

	seeded := make([]model.Contact, 0, len(contacts))
	for _, contact := range contacts {
		if contact.Id == 0 {
			t.nextId++
			contact.Id = t.nextId
		} else if contact.Id > t.nextId {
			t.nextId = contact.Id
		}
		if contact.CreatedAt.IsZero() {
			contact.CreatedAt = t.clock()
		}
		if contact.UpdatedAt.IsZero() {
			contact.UpdatedAt = contact.CreatedAt
		}
		t.contacts[contact.Id] = contact
		seeded = append(seeded, contact)
	}
	return seeded
}

// Snapshot returns every stored contact, soft deleted ones included, oldest first.
func (t *MemoryTransactor) Snapshot() []model.Contact {
	t.mu.Lock()
	defer t.mu.Unlock()

	all := make([]model.Contact, 0, len(t.contacts))
	for _, contact := range t.contacts {
		all = append(all, contact)
	}
	sortContacts(all)
	return all
}

func (t *MemoryTransactor) InitSchema(_ context.Context) error {
	return nil
}

func (t *MemoryTransactor) Ping(_ context.Context) error {
	return nil
}

func (t *MemoryTransactor) Close(_ context.Context) error {
	return nil
}

func (t *MemoryTransactor) WithinTx(ctx context.Context, _ []string, fn func(store ContactStoreInterface) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := &memoryContactStore{
		contacts: make(map[int64]model.Contact, len(t.contacts)),
		nextId:   t.nextId,
		clock:    t.clock,
	}
	for id, contact := range t.contacts {
		staged.contacts[id] = contact
	}

	if err := fn(staged); err != nil {
		return err
	}

	t.contacts = staged.contacts
	t.nextId = staged.nextId
	return nil
}

type memoryContactStore struct {
	contacts map[int64]model.Contact
	nextId   int64
	clock    func() time.Time
}

// LockKeys is a no-op: the transactor mutex already serializes every unit of work.
func (s *memoryContactStore) LockKeys(_ context.Context, _ []string) (bool, error) {
	return false, nil
}

func (s *memoryContactStore) filter(match func(model.Contact) bool) []model.Contact {
	var found []model.Contact
	for _, contact := range s.contacts {
		if contact.DeletedAt == nil && match(contact) {
			found = append(found, contact)
		}
	}
	sortContacts(found)
	return found
}

func (s *memoryContactStore) FindBySignals(_ context.Context, email, phoneNumber string) ([]model.Contact, error) {
	return s.filter(func(c model.Contact) bool {
		return (email != "" && c.Email == email) || (phoneNumber != "" && c.PhoneNumber == phoneNumber)
	}), nil
}

func (s *memoryContactStore) FindComponentMembers(_ context.Context, rootId int64) ([]model.Contact, error) {
	return s.filter(func(c model.Contact) bool {
		return c.Id == rootId || (c.LinkedId != nil && *c.LinkedId == rootId)
	}), nil
}

func (s *memoryContactStore) FindLinkedEitherDirection(_ context.Context, contactId int64) ([]model.Contact, error) {
	var linkedTo *int64
	if contact, ok := s.contacts[contactId]; ok {
		linkedTo = contact.LinkedId
	}
	return s.filter(func(c model.Contact) bool {
		if c.LinkedId != nil && *c.LinkedId == contactId {
			return true
		}
		return linkedTo != nil && c.Id == *linkedTo
	}), nil
}

func (s *memoryContactStore) FindById(_ context.Context, contactId int64) (*model.Contact, error) {
	contact, ok := s.contacts[contactId]
	if !ok || contact.DeletedAt != nil {
		return nil, nil
	}
	return &contact, nil
}

func (s *memoryContactStore) Create(_ context.Context, contact model.Contact) (*model.Contact, error) {
	if err := contact.Validate(); err != nil {
		return nil, errors.NewServerError(errors.WithDescription(errors.ADD_CONTACT, err.Error()), err)
	}
	s.nextId++
	now := s.clock()
	contact.Id = s.nextId
	contact.CreatedAt = now
	contact.UpdatedAt = now
	s.contacts[contact.Id] = contact
	return &contact, nil
}

func (s *memoryContactStore) Update(_ context.Context, contact model.Contact) error {
	if err := contact.Validate(); err != nil {
		return errors.NewServerError(errors.WithDescription(errors.UPDATE_CONTACT, err.Error()), err)
	}
	existing, ok := s.contacts[contact.Id]
	if !ok || existing.DeletedAt != nil {
		errorMsg := fmt.Sprintf("No contact found to update with Id: %d", contact.Id)
		return errors.NewServerError(errors.WithDescription(errors.UPDATE_CONTACT, errorMsg), sql.ErrNoRows)
	}
	existing.LinkPrecedence = contact.LinkPrecedence
	existing.LinkedId = contact.LinkedId
	existing.UpdatedAt = s.clock()
	s.contacts[contact.Id] = existing
	return nil
}
