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

package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wso2/identity-contact-resolution-service/internal/contact/model"
	"github.com/wso2/identity-contact-resolution-service/internal/contact/store"
	"github.com/wso2/identity-contact-resolution-service/internal/system/config"
	"github.com/wso2/identity-contact-resolution-service/internal/system/errors"
	"github.com/wso2/identity-contact-resolution-service/internal/system/metrics"
)

var baseTime = time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)

// tickingClock advances one second per call so creation order is visible in timestamps.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	current := baseTime
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newMemoryService() (*ContactService, *store.MemoryTransactor) {
	transactor := store.NewMemoryTransactor().WithClock(tickingClock())
	svc := NewContactService(transactor, config.ResolverConfig{MaxRetryAttempts: 3},
		metrics.New(prometheus.NewRegistry()))
	return svc, transactor
}

func identify(t *testing.T, svc *ContactService, email, phoneNumber string) *model.ConsolidatedContact {
	t.Helper()
	result, err := svc.Identify(context.Background(), model.IdentifyRequest{Email: email, PhoneNumber: phoneNumber})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestIdentify_NewContactBecomesPrimary(t *testing.T) {
	svc, transactor := newMemoryService()

	result := identify(t, svc, "lorraine@hillvalley.edu", "123456")

	assert.Equal(t, &model.ConsolidatedContact{
		PrimaryContactId:    1,
		Emails:              []string{"lorraine@hillvalley.edu"},
		PhoneNumbers:        []string{"123456"},
		SecondaryContactIds: []int64{},
	}, result)

	stored := transactor.Snapshot()
	require.Len(t, stored, 1)
	assert.Equal(t, model.Primary, stored[0].LinkPrecedence)
	assert.Nil(t, stored[0].LinkedId)
}

func TestIdentify_SingleSignalCreatesPrimary(t *testing.T) {
	svc, _ := newMemoryService()

	result := identify(t, svc, "", "555")

	assert.Equal(t, []string{}, result.Emails)
	assert.Equal(t, []string{"555"}, result.PhoneNumbers)
}

func TestIdentify_NewInformationCreatesSecondary(t *testing.T) {
	svc, transactor := newMemoryService()

	identify(t, svc, "lorraine@hillvalley.edu", "123456")
	result := identify(t, svc, "mcfly@hillvalley.edu", "123456")

	assert.Equal(t, &model.ConsolidatedContact{
		PrimaryContactId:    1,
		Emails:              []string{"lorraine@hillvalley.edu", "mcfly@hillvalley.edu"},
		PhoneNumbers:        []string{"123456"},
		SecondaryContactIds: []int64{2},
	}, result)

	stored := transactor.Snapshot()
	require.Len(t, stored, 2)
	assert.True(t, stored[1].IsLinkedTo(1))
}

func TestIdentify_KnownInformationWritesNothing(t *testing.T) {
	svc, transactor := newMemoryService()

	identify(t, svc, "lorraine@hillvalley.edu", "123456")
	identify(t, svc, "mcfly@hillvalley.edu", "123456")
	before := transactor.Snapshot()

	for _, req := range []model.IdentifyRequest{
		{Email: "mcfly@hillvalley.edu", PhoneNumber: "123456"},
		{Email: "mcfly@hillvalley.edu"},
		{PhoneNumber: "123456"},
		{Email: "lorraine@hillvalley.edu"},
	} {
		result, err := svc.Identify(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.PrimaryContactId)
		assert.Equal(t, []int64{2}, result.SecondaryContactIds)
	}

	assert.Equal(t, before, transactor.Snapshot())
}

func TestIdentify_IsIdempotent(t *testing.T) {
	svc, transactor := newMemoryService()

	first := identify(t, svc, "doc@hillvalley.edu", "88")
	second := identify(t, svc, "doc@hillvalley.edu", "88")

	assert.Equal(t, first, second)
	assert.Len(t, transactor.Snapshot(), 1)
}

func TestIdentify_MergesPrimariesKeepingOldest(t *testing.T) {
	svc, transactor := newMemoryService()

	identify(t, svc, "george@hillvalley.edu", "919191")
	identify(t, svc, "biffsucks@hillvalley.edu", "717171")

	result := identify(t, svc, "george@hillvalley.edu", "717171")

	assert.Equal(t, &model.ConsolidatedContact{
		PrimaryContactId:    1,
		Emails:              []string{"george@hillvalley.edu", "biffsucks@hillvalley.edu"},
		PhoneNumbers:        []string{"919191", "717171"},
		SecondaryContactIds: []int64{2},
	}, result)

	stored := transactor.Snapshot()
	require.Len(t, stored, 2, "merging request carries no new information")
	assert.True(t, stored[0].IsPrimary())
	assert.True(t, stored[1].IsLinkedTo(1))
}

func TestIdentify_MergeRepointsSecondariesOfDemotedPrimary(t *testing.T) {
	svc, transactor := newMemoryService()

	identify(t, svc, "a@example.com", "100")
	identify(t, svc, "b@example.com", "200")
	identify(t, svc, "c@example.com", "200") // secondary 3 of primary 2

	result := identify(t, svc, "a@example.com", "200")

	assert.Equal(t, int64(1), result.PrimaryContactId)
	assert.Equal(t, []int64{2, 3}, result.SecondaryContactIds)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, result.Emails)

	for _, contact := range transactor.Snapshot()[1:] {
		assert.True(t, contact.IsLinkedTo(1), "contact %d should point at the canonical primary", contact.Id)
	}
}

func TestIdentify_MergeAcrossTransitiveComponents(t *testing.T) {
	svc, transactor := newMemoryService()

	identify(t, svc, "a@example.com", "1")
	identify(t, svc, "b@example.com", "2")
	identify(t, svc, "c@example.com", "3")
	identify(t, svc, "a@example.com", "2") // merges 1 and 2
	result := identify(t, svc, "c@example.com", "2")

	assert.Equal(t, int64(1), result.PrimaryContactId)
	assert.Equal(t, []int64{2, 3}, result.SecondaryContactIds)

	primaries := 0
	for _, contact := range transactor.Snapshot() {
		if contact.IsPrimary() {
			primaries++
			continue
		}
		assert.True(t, contact.IsLinkedTo(1))
	}
	assert.Equal(t, 1, primaries)
}

func TestIdentify_NewPhoneNumberForKnownEmail(t *testing.T) {
	svc, transactor := newMemoryService()

	identify(t, svc, "a@example.com", "1")
	identify(t, svc, "b@example.com", "2")

	// Email joins primary 1 while the phone number is new.
	result := identify(t, svc, "a@example.com", "3")

	assert.Equal(t, int64(1), result.PrimaryContactId)
	assert.Equal(t, []string{"1", "3"}, result.PhoneNumbers)
	assert.Equal(t, []int64{3}, result.SecondaryContactIds)
	assert.Len(t, transactor.Snapshot(), 3)
}

func TestIdentify_TieOnCreatedAtFallsBackToId(t *testing.T) {
	svc, transactor := newMemoryService()
	transactor.Seed(
		model.Contact{Id: 7, Email: "x@example.com", LinkPrecedence: model.Primary, CreatedAt: baseTime},
		model.Contact{Id: 5, PhoneNumber: "42", LinkPrecedence: model.Primary, CreatedAt: baseTime},
	)

	result := identify(t, svc, "x@example.com", "42")

	assert.Equal(t, int64(5), result.PrimaryContactId)
	assert.Equal(t, []int64{7}, result.SecondaryContactIds)
	assert.Equal(t, []string{"42"}, result.PhoneNumbers)
}

func TestIdentify_PromotesOldestMemberWhenComponentHasNoPrimary(t *testing.T) {
	svc, transactor := newMemoryService()
	deletedAt := baseTime.Add(time.Hour)
	transactor.Seed(
		model.Contact{Id: 1, Email: "gone@example.com", LinkPrecedence: model.Primary,
			CreatedAt: baseTime, DeletedAt: &deletedAt},
		model.Contact{Id: 2, Email: "left@example.com", PhoneNumber: "9", LinkedId: int64Ptr(1),
			LinkPrecedence: model.Secondary, CreatedAt: baseTime.Add(time.Minute)},
		model.Contact{Id: 3, Email: "right@example.com", LinkedId: int64Ptr(2),
			LinkPrecedence: model.Secondary, CreatedAt: baseTime.Add(2 * time.Minute)},
	)

	result := identify(t, svc, "left@example.com", "")

	assert.Equal(t, int64(2), result.PrimaryContactId)
	assert.Equal(t, []int64{3}, result.SecondaryContactIds)
	assert.Equal(t, []string{"left@example.com", "right@example.com"}, result.Emails)

	stored := transactor.Snapshot()
	assert.True(t, stored[1].IsPrimary())
	assert.Nil(t, stored[1].LinkedId)
	assert.True(t, stored[2].IsLinkedTo(2))
}

func TestIdentify_IgnoresSoftDeletedContacts(t *testing.T) {
	svc, transactor := newMemoryService()
	deletedAt := baseTime
	transactor.Seed(model.Contact{Id: 1, Email: "old@example.com", PhoneNumber: "1",
		LinkPrecedence: model.Primary, CreatedAt: baseTime, DeletedAt: &deletedAt})

	result := identify(t, svc, "old@example.com", "1")

	assert.Equal(t, int64(2), result.PrimaryContactId)
	assert.Equal(t, []int64{}, result.SecondaryContactIds)
}

func TestIdentify_TrimsSignals(t *testing.T) {
	svc, _ := newMemoryService()

	identify(t, svc, "marty@hillvalley.edu", "555")
	result := identify(t, svc, "  marty@hillvalley.edu ", " 555 ")

	assert.Equal(t, []string{"marty@hillvalley.edu"}, result.Emails)
	assert.Equal(t, []string{"555"}, result.PhoneNumbers)
	assert.Equal(t, []int64{}, result.SecondaryContactIds)
}

func TestIdentify_RejectsEmptyInput(t *testing.T) {
	svc, transactor := newMemoryService()

	for _, req := range []model.IdentifyRequest{{}, {Email: "   "}, {Email: " ", PhoneNumber: "\t"}} {
		result, err := svc.Identify(context.Background(), req)

		assert.Nil(t, result)
		var clientErr *errors.ClientError
		require.ErrorAs(t, err, &clientErr)
		assert.Equal(t, http.StatusUnprocessableEntity, clientErr.StatusCode)
		assert.Equal(t, errors.INVALID_CONTACT_INPUT.Code, clientErr.ErrorMessage.Code)
	}
	assert.Empty(t, transactor.Snapshot())
}

func TestIdentify_ViewListsPrimaryValuesFirst(t *testing.T) {
	svc, transactor := newMemoryService()
	transactor.Seed(
		model.Contact{Id: 1, Email: "first@example.com", LinkPrecedence: model.Primary, CreatedAt: baseTime},
		model.Contact{Id: 2, Email: "second@example.com", PhoneNumber: "2", LinkedId: int64Ptr(1),
			LinkPrecedence: model.Secondary, CreatedAt: baseTime.Add(time.Second)},
	)

	result := identify(t, svc, "", "2")

	assert.Equal(t, []string{"first@example.com", "second@example.com"}, result.Emails)
	assert.Equal(t, []string{"2"}, result.PhoneNumbers)
}

func TestGetConsolidatedContact(t *testing.T) {
	svc, _ := newMemoryService()
	identify(t, svc, "lorraine@hillvalley.edu", "123456")
	expected := identify(t, svc, "mcfly@hillvalley.edu", "123456")

	fromPrimary, err := svc.GetConsolidatedContact(context.Background(), 1)
	require.NoError(t, err)
	fromSecondary, err := svc.GetConsolidatedContact(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, expected, fromPrimary)
	assert.Equal(t, expected, fromSecondary)
}

func TestGetConsolidatedContact_NotFound(t *testing.T) {
	svc, _ := newMemoryService()

	result, err := svc.GetConsolidatedContact(context.Background(), 404)

	assert.Nil(t, result)
	var clientErr *errors.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusNotFound, clientErr.StatusCode)
}

func TestSelectCanonical(t *testing.T) {
	older := model.Contact{Id: 9, LinkPrecedence: model.Secondary, LinkedId: int64Ptr(1), CreatedAt: baseTime}
	primary := model.Contact{Id: 4, LinkPrecedence: model.Primary, CreatedAt: baseTime.Add(time.Hour)}
	newer := model.Contact{Id: 2, LinkPrecedence: model.Primary, CreatedAt: baseTime.Add(2 * time.Hour)}

	assert.Equal(t, int64(4), selectCanonical([]model.Contact{newer, older, primary}).Id)
	assert.Equal(t, int64(9), selectCanonical([]model.Contact{older}).Id)
}

func TestHasNovelSignal(t *testing.T) {
	members := []model.Contact{{Email: "a@example.com", PhoneNumber: "1"}, {Email: "b@example.com"}}

	assert.False(t, hasNovelSignal(model.IdentifyRequest{Email: "b@example.com", PhoneNumber: "1"}, members))
	assert.False(t, hasNovelSignal(model.IdentifyRequest{Email: "a@example.com"}, members))
	assert.True(t, hasNovelSignal(model.IdentifyRequest{Email: "c@example.com", PhoneNumber: "1"}, members))
	assert.True(t, hasNovelSignal(model.IdentifyRequest{PhoneNumber: "2"}, members))
}
