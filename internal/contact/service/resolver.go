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
	"sort"

	"github.com/wso2/identity-contact-resolution-service/internal/contact/model"
	"github.com/wso2/identity-contact-resolution-service/internal/contact/store"
	"github.com/wso2/identity-contact-resolution-service/internal/system/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// identifyOutcome records the writes made while resolving one request.
type identifyOutcome struct {
	createdPrimary   *model.Contact
	createdSecondary *model.Contact
	promoted         *model.Contact
	relinked         []model.Contact
	demotedPrimaries int
}

func (o *identifyOutcome) label() string {
	switch {
	case o.createdPrimary != nil:
		return outcomeNewPrimary
	case o.demotedPrimaries > 0:
		return outcomeMerged
	case o.createdSecondary != nil:
		return outcomeNewSecondary
	default:
		return outcomeMatched
	}
}

// identityResolver runs the identify algorithm inside a single unit of work. It holds no state
// beyond the request it is resolving.
type identityResolver struct {
	store   store.ContactStoreInterface
	logger  *log.Logger
	outcome *identifyOutcome
}

func newIdentityResolver(contactStore store.ContactStoreInterface, logger *log.Logger) *identityResolver {
	return &identityResolver{
		store:   contactStore,
		logger:  logger,
		outcome: &identifyOutcome{},
	}
}

// identify expects a normalized request carrying at least one signal.
func (r *identityResolver) identify(ctx context.Context, req model.IdentifyRequest) (*model.ConsolidatedContact, error) {

	component, err := r.lockedComponent(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(component) == 0 {
		primary, err := r.store.Create(ctx, model.Contact{
			Email:          req.Email,
			PhoneNumber:    req.PhoneNumber,
			LinkPrecedence: model.Primary,
		})
		if err != nil {
			return nil, err
		}
		r.outcome.createdPrimary = primary
		r.logger.Debug("No matching contacts, created primary contact", log.Int64("contact_id", primary.Id))
		return buildConsolidatedContact(*primary, []model.Contact{*primary}), nil
	}

	canonical := selectCanonical(component)
	r.logger.Debug("Resolved canonical primary contact",
		log.Int64("contact_id", canonical.Id), log.Int("component_size", len(component)))

	if err := r.consolidate(ctx, &canonical, component); err != nil {
		return nil, err
	}

	members, err := r.store.FindComponentMembers(ctx, canonical.Id)
	if err != nil {
		return nil, err
	}

	if hasNovelSignal(req, members) {
		linked := canonical.Id
		secondary, err := r.store.Create(ctx, model.Contact{
			Email:          req.Email,
			PhoneNumber:    req.PhoneNumber,
			LinkedId:       &linked,
			LinkPrecedence: model.Secondary,
		})
		if err != nil {
			return nil, err
		}
		r.outcome.createdSecondary = secondary
		r.logger.Debug("Request carried new information, created secondary contact",
			log.Int64("contact_id", secondary.Id), log.Int64("primary_contact_id", canonical.Id))
		members = append(members, *secondary)
	}

	return buildConsolidatedContact(canonical, members), nil
}

// lockedComponent returns the component matching the request signals after locking the signals of
// every member. Whenever new locks had to be taken the component is discovered again, since it may
// have changed while waiting. An empty result means nothing matched.
func (r *identityResolver) lockedComponent(ctx context.Context, req model.IdentifyRequest) ([]model.Contact, error) {

	for {
		seeds, err := r.store.FindBySignals(ctx, req.Email, req.PhoneNumber)
		if err != nil {
			return nil, err
		}
		if len(seeds) == 0 {
			return nil, nil
		}

		component, err := r.discoverComponent(ctx, seeds)
		if err != nil {
			return nil, err
		}

		keys := make([]string, 0, 2*len(component))
		for _, member := range component {
			keys = append(keys, signalLockKeys(member.Email, member.PhoneNumber)...)
		}
		extended, err := r.store.LockKeys(ctx, keys)
		if err != nil {
			return nil, err
		}
		if !extended {
			return component, nil
		}
		r.logger.Debug("Locked signals of component members, discovering component again",
			log.Int("component_size", len(component)))
	}
}

// view builds the consolidated view of the component holding contact without writing anything.
func (r *identityResolver) view(ctx context.Context, contact model.Contact) (*model.ConsolidatedContact, error) {

	component, err := r.discoverComponent(ctx, []model.Contact{contact})
	if err != nil {
		return nil, err
	}
	canonical := selectCanonical(component)
	return buildConsolidatedContact(canonical, component), nil
}

// discoverComponent walks link edges breadth first from the seeds until no new contact shows up.
// Each contact is expanded at most once.
func (r *identityResolver) discoverComponent(ctx context.Context, seeds []model.Contact) ([]model.Contact, error) {

	span := trace.SpanFromContext(ctx)
	visited := make(map[int64]model.Contact, len(seeds))
	queue := make([]int64, 0, len(seeds))
	for _, seed := range seeds {
		if _, ok := visited[seed.Id]; ok {
			continue
		}
		visited[seed.Id] = seed
		queue = append(queue, seed.Id)
	}

	lookups := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		linked, err := r.store.FindLinkedEitherDirection(ctx, current)
		if err != nil {
			return nil, err
		}
		lookups++
		for _, contact := range linked {
			if _, ok := visited[contact.Id]; ok {
				continue
			}
			visited[contact.Id] = contact
			queue = append(queue, contact.Id)
		}
	}

	component := make([]model.Contact, 0, len(visited))
	for _, contact := range visited {
		component = append(component, contact)
	}
	sortOldestFirst(component)

	span.SetAttributes(
		attribute.Int("contact.component_size", len(component)),
		attribute.Int("contact.link_lookups", lookups),
	)
	return component, nil
}

// consolidate makes canonical the only primary of the component and points every other member
// straight at it. Secondaries of a demoted primary are re-pointed as well.
func (r *identityResolver) consolidate(ctx context.Context, canonical *model.Contact, component []model.Contact) error {

	if !canonical.IsPrimary() {
		canonical.Promote()
		if err := r.store.Update(ctx, *canonical); err != nil {
			return err
		}
		promoted := *canonical
		r.outcome.promoted = &promoted
		r.logger.Warn("Component had no primary contact, promoted the oldest member",
			log.Int64("contact_id", canonical.Id))
	}

	for _, member := range component {
		if member.Id == canonical.Id || member.IsLinkedTo(canonical.Id) {
			continue
		}
		wasPrimary := member.IsPrimary()
		member.LinkTo(canonical.Id)
		if err := r.store.Update(ctx, member); err != nil {
			return err
		}
		r.outcome.relinked = append(r.outcome.relinked, member)
		if wasPrimary {
			r.outcome.demotedPrimaries++
			r.logger.Info("Demoted primary contact during merge",
				log.Int64("contact_id", member.Id), log.Int64("primary_contact_id", canonical.Id))
		} else {
			r.logger.Debug("Re-pointed secondary contact to canonical primary",
				log.Int64("contact_id", member.Id), log.Int64("primary_contact_id", canonical.Id))
		}
	}
	return nil
}

// selectCanonical picks the oldest primary of the component, or the oldest member when the
// component has no primary at all. component must not be empty.
func selectCanonical(component []model.Contact) model.Contact {

	var canonical *model.Contact
	for i := range component {
		candidate := component[i]
		if !candidate.IsPrimary() {
			continue
		}
		if canonical == nil || candidate.Precedes(*canonical) {
			canonical = &candidate
		}
	}
	if canonical != nil {
		return *canonical
	}

	oldest := component[0]
	for _, candidate := range component[1:] {
		if candidate.Precedes(oldest) {
			oldest = candidate
		}
	}
	return oldest
}

// hasNovelSignal reports whether the request names an email or phone number that no member of
// the component carries yet.
func hasNovelSignal(req model.IdentifyRequest, members []model.Contact) bool {

	emails := make(map[string]struct{}, len(members))
	phoneNumbers := make(map[string]struct{}, len(members))
	for _, member := range members {
		if member.Email != "" {
			emails[member.Email] = struct{}{}
		}
		if member.PhoneNumber != "" {
			phoneNumbers[member.PhoneNumber] = struct{}{}
		}
	}

	if req.Email != "" {
		if _, ok := emails[req.Email]; !ok {
			return true
		}
	}
	if req.PhoneNumber != "" {
		if _, ok := phoneNumbers[req.PhoneNumber]; !ok {
			return true
		}
	}
	return false
}

// buildConsolidatedContact lists the primary's email and phone number first, followed by the
// remaining distinct values in member age order, and the secondary ids in ascending order.
func buildConsolidatedContact(primary model.Contact, members []model.Contact) *model.ConsolidatedContact {

	ordered := make([]model.Contact, len(members))
	copy(ordered, members)
	sortOldestFirst(ordered)

	emails := newOrderedSet()
	phoneNumbers := newOrderedSet()
	emails.add(primary.Email)
	phoneNumbers.add(primary.PhoneNumber)

	secondaryIds := make([]int64, 0, len(ordered))
	for _, member := range ordered {
		emails.add(member.Email)
		phoneNumbers.add(member.PhoneNumber)
		if member.Id != primary.Id && !member.IsPrimary() {
			secondaryIds = append(secondaryIds, member.Id)
		}
	}
	sort.Slice(secondaryIds, func(i, j int) bool { return secondaryIds[i] < secondaryIds[j] })

	return &model.ConsolidatedContact{
		PrimaryContactId:    primary.Id,
		Emails:              emails.values,
		PhoneNumbers:        phoneNumbers.values,
		SecondaryContactIds: secondaryIds,
	}
}

func sortOldestFirst(contacts []model.Contact) {
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].Precedes(contacts[j])
	})
}

// orderedSet keeps the first occurrence of every non-empty value.
type orderedSet struct {
	seen   map[string]struct{}
	values []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), values: []string{}}
}

func (s *orderedSet) add(value string) {
	if value == "" {
		return
	}
	if _, ok := s.seen[value]; ok {
		return
	}
	s.seen[value] = struct{}{}
	s.values = append(s.values, value)
}
