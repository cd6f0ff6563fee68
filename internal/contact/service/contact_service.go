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
	goerrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/wso2/identity-contact-resolution-service/internal/contact/model"
	"github.com/wso2/identity-contact-resolution-service/internal/contact/store"
	"github.com/wso2/identity-contact-resolution-service/internal/system/config"
	"github.com/wso2/identity-contact-resolution-service/internal/system/constants"
	sysContext "github.com/wso2/identity-contact-resolution-service/internal/system/context"
	"github.com/wso2/identity-contact-resolution-service/internal/system/errors"
	"github.com/wso2/identity-contact-resolution-service/internal/system/log"
	"github.com/wso2/identity-contact-resolution-service/internal/system/metrics"
	"github.com/wso2/identity-contact-resolution-service/internal/system/mongodb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	outcomeNewPrimary   = "new_primary"
	outcomeNewSecondary = "new_secondary"
	outcomeMerged       = "merged"
	outcomeMatched      = "matched"
	outcomeInvalid      = "invalid"
	outcomeError        = "error"
)

// Postgres error codes that mark a unit of work as safe to run again.
var retryableSQLStates = map[pq.ErrorCode]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

var tracer = otel.Tracer("github.com/wso2/identity-contact-resolution-service/internal/contact/service")

type ContactServiceInterface interface {
	Identify(ctx context.Context, req model.IdentifyRequest) (*model.ConsolidatedContact, error)
	GetConsolidatedContact(ctx context.Context, contactId int64) (*model.ConsolidatedContact, error)
}

// ContactService resolves identify requests against the contact store it was built with.
type ContactService struct {
	transactor       store.TransactorInterface
	metrics          *metrics.Metrics
	maxRetryAttempts int
	retryDelay       time.Duration
}

func NewContactService(transactor store.TransactorInterface, resolverConf config.ResolverConfig,
	serviceMetrics *metrics.Metrics) *ContactService {

	attempts := resolverConf.MaxRetryAttempts
	if attempts <= 0 {
		attempts = constants.MaxRetryAttempts
	}
	return &ContactService{
		transactor:       transactor,
		metrics:          serviceMetrics,
		maxRetryAttempts: attempts,
		retryDelay:       resolverConf.RetryDelay(),
	}
}

// Identify finds or creates the component matching the request signals, merges it into a single
// primary contact and returns its consolidated view. The whole resolution runs as one unit of work
// holding the locks of both signals.
func (s *ContactService) Identify(ctx context.Context, req model.IdentifyRequest) (*model.ConsolidatedContact, error) {

	start := time.Now()
	defer func() { s.metrics.ObserveIdentifyLatency(time.Since(start)) }()

	traceID := sysContext.GetTraceID(ctx)
	logger := log.GetLogger().With(log.String("trace_id", traceID))

	req = req.Normalize()
	if req.IsEmpty() {
		s.metrics.IncrementOutcome(outcomeInvalid)
		return nil, errors.NewClientErrorWithTraceID(errors.INVALID_CONTACT_INPUT, http.StatusUnprocessableEntity, traceID)
	}

	ctx, span := tracer.Start(ctx, "contact.identify", trace.WithAttributes(
		attribute.Bool("contact.has_email", req.Email != ""),
		attribute.Bool("contact.has_phone_number", req.PhoneNumber != ""),
	))
	defer span.End()

	lockKeys := LockKeysFor(req)
	var (
		result  *model.ConsolidatedContact
		outcome *identifyOutcome
	)
	for attempt := 1; ; attempt++ {
		resolver := newIdentityResolver(nil, logger)
		err := s.transactor.WithinTx(ctx, lockKeys, func(contactStore store.ContactStoreInterface) error {
			resolver.store = contactStore
			resolver.outcome = &identifyOutcome{}
			var err error
			result, err = resolver.identify(ctx, req)
			return err
		})
		if err == nil {
			outcome = resolver.outcome
			break
		}

		if attempt < s.maxRetryAttempts && isTransientConflict(err) {
			s.metrics.IncrementRetries()
			backoff := s.retryDelay * time.Duration(attempt)
			logger.Warn("Transient conflict while identifying contact, retrying",
				log.Int("attempt", attempt), log.Duration("backoff", backoff), log.Error(err))
			if waitErr := sleepWithContext(ctx, backoff); waitErr != nil {
				err = waitErr
			} else {
				continue
			}
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "identify failed")
		s.metrics.IncrementOutcome(outcomeError)
		logger.Error("Failed to identify contact", log.Int("attempt", attempt), log.Error(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("contact.primary_id", result.PrimaryContactId),
		attribute.String("contact.outcome", outcome.label()),
	)
	s.record(logger, traceID, result, outcome)
	return result, nil
}

// GetConsolidatedContact returns the consolidated view of the component that holds contactId,
// whichever member contactId is. Nothing is written.
func (s *ContactService) GetConsolidatedContact(ctx context.Context, contactId int64) (*model.ConsolidatedContact, error) {

	traceID := sysContext.GetTraceID(ctx)
	logger := log.GetLogger().With(log.String("trace_id", traceID))

	ctx, span := tracer.Start(ctx, "contact.get_consolidated",
		trace.WithAttributes(attribute.Int64("contact.id", contactId)))
	defer span.End()

	var result *model.ConsolidatedContact
	err := s.transactor.WithinTx(ctx, nil, func(contactStore store.ContactStoreInterface) error {
		contact, err := contactStore.FindById(ctx, contactId)
		if err != nil {
			return err
		}
		if contact == nil {
			return errors.NewClientErrorWithTraceID(errors.CONTACT_NOT_FOUND, http.StatusNotFound, traceID)
		}
		result, err = newIdentityResolver(contactStore, logger).view(ctx, *contact)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, err
	}
	return result, nil
}

func (s *ContactService) record(logger *log.Logger, traceID string, result *model.ConsolidatedContact,
	outcome *identifyOutcome) {

	label := outcome.label()
	s.metrics.IncrementOutcome(label)
	logger.Info("Identified contact", log.Int64("primary_contact_id", result.PrimaryContactId),
		log.String("outcome", label))

	audit := func(actionId string, contact model.Contact) {
		data := map[string]interface{}{"linkPrecedence": string(contact.LinkPrecedence)}
		if contact.LinkedId != nil {
			data["linkedId"] = *contact.LinkedId
		}
		logger.Audit(log.AuditEvent{
			InitiatorType: log.InitiatorTypeSystem,
			TargetID:      strconv.FormatInt(contact.Id, 10),
			TargetType:    log.TargetTypeContact,
			ActionID:      actionId,
			TraceID:       traceID,
			Data:          data,
		})
	}

	if outcome.createdPrimary != nil {
		s.metrics.IncrementContactsCreated(string(model.Primary))
		audit(log.ActionAddPrimaryContact, *outcome.createdPrimary)
	}
	if outcome.promoted != nil {
		audit(log.ActionPromoteContact, *outcome.promoted)
	}
	for _, relinked := range outcome.relinked {
		audit(log.ActionRelinkContact, relinked)
	}
	s.metrics.AddContactsRelinked(len(outcome.relinked))
	if outcome.createdSecondary != nil {
		s.metrics.IncrementContactsCreated(string(model.Secondary))
		audit(log.ActionAddSecondaryContact, *outcome.createdSecondary)
	}
}

// LockKeysFor returns the lock keys guarding the signals of a normalized request.
func LockKeysFor(req model.IdentifyRequest) []string {
	return signalLockKeys(req.Email, req.PhoneNumber)
}

// signalLockKeys compares emails case-insensitively and phone numbers by their digits, so a key is
// never finer than the exact match lookup it guards.
func signalLockKeys(email, phoneNumber string) []string {

	keys := make([]string, 0, 2)
	if email != "" {
		keys = append(keys, constants.EmailLockPrefix+strings.ToLower(email))
	}
	if phoneNumber != "" {
		keys = append(keys, constants.PhoneLockPrefix+phoneLockValue(phoneNumber))
	}
	return keys
}

func phoneLockValue(phoneNumber string) string {
	var b strings.Builder
	for _, r := range phoneNumber {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return phoneNumber
	}
	return b.String()
}

func isTransientConflict(err error) bool {

	var pqErr *pq.Error
	if goerrors.As(err, &pqErr) {
		_, ok := retryableSQLStates[pqErr.Code]
		return ok
	}
	return goerrors.Is(err, mongodb.ErrLockTimeout)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
