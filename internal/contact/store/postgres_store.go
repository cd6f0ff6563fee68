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
	"time"

	"github.com/wso2/identity-contact-resolution-service/internal/contact/model"
	"github.com/wso2/identity-contact-resolution-service/internal/system/database/client"
	"github.com/wso2/identity-contact-resolution-service/internal/system/database/lock"
	"github.com/wso2/identity-contact-resolution-service/internal/system/database/scripts"
	"github.com/wso2/identity-contact-resolution-service/internal/system/errors"
	"github.com/wso2/identity-contact-resolution-service/internal/system/log"
)

const dbType = "postgres"

// PostgresTransactor runs units of work in PostgreSQL transactions guarded by transaction scoped
// advisory locks.
type PostgresTransactor struct {
	dbClient client.DBClientInterface
	lock     lock.TxLock
}

func NewPostgresTransactor(dbClient client.DBClientInterface, txLock lock.TxLock) *PostgresTransactor {
	return &PostgresTransactor{
		dbClient: dbClient,
		lock:     txLock,
	}
}

func (t *PostgresTransactor) InitSchema(ctx context.Context) error {

	statements := append([]string{scripts.CreateContactsTable[dbType]}, scripts.CreateContactIndexes[dbType]...)
	if err := t.dbClient.InitSchema(ctx, statements...); err != nil {
		return errors.NewServerError(errors.SCHEMA_INIT, err)
	}
	return nil
}

func (t *PostgresTransactor) Ping(ctx context.Context) error {
	return t.dbClient.Ping(ctx)
}

func (t *PostgresTransactor) Close(_ context.Context) error {
	return t.dbClient.Close()
}

func (t *PostgresTransactor) WithinTx(ctx context.Context, lockKeys []string,
	fn func(store ContactStoreInterface) error) error {

	logger := log.GetLogger()
	tx, err := t.dbClient.BeginTx(ctx, nil)
	if err != nil {
		errorMsg := "Failed to begin transaction for contact resolution."
		logger.Debug(errorMsg, log.Error(err))
		return errors.NewServerError(errors.WithDescription(errors.TX_BEGIN, errorMsg), err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				logger.Warn("Failed to roll back contact transaction", log.Error(rbErr))
			}
		}
	}()

	if len(lockKeys) > 0 {
		if err := t.lock.AcquireAll(ctx, tx, lockKeys); err != nil {
			return err
		}
	}

	contactStore := &postgresContactStore{q: tx, lock: t.lock, held: heldSet(lockKeys)}
	if err := fn(contactStore); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		errorMsg := "Failed to commit contact resolution transaction."
		logger.Debug(errorMsg, log.Error(err))
		return errors.NewServerError(errors.WithDescription(errors.TX_COMMIT, errorMsg), err)
	}
	committed = true
	return nil
}

// postgresContactStore executes contact queries on a single transaction.
type postgresContactStore struct {
	q    client.Querier
	lock lock.TxLock
	held map[string]struct{}
}

func (s *postgresContactStore) LockKeys(ctx context.Context, keys []string) (bool, error) {
	fresh := newKeys(s.held, keys)
	if len(fresh) == 0 {
		return false, nil
	}
	if err := s.lock.AcquireAll(ctx, s.q, fresh); err != nil {
		return false, err
	}
	return true, nil
}

func (s *postgresContactStore) FindBySignals(ctx context.Context, email, phoneNumber string) ([]model.Contact, error) {

	results, err := client.QueryRows(ctx, s.q, scripts.FindContactsBySignals[dbType], email, phoneNumber)
	if err != nil {
		errorMsg := "Failed to fetch contacts matching the given email or phone number."
		log.GetLogger().Debug(errorMsg, log.Error(err))
		return nil, errors.NewServerError(errors.WithDescription(errors.FETCH_CONTACT, errorMsg), err)
	}
	return scanContactRows(results)
}

func (s *postgresContactStore) FindComponentMembers(ctx context.Context, rootId int64) ([]model.Contact, error) {

	results, err := client.QueryRows(ctx, s.q, scripts.FindContactComponentMembers[dbType], rootId)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to fetch contacts linked to primary contact: %d", rootId)
		log.GetLogger().Debug(errorMsg, log.Error(err))
		return nil, errors.NewServerError(errors.WithDescription(errors.FETCH_CONTACT, errorMsg), err)
	}
	return scanContactRows(results)
}

func (s *postgresContactStore) FindLinkedEitherDirection(ctx context.Context, contactId int64) ([]model.Contact, error) {

	results, err := client.QueryRows(ctx, s.q, scripts.FindContactsLinkedEitherDirection[dbType], contactId)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to fetch contacts linked with contact: %d", contactId)
		log.GetLogger().Debug(errorMsg, log.Error(err))
		return nil, errors.NewServerError(errors.WithDescription(errors.FETCH_CONTACT, errorMsg), err)
	}
	return scanContactRows(results)
}

func (s *postgresContactStore) FindById(ctx context.Context, contactId int64) (*model.Contact, error) {

	results, err := client.QueryRows(ctx, s.q, scripts.FindContactById[dbType], contactId)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to fetch contact with Id: %d", contactId)
		log.GetLogger().Debug(errorMsg, log.Error(err))
		return nil, errors.NewServerError(errors.WithDescription(errors.FETCH_CONTACT, errorMsg), err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	contact, err := scanContactRow(results[0])
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (s *postgresContactStore) Create(ctx context.Context, contact model.Contact) (*model.Contact, error) {

	logger := log.GetLogger()
	if err := contact.Validate(); err != nil {
		return nil, errors.NewServerError(errors.WithDescription(errors.ADD_CONTACT, err.Error()), err)
	}

	results, err := client.QueryRows(ctx, s.q, scripts.InsertContact[dbType],
		nullableString(contact.Email),
		nullableString(contact.PhoneNumber),
		nullableInt64(contact.LinkedId),
		string(contact.LinkPrecedence),
	)
	if err != nil || len(results) == 0 {
		errorMsg := fmt.Sprintf("Failed to insert %s contact.", contact.LinkPrecedence)
		logger.Debug(errorMsg, log.Error(err))
		return nil, errors.NewServerError(errors.WithDescription(errors.ADD_CONTACT, errorMsg), err)
	}

	row := results[0]
	created := contact
	created.Id = row["id"].(int64)
	created.CreatedAt = row["created_at"].(time.Time)
	created.UpdatedAt = row["updated_at"].(time.Time)
	logger.Debug("Contact inserted", log.Int64("contact_id", created.Id),
		log.String("link_precedence", string(created.LinkPrecedence)))
	return &created, nil
}

func (s *postgresContactStore) Update(ctx context.Context, contact model.Contact) error {

	logger := log.GetLogger()
	if err := contact.Validate(); err != nil {
		return errors.NewServerError(errors.WithDescription(errors.UPDATE_CONTACT, err.Error()), err)
	}

	results, err := client.QueryRows(ctx, s.q, scripts.UpdateContactLink[dbType],
		contact.Id,
		string(contact.LinkPrecedence),
		nullableInt64(contact.LinkedId),
	)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to update contact with Id: %d", contact.Id)
		logger.Debug(errorMsg, log.Error(err))
		return errors.NewServerError(errors.WithDescription(errors.UPDATE_CONTACT, errorMsg), err)
	}
	if len(results) == 0 {
		errorMsg := fmt.Sprintf("No contact found to update with Id: %d", contact.Id)
		return errors.NewServerError(errors.WithDescription(errors.UPDATE_CONTACT, errorMsg), sql.ErrNoRows)
	}
	return nil
}

func scanContactRows(rows []map[string]interface{}) ([]model.Contact, error) {
	contacts := make([]model.Contact, 0, len(rows))
	for _, row := range rows {
		contact, err := scanContactRow(row)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

func scanContactRow(row map[string]interface{}) (model.Contact, error) {
	var contact model.Contact

	contact.Id = row["id"].(int64)
	contact.Email = asString(row["email"])
	contact.PhoneNumber = asString(row["phone_number"])
	if linkedId, ok := row["linked_id"].(int64); ok {
		contact.LinkedId = &linkedId
	}
	precedence, err := model.ParseLinkPrecedence(asString(row["link_precedence"]))
	if err != nil {
		errorMsg := fmt.Sprintf("Contact %d has an invalid link precedence.", contact.Id)
		log.GetLogger().Debug(errorMsg, log.Error(err))
		return model.Contact{}, errors.NewServerError(errors.WithDescription(errors.FETCH_CONTACT, errorMsg), err)
	}
	contact.LinkPrecedence = precedence
	contact.CreatedAt, _ = row["created_at"].(time.Time)
	contact.UpdatedAt, _ = row["updated_at"].(time.Time)
	if deletedAt, ok := row["deleted_at"].(time.Time); ok {
		contact.DeletedAt = &deletedAt
	}
	return contact, nil
}

func asString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullableInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}
