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
	"fmt"
	"time"

	"github.com/wso2/identity-contact-resolution-service/internal/contact/model"
	"github.com/wso2/identity-contact-resolution-service/internal/system/constants"
	"github.com/wso2/identity-contact-resolution-service/internal/system/errors"
	"github.com/wso2/identity-contact-resolution-service/internal/system/log"
	"github.com/wso2/identity-contact-resolution-service/internal/system/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoTransactor stores contacts as documents. Per signal leases in a lock collection serialize
// overlapping requests; when transactions are enabled (replica set deployments) the writes of a
// unit of work are also committed atomically.
type MongoTransactor struct {
	db           *mongodb.MongoDB
	lock         *mongodb.MongoLock
	transactions bool
	lockTimeout  time.Duration
}

func NewMongoTransactor(db *mongodb.MongoDB, transactions bool, lockTimeout time.Duration) *MongoTransactor {
	return &MongoTransactor{
		db:           db,
		lock:         mongodb.NewMongoLock(db.Database, constants.LocksCollection, 2*lockTimeout),
		transactions: transactions,
		lockTimeout:  lockTimeout,
	}
}

func (t *MongoTransactor) InitSchema(ctx context.Context) error {

	contacts := t.db.Database.Collection(constants.ContactsCollection)
	_, err := contacts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "phone_number", Value: 1}}},
		{Keys: bson.D{{Key: "linked_id", Value: 1}}},
	})
	if err != nil {
		return errors.NewServerError(errors.SCHEMA_INIT, err)
	}
	if err := t.lock.EnsureIndexes(ctx); err != nil {
		return errors.NewServerError(errors.SCHEMA_INIT, err)
	}
	return nil
}

func (t *MongoTransactor) Ping(ctx context.Context) error {
	return t.db.Client.Ping(ctx, nil)
}

func (t *MongoTransactor) Close(ctx context.Context) error {
	return t.db.Client.Disconnect(ctx)
}

func (t *MongoTransactor) WithinTx(ctx context.Context, lockKeys []string,
	fn func(store ContactStoreInterface) error) error {

	leases := &mongoLeases{lock: t.lock, timeout: t.lockTimeout, held: make(map[string]struct{})}
	defer leases.releaseAll()
	if _, err := leases.acquire(ctx, lockKeys); err != nil {
		return err
	}

	if !t.transactions {
		return fn(&mongoContactStore{db: t.db.Database, leases: leases})
	}

	session, err := t.db.Client.StartSession()
	if err != nil {
		return errors.NewServerError(errors.WithDescription(errors.TX_BEGIN,
			"Failed to start MongoDB session."), err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(_ mongo.SessionContext) (interface{}, error) {
		return nil, fn(&mongoContactStore{db: t.db.Database, session: session, leases: leases})
	})
	return err
}

// mongoLeases tracks the lock leases held by one unit of work.
type mongoLeases struct {
	lock     *mongodb.MongoLock
	timeout  time.Duration
	held     map[string]struct{}
	releases []func()
}

func (l *mongoLeases) acquire(ctx context.Context, keys []string) (bool, error) {
	fresh := newKeys(l.held, keys)
	if len(fresh) == 0 {
		return false, nil
	}
	release, err := l.lock.AcquireAll(ctx, fresh, l.timeout)
	if err != nil {
		for _, key := range fresh {
			delete(l.held, key)
		}
		return false, err
	}
	l.releases = append(l.releases, release)
	return true, nil
}

func (l *mongoLeases) releaseAll() {
	for i := len(l.releases) - 1; i >= 0; i-- {
		l.releases[i]()
	}
}

// mongoContactStore runs every operation on the session of the surrounding transaction when
// one is present.
type mongoContactStore struct {
	db      *mongo.Database
	session mongo.Session
	leases  *mongoLeases
}

func (s *mongoContactStore) LockKeys(ctx context.Context, keys []string) (bool, error) {
	return s.leases.acquire(ctx, keys)
}

func (s *mongoContactStore) withSession(ctx context.Context) context.Context {
	if s.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, s.session)
}

func (s *mongoContactStore) contacts() *mongo.Collection {
	return s.db.Collection(constants.ContactsCollection)
}

func (s *mongoContactStore) find(ctx context.Context, filter bson.M) ([]model.Contact, error) {
	filter["deleted_at"] = nil
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.contacts().Find(s.withSession(ctx), filter, opts)
	if err != nil {
		return nil, err
	}
	var contacts []model.Contact
	if err := cursor.All(s.withSession(ctx), &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (s *mongoContactStore) FindBySignals(ctx context.Context, email, phoneNumber string) ([]model.Contact, error) {

	var or []bson.M
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if phoneNumber != "" {
		or = append(or, bson.M{"phone_number": phoneNumber})
	}
	if len(or) == 0 {
		return nil, nil
	}

	contacts, err := s.find(ctx, bson.M{"$or": or})
	if err != nil {
		errorMsg := "Failed to fetch contacts matching the given email or phone number."
		log.GetLogger().Debug(errorMsg, log.Error(err))
		return nil, errors.NewServerError(errors.WithDescription(errors.FETCH_CONTACT, errorMsg), err)
	}
	return contacts, nil
}

func (s *mongoContactStore) FindComponentMembers(ctx context.Context, rootId int64) ([]model.Contact, error) {

	contacts, err := s.find(ctx, bson.M{"$or": []bson.M{{"_id": rootId}, {"linked_id": rootId}}})
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to fetch contacts linked to primary contact: %d", rootId)
		log.GetLogger().Debug(errorMsg, log.Error(err))
		return nil, errors.NewServerError(errors.WithDescription(errors.FETCH_CONTACT, errorMsg), err)
	}
	return contacts, nil
}

func (s *mongoContactStore) FindLinkedEitherDirection(ctx context.Context, contactId int64) ([]model.Contact, error) {

	or := []bson.M{{"linked_id": contactId}}
	var self model.Contact
	err := s.contacts().FindOne(s.withSession(ctx), bson.M{"_id": contactId}).Decode(&self)
	switch {
	case err == nil:
		if self.LinkedId != nil {
			or = append(or, bson.M{"_id": *self.LinkedId})
		}
	case err != mongo.ErrNoDocuments:
		errorMsg := fmt.Sprintf("Failed to fetch contact with Id: %d", contactId)
		log.GetLogger().Debug(errorMsg, log.Error(err))
		return nil, errors.NewServerError(errors.WithDescription(errors.FETCH_CONTACT, errorMsg), err)
	}

	contacts, err := s.find(ctx, bson.M{"$or": or})
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to fetch contacts linked with contact: %d", contactId)
		log.GetLogger().Debug(errorMsg, log.Error(err))
		return nil, errors.NewServerError(errors.WithDescription(errors.FETCH_CONTACT, errorMsg), err)
	}
	return contacts, nil
}

func (s *mongoContactStore) FindById(ctx context.Context, contactId int64) (*model.Contact, error) {

	var contact model.Contact
	err := s.contacts().FindOne(s.withSession(ctx), bson.M{"_id": contactId, "deleted_at": nil}).Decode(&contact)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to fetch contact with Id: %d", contactId)
		log.GetLogger().Debug(errorMsg, log.Error(err))
		return nil, errors.NewServerError(errors.WithDescription(errors.FETCH_CONTACT, errorMsg), err)
	}
	return &contact, nil
}

// nextContactId hands out monotonically increasing ids from a counters document.
func (s *mongoContactStore) nextContactId(ctx context.Context) (int64, error) {

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.db.Collection(constants.CountersCollection).FindOneAndUpdate(
		s.withSession(ctx),
		bson.M{"_id": constants.ContactIdSequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter.Seq, err
}

func (s *mongoContactStore) Create(ctx context.Context, contact model.Contact) (*model.Contact, error) {

	logger := log.GetLogger()
	if err := contact.Validate(); err != nil {
		return nil, errors.NewServerError(errors.WithDescription(errors.ADD_CONTACT, err.Error()), err)
	}

	id, err := s.nextContactId(ctx)
	if err != nil {
		errorMsg := "Failed to allocate a contact id."
		logger.Debug(errorMsg, log.Error(err))
		return nil, errors.NewServerError(errors.WithDescription(errors.ADD_CONTACT, errorMsg), err)
	}

	// BSON dates keep milliseconds only.
	now := time.Now().UTC().Truncate(time.Millisecond)
	contact.Id = id
	contact.CreatedAt = now
	contact.UpdatedAt = now
	contact.DeletedAt = nil

	if _, err := s.contacts().InsertOne(s.withSession(ctx), contact); err != nil {
		errorMsg := fmt.Sprintf("Failed to insert %s contact.", contact.LinkPrecedence)
		logger.Debug(errorMsg, log.Error(err))
		return nil, errors.NewServerError(errors.WithDescription(errors.ADD_CONTACT, errorMsg), err)
	}
	return &contact, nil
}

func (s *mongoContactStore) Update(ctx context.Context, contact model.Contact) error {

	logger := log.GetLogger()
	if err := contact.Validate(); err != nil {
		return errors.NewServerError(errors.WithDescription(errors.UPDATE_CONTACT, err.Error()), err)
	}

	result, err := s.contacts().UpdateOne(s.withSession(ctx),
		bson.M{"_id": contact.Id, "deleted_at": nil},
		bson.M{"$set": bson.M{
			"link_precedence": contact.LinkPrecedence,
			"linked_id":       contact.LinkedId,
			"updated_at":      time.Now().UTC().Truncate(time.Millisecond),
		}},
	)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to update contact with Id: %d", contact.Id)
		logger.Debug(errorMsg, log.Error(err))
		return errors.NewServerError(errors.WithDescription(errors.UPDATE_CONTACT, errorMsg), err)
	}
	if result.MatchedCount == 0 {
		errorMsg := fmt.Sprintf("No contact found to update with Id: %d", contact.Id)
		return errors.NewServerError(errors.WithDescription(errors.UPDATE_CONTACT, errorMsg), mongo.ErrNoDocuments)
	}
	return nil
}
