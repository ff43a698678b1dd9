// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mongostore is the Form B (persistent/cached variant, spec §6)
// backend for the Persistent Node Store. It is a direct, idiomatic
// translation of the original Python filesystem's use of
// `fnodes.update({path: field}, {'$set': {field: value}}, upsert=True)`:
// one document per path in the filesys_database.filenodes collection,
// with meta/data/children stored as binary blobs on that document.
package mongostore

import (
	"context"
	"fmt"

	"github.com/hierfs-io/hierfs/internal/fserrors"
	"github.com/hierfs-io/hierfs/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DatabaseName   = "filesys_database"
	CollectionName = "filenodes"
)

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Connect dials the Mongo deployment named by uri (spec §6's store_url)
// and returns a Store backed by the filesys_database.filenodes
// collection.
func Connect(ctx context.Context, uri string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fserrors.StoreUnavailablef("mongo connect %s: %v", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fserrors.StoreUnavailablef("mongo ping %s: %v", uri, err)
	}
	coll := client.Database(DatabaseName).Collection(CollectionName)
	return &Store{client: client, coll: coll}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Put(ctx context.Context, path, field string, value []byte) error {
	filter := bson.M{"_id": path}
	update := bson.M{"$set": bson.M{field: value}}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fserrors.StoreUnavailablef("put %s/%s: %v", path, field, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, path, field string) ([]byte, bool, error) {
	var doc bson.M
	err := s.coll.FindOne(ctx, bson.M{"_id": path}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fserrors.StoreUnavailablef("get %s/%s: %v", path, field, err)
	}

	raw, ok := doc[field]
	if !ok {
		return nil, false, nil
	}
	if raw == nil {
		// A nil []byte is stored as BSON null: it was set, and is empty.
		return []byte{}, true, nil
	}
	switch v := raw.(type) {
	case primitive.Binary:
		return v.Data, true, nil
	case []byte:
		return v, true, nil
	default:
		return nil, false, fmt.Errorf("get %s/%s: unexpected stored type %T", path, field, raw)
	}
}

func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": path})
	if err != nil {
		return fserrors.StoreUnavailablef("delete %s: %v", path, err)
	}
	return nil
}
