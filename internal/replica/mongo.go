package replica

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	dvdCollection      = "dvds"
	directorCollection = "directors"
)

// MongoStore is the production replica backed by a MongoDB database.
type MongoStore struct {
	dvds      *mongo.Collection
	directors *mongo.Collection
	logger    *zap.Logger
}

// NewMongoStore binds the replica collections on the provided database.
func NewMongoStore(db *mongo.Database, logger *zap.Logger) *MongoStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoStore{
		dvds:      db.Collection(dvdCollection),
		directors: db.Collection(directorCollection),
		logger:    logger,
	}
}

// UpsertDVD writes the full snapshot under its identifier, replacing any
// existing document. Duplicate inserts from redelivery land here as updates.
func (s *MongoStore) UpsertDVD(ctx context.Context, doc DVDDocument) error {
	_, err := s.dvds.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

// MergeDVD applies the non-nil fields to an existing document. A missing
// document matches nothing and reports false.
func (s *MongoStore) MergeDVD(ctx context.Context, id string, fields DVDFields) (bool, error) {
	set := bson.M{}
	if fields.Title != nil {
		set["title"] = *fields.Title
	}
	if fields.Genre != nil {
		set["genre"] = *fields.Genre
	}
	if fields.Director != nil {
		set["director"] = *fields.Director
	}
	if fields.ReleaseDate != nil {
		set["releaseDate"] = *fields.ReleaseDate
	}
	if fields.Copies != nil {
		set["copies"] = *fields.Copies
	}
	if fields.Available != nil {
		set["available"] = *fields.Available
	}
	if fields.UpdatedAt != nil {
		set["updatedAt"] = *fields.UpdatedAt
	}
	if len(set) == 0 {
		return false, nil
	}

	result, err := s.dvds.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// MarkDVDDeleted sets the deletion timestamp once. Documents already marked
// are left untouched, so re-applying a delete is a no-op.
func (s *MongoStore) MarkDVDDeleted(ctx context.Context, id string, at time.Time) error {
	filter := bson.M{"_id": id, "deletedAt": nil}
	_, err := s.dvds.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"deletedAt": at}})
	return err
}

// GetDVD loads one replica document.
func (s *MongoStore) GetDVD(ctx context.Context, id string) (DVDDocument, bool, error) {
	var doc DVDDocument
	err := s.dvds.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return DVDDocument{}, false, nil
	}
	if err != nil {
		return DVDDocument{}, false, err
	}
	return doc, true, nil
}

// UpsertDirector writes the full snapshot under its identifier.
func (s *MongoStore) UpsertDirector(ctx context.Context, doc DirectorDocument) error {
	_, err := s.directors.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

// MergeDirector applies the non-nil fields to an existing document.
func (s *MongoStore) MergeDirector(ctx context.Context, id string, fields DirectorFields) (bool, error) {
	set := bson.M{}
	if fields.Name != nil {
		set["name"] = *fields.Name
	}
	if fields.Surname != nil {
		set["surname"] = *fields.Surname
	}
	if fields.UpdatedAt != nil {
		set["updatedAt"] = *fields.UpdatedAt
	}
	if len(set) == 0 {
		return false, nil
	}

	result, err := s.directors.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// MarkDirectorDeleted sets the deletion timestamp once.
func (s *MongoStore) MarkDirectorDeleted(ctx context.Context, id string, at time.Time) error {
	filter := bson.M{"_id": id, "deletedAt": nil}
	_, err := s.directors.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"deletedAt": at}})
	return err
}

// GetDirector loads one replica document.
func (s *MongoStore) GetDirector(ctx context.Context, id string) (DirectorDocument, bool, error) {
	var doc DirectorDocument
	err := s.directors.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return DirectorDocument{}, false, nil
	}
	if err != nil {
		return DirectorDocument{}, false, err
	}
	return doc, true, nil
}
