package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/open-builders/image-delivery-bot/internal/domain/record"
)

// recordDocument mirrors the user documents written by the admin tooling.
type recordDocument struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty"`
	AccessKey  string              `bson:"access_key"`
	Name       string              `bson:"name,omitempty"`
	ImageLinks []record.ImageEntry `bson:"image_links,omitempty"`
}

func (d *recordDocument) toDomain() *record.Record {
	rec := &record.Record{
		AccessKey:  d.AccessKey,
		Name:       d.Name,
		ImageLinks: d.ImageLinks,
	}
	if !d.ID.IsZero() {
		rec.ID = d.ID.Hex()
	}
	return rec
}

// RecordRepository reads records from a Mongo collection. It never writes.
type RecordRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var (
	_ record.Gateway = (*RecordRepository)(nil)
	_ record.Pinger  = (*RecordRepository)(nil)
)

func NewRecordRepository(client *mongo.Client, database, collection string) *RecordRepository {
	return &RecordRepository{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}
}

func (r *RecordRepository) FindByKey(ctx context.Context, key string) (*record.Record, error) {
	var doc recordDocument
	err := r.coll.FindOne(ctx, bson.M{"access_key": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, record.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *RecordRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}
