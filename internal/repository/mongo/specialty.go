package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jwalitptl/medischedule-api/internal/model"
)

type specialtyDocument struct {
	ID          string `bson:"_id"`
	Name        string `bson:"name"`
	NameKey     string `bson:"name_key"`
	Description string `bson:"description,omitempty"`
}

func (d specialtyDocument) toModel() *model.Specialty {
	return &model.Specialty{ID: d.ID, Name: d.Name, Description: d.Description}
}

type SpecialtyRepository struct {
	coll *mongo.Collection
}

func NewSpecialtyRepository(db *mongo.Database) *SpecialtyRepository {
	return &SpecialtyRepository{coll: db.Collection(collSpecialties)}
}

func (r *SpecialtyRepository) Create(ctx context.Context, s *model.Specialty) error {
	doc := specialtyDocument{
		ID:          s.ID,
		Name:        s.Name,
		NameKey:     model.FoldIdentifier(s.Name),
		Description: s.Description,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *SpecialtyRepository) findOne(ctx context.Context, filter bson.M) (*model.Specialty, error) {
	var doc specialtyDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateError(err)
	}
	return doc.toModel(), nil
}

func (r *SpecialtyRepository) Get(ctx context.Context, id string) (*model.Specialty, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *SpecialtyRepository) GetByName(ctx context.Context, name string) (*model.Specialty, error) {
	return r.findOne(ctx, bson.M{"name_key": model.FoldIdentifier(name)})
}

func (r *SpecialtyRepository) List(ctx context.Context) ([]*model.Specialty, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list specialties: %w", err)
	}
	docs, err := decodeAll[specialtyDocument](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode specialties: %w", err)
	}

	out := make([]*model.Specialty, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}
