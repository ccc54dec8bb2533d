package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jwalitptl/medischedule-api/internal/model"
)

type aiChatDocument struct {
	ID          string    `bson:"_id"`
	PatientID   string    `bson:"patient_id"`
	SessionID   string    `bson:"session_id"`
	UserMessage string    `bson:"user_message"`
	AIResponse  string    `bson:"ai_response"`
	CreatedAt   time.Time `bson:"created_at"`
}

type AIChatRepository struct {
	coll *mongo.Collection
}

func NewAIChatRepository(db *mongo.Database) *AIChatRepository {
	return &AIChatRepository{coll: db.Collection(collAIChat)}
}

func (r *AIChatRepository) Create(ctx context.Context, rec *model.AiChatRecord) error {
	if _, err := r.coll.InsertOne(ctx, aiChatDocument(*rec)); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *AIChatRepository) find(ctx context.Context, patientID, sessionID string, opts *options.FindOptionsBuilder) ([]*model.AiChatRecord, error) {
	query := bson.M{"patient_id": patientID}
	if sessionID != "" {
		query["session_id"] = sessionID
	}

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list ai chat history: %w", err)
	}
	docs, err := decodeAll[aiChatDocument](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ai chat history: %w", err)
	}

	out := make([]*model.AiChatRecord, 0, len(docs))
	for _, d := range docs {
		rec := model.AiChatRecord(d)
		out = append(out, &rec)
	}
	return out, nil
}

func (r *AIChatRepository) List(ctx context.Context, patientID, sessionID string) ([]*model.AiChatRecord, error) {
	return r.find(ctx, patientID, sessionID, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *AIChatRepository) Recent(ctx context.Context, patientID, sessionID string, limit int) ([]*model.AiChatRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	recs, err := r.find(ctx, patientID, sessionID, opts)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

func (r *AIChatRepository) DeleteByPatient(ctx context.Context, patientID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"patient_id": patientID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete ai chat history: %w", err)
	}
	return res.DeletedCount, nil
}
