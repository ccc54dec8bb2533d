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

type chatDocument struct {
	ID            string    `bson:"_id"`
	AppointmentID string    `bson:"appointment_id"`
	SenderID      string    `bson:"sender_id"`
	SenderName    string    `bson:"sender_name"`
	Message       string    `bson:"message"`
	CreatedAt     time.Time `bson:"created_at"`
}

type ChatRepository struct {
	coll *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{coll: db.Collection(collChat)}
}

func (r *ChatRepository) Create(ctx context.Context, msg *model.ChatMessage) error {
	if _, err := r.coll.InsertOne(ctx, chatDocument(*msg)); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *ChatRepository) ListByAppointment(ctx context.Context, appointmentID string) ([]*model.ChatMessage, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"appointment_id": appointmentID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	docs, err := decodeAll[chatDocument](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode chat messages: %w", err)
	}

	out := make([]*model.ChatMessage, 0, len(docs))
	for _, d := range docs {
		m := model.ChatMessage(d)
		out = append(out, &m)
	}
	return out, nil
}

func (r *ChatRepository) DeleteByAppointments(ctx context.Context, appointmentIDs []string) (int64, error) {
	if len(appointmentIDs) == 0 {
		return 0, nil
	}
	res, err := r.coll.DeleteMany(ctx, bson.M{"appointment_id": bson.M{"$in": appointmentIDs}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chat messages: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *ChatRepository) DeleteBySender(ctx context.Context, senderID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"sender_id": senderID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chat messages: %w", err)
	}
	return res.DeletedCount, nil
}
