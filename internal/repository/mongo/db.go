package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jwalitptl/medischedule-api/internal/repository"
)

const (
	collUsers        = "users"
	collDoctors      = "doctor_profiles"
	collSpecialties  = "specialties"
	collAppointments = "appointments"
	collChat         = "chat_messages"
	collAIChat       = "ai_chat_history"
)

type Config struct {
	URI     string
	Name    string
	Timeout time.Duration
}

// Connect opens a client, verifies it with a ping and returns the named database.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client, client.Database(cfg.Name), nil
}

// NewStore wires every repository to db.
func NewStore(db *mongo.Database) *repository.Store {
	return &repository.Store{
		Users:        NewUserRepository(db),
		Doctors:      NewDoctorProfileRepository(db),
		Specialties:  NewSpecialtyRepository(db),
		Appointments: NewAppointmentRepository(db),
		Chats:        NewChatRepository(db),
		AIChats:      NewAIChatRepository(db),
	}
}

// EnsureIndexes creates the indexes the repositories rely on for uniqueness
// and ordering. It is safe to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	stringField := func(field string) bson.M {
		return bson.M{field: bson.M{"$type": "string"}}
	}

	indexes := map[string][]mongo.IndexModel{
		collUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_username").SetPartialFilterExpression(stringField("username"))},
			{Keys: bson.D{{Key: "role", Value: 1}}, Options: options.Index().SetName("role")},
		},
		collDoctors: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_user_id")},
			{Keys: bson.D{{Key: "specialty_id", Value: 1}, {Key: "status", Value: 1}}, Options: options.Index().SetName("specialty_status")},
		},
		collSpecialties: {
			{Keys: bson.D{{Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_name_key")},
		},
		collAppointments: {
			{Keys: bson.D{{Key: "slot_key", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_slot_key").SetPartialFilterExpression(stringField("slot_key"))},
			{Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "appointment_date", Value: -1}}, Options: options.Index().SetName("patient_date")},
			{Keys: bson.D{{Key: "doctor_id", Value: 1}, {Key: "appointment_date", Value: -1}}, Options: options.Index().SetName("doctor_date")},
		},
		collChat: {
			{Keys: bson.D{{Key: "appointment_id", Value: 1}, {Key: "created_at", Value: 1}}, Options: options.Index().SetName("appointment_created")},
		},
		collAIChat: {
			{Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}}, Options: options.Index().SetName("patient_session_created")},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return repository.ErrDuplicate
	}
	return err
}

func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor) ([]T, error) {
	defer cursor.Close(ctx)
	var docs []T
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func requireMatch(res *mongo.UpdateResult, err error) error {
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
