package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/repository"
)

type appointmentDocument struct {
	ID                  string     `bson:"_id"`
	PatientID           string     `bson:"patient_id"`
	PatientName         string     `bson:"patient_name"`
	DoctorID            string     `bson:"doctor_id"`
	DoctorName          string     `bson:"doctor_name"`
	AppointmentType     string     `bson:"appointment_type"`
	AppointmentDate     string     `bson:"appointment_date"`
	AppointmentTime     string     `bson:"appointment_time"`
	Symptoms            string     `bson:"symptoms,omitempty"`
	Status              string     `bson:"status"`
	SlotKey             string     `bson:"slot_key,omitempty"`
	ConversationSummary string     `bson:"conversation_summary,omitempty"`
	SummaryCreatedAt    *time.Time `bson:"summary_created_at,omitempty"`
	SummaryCreatedBy    string     `bson:"summary_created_by,omitempty"`
	CreatedAt           time.Time  `bson:"created_at"`
}

func toAppointmentDocument(a *model.Appointment) appointmentDocument {
	doc := appointmentDocument{
		ID:                  a.ID,
		PatientID:           a.PatientID,
		PatientName:         a.PatientName,
		DoctorID:            a.DoctorID,
		DoctorName:          a.DoctorName,
		AppointmentType:     string(a.AppointmentType),
		AppointmentDate:     a.AppointmentDate,
		AppointmentTime:     a.AppointmentTime,
		Symptoms:            a.Symptoms,
		Status:              string(a.Status),
		ConversationSummary: a.ConversationSummary,
		SummaryCreatedAt:    a.SummaryCreatedAt,
		SummaryCreatedBy:    a.SummaryCreatedBy,
		CreatedAt:           a.CreatedAt,
	}
	if a.Status != model.AppointmentStatusCancelled {
		doc.SlotKey = a.SlotKey()
	}
	return doc
}

func (d appointmentDocument) toModel() *model.Appointment {
	return &model.Appointment{
		ID:                  d.ID,
		PatientID:           d.PatientID,
		PatientName:         d.PatientName,
		DoctorID:            d.DoctorID,
		DoctorName:          d.DoctorName,
		AppointmentType:     model.AppointmentType(d.AppointmentType),
		AppointmentDate:     d.AppointmentDate,
		AppointmentTime:     d.AppointmentTime,
		Symptoms:            d.Symptoms,
		Status:              model.AppointmentStatus(d.Status),
		ConversationSummary: d.ConversationSummary,
		SummaryCreatedAt:    d.SummaryCreatedAt,
		SummaryCreatedBy:    d.SummaryCreatedBy,
		CreatedAt:           d.CreatedAt,
	}
}

func appointmentQuery(f model.AppointmentFilter) bson.M {
	query := bson.M{}
	if f.PatientID != "" {
		query["patient_id"] = f.PatientID
	}
	switch {
	case f.DoctorID != "":
		query["doctor_id"] = f.DoctorID
	case f.DoctorIDs != nil:
		query["doctor_id"] = bson.M{"$in": f.DoctorIDs}
	}
	if f.Type != "" {
		query["appointment_type"] = f.Type
	}
	if len(f.Statuses) > 0 {
		query["status"] = bson.M{"$in": f.Statuses}
	}
	return query
}

type AppointmentRepository struct {
	coll *mongo.Collection
}

func NewAppointmentRepository(db *mongo.Database) *AppointmentRepository {
	return &AppointmentRepository{coll: db.Collection(collAppointments)}
}

func (r *AppointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	if _, err := r.coll.InsertOne(ctx, toAppointmentDocument(a)); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (*model.Appointment, error) {
	var doc appointmentDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, translateError(err)
	}
	return doc.toModel(), nil
}

func (r *AppointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	if filter.DoctorID == "" && filter.DoctorIDs != nil && len(filter.DoctorIDs) == 0 {
		return []*model.Appointment{}, nil
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "appointment_date", Value: -1},
		{Key: "appointment_time", Value: -1},
	})
	cursor, err := r.coll.Find(ctx, appointmentQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	docs, err := decodeAll[appointmentDocument](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}

	out := make([]*model.Appointment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (r *AppointmentRepository) Count(ctx context.Context, filter model.AppointmentFilter) (int64, error) {
	if filter.DoctorID == "" && filter.DoctorIDs != nil && len(filter.DoctorIDs) == 0 {
		return 0, nil
	}
	return r.coll.CountDocuments(ctx, appointmentQuery(filter))
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, from, to model.AppointmentStatus) error {
	update := bson.M{"$set": bson.M{"status": to}}
	if to == model.AppointmentStatusCancelled {
		update["$unset"] = bson.M{"slot_key": ""}
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id, "status": from}, update)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check appointment: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrStale
}

func (r *AppointmentRepository) SetSummary(ctx context.Context, id, summary, createdBy string, at time.Time) error {
	return requireMatch(r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"conversation_summary": summary,
		"summary_created_at":   at,
		"summary_created_by":   createdBy,
	}}))
}

func (r *AppointmentRepository) deleteMany(ctx context.Context, filter bson.M) ([]string, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to find appointments: %w", err)
	}
	refs, err := decodeAll[struct {
		ID string `bson:"_id"`
	}](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode appointment ids: %w", err)
	}

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	if len(ids) == 0 {
		return ids, nil
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, fmt.Errorf("failed to delete appointments: %w", err)
	}
	return ids, nil
}

func (r *AppointmentRepository) DeleteByPatient(ctx context.Context, patientID string) ([]string, error) {
	return r.deleteMany(ctx, bson.M{"patient_id": patientID})
}

func (r *AppointmentRepository) DeleteByDoctor(ctx context.Context, doctorID string) ([]string, error) {
	return r.deleteMany(ctx, bson.M{"doctor_id": doctorID})
}
