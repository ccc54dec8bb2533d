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

type slotDocument struct {
	Day       string `bson:"day"`
	StartTime string `bson:"start_time"`
	EndTime   string `bson:"end_time"`
}

type doctorDocument struct {
	ID               string         `bson:"_id"`
	UserID           string         `bson:"user_id"`
	SpecialtyID      string         `bson:"specialty_id"`
	Bio              string         `bson:"bio,omitempty"`
	ExperienceYears  *int           `bson:"experience_years,omitempty"`
	ConsultationFee  *float64       `bson:"consultation_fee,omitempty"`
	AvailableSlots   []slotDocument `bson:"available_slots"`
	Status           string         `bson:"status"`
	IsDepartmentHead bool           `bson:"is_department_head"`
	CreatedAt        time.Time      `bson:"created_at"`
}

func toSlotDocuments(slots []model.TimeSlot) []slotDocument {
	docs := make([]slotDocument, 0, len(slots))
	for _, s := range slots {
		docs = append(docs, slotDocument(s))
	}
	return docs
}

func toDoctorDocument(p *model.DoctorProfile) doctorDocument {
	return doctorDocument{
		ID:               p.UserID,
		UserID:           p.UserID,
		SpecialtyID:      p.SpecialtyID,
		Bio:              p.Bio,
		ExperienceYears:  p.ExperienceYears,
		ConsultationFee:  p.ConsultationFee,
		AvailableSlots:   toSlotDocuments(p.AvailableSlots),
		Status:           string(p.Status),
		IsDepartmentHead: p.IsDepartmentHead,
		CreatedAt:        p.CreatedAt,
	}
}

func (d doctorDocument) toModel() *model.DoctorProfile {
	slots := make([]model.TimeSlot, 0, len(d.AvailableSlots))
	for _, s := range d.AvailableSlots {
		slots = append(slots, model.TimeSlot(s))
	}
	return &model.DoctorProfile{
		UserID:           d.UserID,
		SpecialtyID:      d.SpecialtyID,
		Bio:              d.Bio,
		ExperienceYears:  d.ExperienceYears,
		ConsultationFee:  d.ConsultationFee,
		AvailableSlots:   slots,
		Status:           model.DoctorStatus(d.Status),
		IsDepartmentHead: d.IsDepartmentHead,
		CreatedAt:        d.CreatedAt,
	}
}

func doctorQuery(filter model.DoctorFilter) bson.M {
	query := bson.M{}
	if filter.SpecialtyID != "" {
		query["specialty_id"] = filter.SpecialtyID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	return query
}

type DoctorProfileRepository struct {
	coll *mongo.Collection
}

func NewDoctorProfileRepository(db *mongo.Database) *DoctorProfileRepository {
	return &DoctorProfileRepository{coll: db.Collection(collDoctors)}
}

func (r *DoctorProfileRepository) Create(ctx context.Context, profile *model.DoctorProfile) error {
	if _, err := r.coll.InsertOne(ctx, toDoctorDocument(profile)); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *DoctorProfileRepository) Get(ctx context.Context, userID string) (*model.DoctorProfile, error) {
	var doc doctorDocument
	if err := r.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc); err != nil {
		return nil, translateError(err)
	}
	return doc.toModel(), nil
}

func (r *DoctorProfileRepository) List(ctx context.Context, filter model.DoctorFilter) ([]*model.DoctorProfile, error) {
	cursor, err := r.coll.Find(ctx, doctorQuery(filter), options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list doctor profiles: %w", err)
	}
	docs, err := decodeAll[doctorDocument](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode doctor profiles: %w", err)
	}

	profiles := make([]*model.DoctorProfile, 0, len(docs))
	for _, d := range docs {
		profiles = append(profiles, d.toModel())
	}
	return profiles, nil
}

func (r *DoctorProfileRepository) Count(ctx context.Context, filter model.DoctorFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, doctorQuery(filter))
}

func (r *DoctorProfileRepository) set(ctx context.Context, userID string, fields bson.M) error {
	return requireMatch(r.coll.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": fields}))
}

func (r *DoctorProfileRepository) Patch(ctx context.Context, userID string, patch model.DoctorProfilePatch) error {
	fields := bson.M{}
	if patch.SpecialtyID != nil {
		fields["specialty_id"] = *patch.SpecialtyID
	}
	if patch.Bio != nil {
		fields["bio"] = *patch.Bio
	}
	if patch.ExperienceYears != nil {
		fields["experience_years"] = *patch.ExperienceYears
	}
	if patch.ConsultationFee != nil {
		fields["consultation_fee"] = *patch.ConsultationFee
	}
	if len(fields) == 0 {
		_, err := r.Get(ctx, userID)
		return err
	}
	return r.set(ctx, userID, fields)
}

func (r *DoctorProfileRepository) UpdateSchedule(ctx context.Context, userID string, slots []model.TimeSlot) error {
	return r.set(ctx, userID, bson.M{"available_slots": toSlotDocuments(slots)})
}

func (r *DoctorProfileRepository) UpdateStatus(ctx context.Context, userID string, status model.DoctorStatus) error {
	return r.set(ctx, userID, bson.M{"status": status})
}

func (r *DoctorProfileRepository) SetDepartmentHead(ctx context.Context, userID string, isHead bool) error {
	return r.set(ctx, userID, bson.M{"is_department_head": isHead})
}

func (r *DoctorProfileRepository) Delete(ctx context.Context, userID string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return translateError(mongo.ErrNoDocuments)
	}
	return nil
}
