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

type permissionsDocument struct {
	CanManageDoctors      bool `bson:"can_manage_doctors"`
	CanManagePatients     bool `bson:"can_manage_patients"`
	CanManageAppointments bool `bson:"can_manage_appointments"`
	CanViewStats          bool `bson:"can_view_stats"`
	CanManageSpecialties  bool `bson:"can_manage_specialties"`
	CanCreateAdmins       bool `bson:"can_create_admins"`
}

type userDocument struct {
	ID               string               `bson:"_id"`
	Email            string               `bson:"email"`
	Username         string               `bson:"username,omitempty"`
	PasswordHash     string               `bson:"password_hash"`
	FullName         string               `bson:"full_name"`
	Phone            string               `bson:"phone,omitempty"`
	DateOfBirth      string               `bson:"date_of_birth,omitempty"`
	Address          string               `bson:"address,omitempty"`
	Role             string               `bson:"role"`
	AdminPermissions *permissionsDocument `bson:"admin_permissions,omitempty"`
	CreatedAt        time.Time            `bson:"created_at"`
}

func toPermissionsDocument(p model.AdminPermissions) *permissionsDocument {
	d := permissionsDocument(p)
	return &d
}

func toUserDocument(u *model.User) userDocument {
	doc := userDocument{
		ID:           u.ID,
		Email:        model.FoldIdentifier(u.Email),
		Username:     model.FoldIdentifier(u.Username),
		PasswordHash: u.PasswordHash,
		FullName:     u.FullName,
		Phone:        u.Phone,
		DateOfBirth:  u.DateOfBirth,
		Address:      u.Address,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
	if u.AdminPermissions != nil {
		doc.AdminPermissions = toPermissionsDocument(*u.AdminPermissions)
	}
	return doc
}

func (d userDocument) toModel() *model.User {
	u := &model.User{
		ID:           d.ID,
		Email:        d.Email,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		FullName:     d.FullName,
		Phone:        d.Phone,
		DateOfBirth:  d.DateOfBirth,
		Address:      d.Address,
		Role:         model.Role(d.Role),
		CreatedAt:    d.CreatedAt,
	}
	if d.AdminPermissions != nil {
		p := model.AdminPermissions(*d.AdminPermissions)
		u.AdminPermissions = &p
	}
	return u
}

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(collUsers)}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if _, err := r.coll.InsertOne(ctx, toUserDocument(user)); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateError(err)
	}
	return doc.toModel(), nil
}

func (r *UserRepository) Get(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": model.FoldIdentifier(email)})
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"username": model.FoldIdentifier(username)})
}

func (r *UserRepository) List(ctx context.Context, filter model.UserFilter) ([]*model.User, error) {
	query := bson.M{}
	if filter.Roles != nil {
		query["role"] = bson.M{"$in": filter.Roles}
	}
	if filter.IDs != nil {
		query["_id"] = bson.M{"$in": filter.IDs}
	}

	cursor, err := r.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	docs, err := decodeAll[userDocument](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	users := make([]*model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toModel())
	}
	return users, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"role": role})
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role model.Role) error {
	return requireMatch(r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": role}}))
}

func (r *UserRepository) UpdatePermissions(ctx context.Context, id string, perms model.AdminPermissions) error {
	return requireMatch(r.coll.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"admin_permissions": toPermissionsDocument(perms)}}))
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return translateError(mongo.ErrNoDocuments)
	}
	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}
