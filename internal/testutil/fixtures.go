package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/unestilodevida/cellhub/internal/app/system/authutil"
	"github.com/unestilodevida/cellhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// TestPassword is the plaintext behind every fixture member's hash.
const TestPassword = "s3cret-pass"

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateMember inserts a member with the given role and returns it.
func (f *Fixtures) CreateMember(ctx context.Context, firstName, lastName, email, role string) models.Member {
	f.t.Helper()

	hash, err := authutil.HashPassword(TestPassword)
	if err != nil {
		f.t.Fatalf("failed to hash fixture password: %v", err)
	}

	now := time.Now().UTC()
	m := models.Member{
		ID:           primitive.NewObjectID(),
		FirstName:    firstName,
		LastName:     lastName,
		FullNameCI:   text.Fold(firstName + " " + lastName),
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("members").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test member: %v", err)
	}
	return m
}

// CreateLeader inserts a member with the leader role.
func (f *Fixtures) CreateLeader(ctx context.Context, firstName, lastName, email string) models.Member {
	f.t.Helper()
	return f.CreateMember(ctx, firstName, lastName, email, models.RoleLeader)
}

// CreateAssistant inserts a member with the assistant role.
func (f *Fixtures) CreateAssistant(ctx context.Context, firstName, lastName, email string) models.Member {
	f.t.Helper()
	return f.CreateMember(ctx, firstName, lastName, email, models.RoleAssistant)
}

// CreateAdmin inserts a member with the admin role.
func (f *Fixtures) CreateAdmin(ctx context.Context, email string) models.Member {
	f.t.Helper()
	return f.CreateMember(ctx, "Test", "Admin", email, models.RoleAdmin)
}

// CreateGroup inserts an active group with sensible defaults.
func (f *Fixtures) CreateGroup(ctx context.Context, name string) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Group{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Weekday:   "friday",
		Gender:    "men",
		StartTime: "19:30",
		Address:   "Calle Falsa 123",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}

// SetLeader writes a group's leader slot directly, bypassing the
// assignment rules. Use only to build preconditions.
func (f *Fixtures) SetLeader(ctx context.Context, groupID, memberID primitive.ObjectID) {
	f.t.Helper()
	f.setSlot(ctx, groupID, "leader_id", memberID)
}

// SetAssistant writes a group's assistant slot directly.
func (f *Fixtures) SetAssistant(ctx context.Context, groupID, memberID primitive.ObjectID) {
	f.t.Helper()
	f.setSlot(ctx, groupID, "assistant_id", memberID)
}

func (f *Fixtures) setSlot(ctx context.Context, groupID primitive.ObjectID, slot string, memberID primitive.ObjectID) {
	_, err := f.db.Collection("groups").UpdateByID(ctx, groupID, bson.M{
		"$set": bson.M{slot: memberID},
	})
	if err != nil {
		f.t.Fatalf("failed to set %s: %v", slot, err)
	}
}

// DeactivateGroup marks a group deactivated directly.
func (f *Fixtures) DeactivateGroup(ctx context.Context, groupID primitive.ObjectID) {
	f.t.Helper()
	_, err := f.db.Collection("groups").UpdateByID(ctx, groupID, bson.M{
		"$set": bson.M{"deactivated_at": time.Now().UTC()},
	})
	if err != nil {
		f.t.Fatalf("failed to deactivate group: %v", err)
	}
}

// DeactivateMember marks a member deactivated directly.
func (f *Fixtures) DeactivateMember(ctx context.Context, memberID primitive.ObjectID) {
	f.t.Helper()
	_, err := f.db.Collection("members").UpdateByID(ctx, memberID, bson.M{
		"$set": bson.M{"deactivated_at": time.Now().UTC()},
	})
	if err != nil {
		f.t.Fatalf("failed to deactivate member: %v", err)
	}
}
