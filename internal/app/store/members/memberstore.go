package memberstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/unestilodevida/cellhub/internal/app/system/normalize"
	"github.com/unestilodevida/cellhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("members")}
}

var (
	// ErrDuplicateEmail is returned when attempting to create or update a
	// member with an email that already belongs to another member.
	ErrDuplicateEmail = errors.New("a member with this email already exists")
	errBadRole        = errors.New(`role must be "admin"|"leader"|"assistant"`)
)

// GetByID loads a member by ObjectID. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Member, error) {
	var m models.Member
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByEmail looks up a member by case-insensitive email. Returns
// mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	var m models.Member
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EmailExists reports whether any member already uses the given email.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Err()
	if err == nil {
		return true, nil
	}
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return false, err
}

// EmailExistsForOther checks if an email already exists for a member other
// than the given ID.
func (s *Store) EmailExistsForOther(ctx context.Context, email string, excludeID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"email": normalize.Email(email),
		"_id":   bson.M{"$ne": excludeID},
	}).Err()
	if err == nil {
		return true, nil
	}
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return false, err
}

// Create inserts a new member after normalizing and validating fields.
func (s *Store) Create(ctx context.Context, m models.Member) (models.Member, error) {
	m.ID = primitive.NewObjectID()
	m.FirstName = normalize.Name(m.FirstName)
	m.LastName = normalize.Name(m.LastName)
	m.FullNameCI = text.Fold(m.FullName())
	m.Email = normalize.Email(m.Email)
	m.Phone = normalize.Phone(m.Phone)
	m.Role = normalize.Role(m.Role)

	if !models.ValidRole(m.Role) {
		return models.Member{}, errBadRole
	}

	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Member{}, ErrDuplicateEmail
		}
		return models.Member{}, err
	}
	return m, nil
}

// Update holds the fields that can be changed after creation. Nil
// pointers leave the stored value alone.
type Update struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Role      *string
	PhotoRef  *string
}

// Update applies a partial update to a member. Returns
// mongo.ErrNoDocuments if the member does not exist and
// ErrDuplicateEmail if the new email belongs to another member.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) error {
	set := bson.M{"updated_at": time.Now()}

	if upd.FirstName != nil || upd.LastName != nil {
		// Name changes need the folded search key refreshed, which
		// requires the counterpart field when only one side changes.
		cur, err := s.GetByID(ctx, id)
		if err != nil {
			return err
		}
		first, last := cur.FirstName, cur.LastName
		if upd.FirstName != nil {
			first = normalize.Name(*upd.FirstName)
			set["first_name"] = first
		}
		if upd.LastName != nil {
			last = normalize.Name(*upd.LastName)
			set["last_name"] = last
		}
		set["full_name_ci"] = text.Fold(first + " " + last)
	}
	if upd.Email != nil {
		set["email"] = normalize.Email(*upd.Email)
	}
	if upd.Phone != nil {
		set["phone"] = normalize.Phone(*upd.Phone)
	}
	if upd.Role != nil {
		role := normalize.Role(*upd.Role)
		if !models.ValidRole(role) {
			return errBadRole
		}
		set["role"] = role
	}
	if upd.PhotoRef != nil {
		set["photo_ref"] = *upd.PhotoRef
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// UpdatePassword replaces a member's password hash.
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// List returns members sorted by folded full name. When activeOnly is
// true, deactivated members are excluded.
func (s *Store) List(ctx context.Context, activeOnly bool) ([]models.Member, error) {
	filter := bson.M{}
	if activeOnly {
		filter["deactivated_at"] = bson.M{"$exists": false}
	}
	return s.find(ctx, filter)
}

// ListByRole returns active members holding the given role, sorted by
// folded full name.
func (s *Store) ListByRole(ctx context.Context, role string) ([]models.Member, error) {
	return s.find(ctx, bson.M{
		"role":           normalize.Role(role),
		"deactivated_at": bson.M{"$exists": false},
	})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Member, error) {
	opts := options.Find().SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Member
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
