package groupstore

import (
	"context"
	"errors"
	"time"

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
	return &Store{c: db.Collection("groups")}
}

var (
	errBadWeekday = errors.New(`weekday must be "monday".."sunday"`)
	errBadGender  = errors.New(`gender must be "men"|"women"`)
)

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Create inserts a new group. Leader and assistant slots are written
// later by the assignment engine, never here.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	g.ID = primitive.NewObjectID()
	g.Name = normalize.Name(g.Name)
	g.NameCI = text.Fold(g.Name)
	g.Weekday = normalize.Enum(g.Weekday)
	g.Gender = normalize.Enum(g.Gender)
	g.Phone = normalize.Phone(g.Phone)
	g.LeaderID = nil
	g.AssistantID = nil

	if !models.ValidWeekday(g.Weekday) {
		return models.Group{}, errBadWeekday
	}
	if !models.ValidGender(g.Gender) {
		return models.Group{}, errBadGender
	}

	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// Update holds group fields that can be changed after creation. Nil
// pointers leave the stored value alone.
type Update struct {
	Name         *string
	Weekday      *string
	Gender       *string
	StartTime    *string
	Address      *string
	Latitude     *float64
	Longitude    *float64
	Description  *string
	Phone        *string
	WhatsAppLink *string
	WhatsAppQR   *string
}

// Update applies a partial update to a group. Returns
// mongo.ErrNoDocuments if the group does not exist.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) error {
	set := bson.M{"updated_at": time.Now().UTC()}

	if upd.Name != nil {
		name := normalize.Name(*upd.Name)
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	if upd.Weekday != nil {
		wd := normalize.Enum(*upd.Weekday)
		if !models.ValidWeekday(wd) {
			return errBadWeekday
		}
		set["weekday"] = wd
	}
	if upd.Gender != nil {
		g := normalize.Enum(*upd.Gender)
		if !models.ValidGender(g) {
			return errBadGender
		}
		set["gender"] = g
	}
	if upd.StartTime != nil {
		set["start_time"] = *upd.StartTime
	}
	if upd.Address != nil {
		set["address"] = *upd.Address
	}
	if upd.Latitude != nil {
		set["latitude"] = *upd.Latitude
	}
	if upd.Longitude != nil {
		set["longitude"] = *upd.Longitude
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Phone != nil {
		set["phone"] = normalize.Phone(*upd.Phone)
	}
	if upd.WhatsAppLink != nil {
		set["whatsapp_link"] = *upd.WhatsAppLink
	}
	if upd.WhatsAppQR != nil {
		set["whatsapp_qr"] = *upd.WhatsAppQR
	}

	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListActive returns groups that have not been deactivated, sorted by
// folded name.
func (s *Store) ListActive(ctx context.Context) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"deactivated_at": bson.M{"$exists": false}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Group
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
