// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Weekday values for group meetings. Stored lowercase.
var Weekdays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// ValidWeekday reports whether day is one of the meeting weekdays.
func ValidWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// Gender categories a group is aimed at.
var Genders = []string{"men", "women"}

// ValidGender reports whether g is a known target-gender category.
func ValidGender(g string) bool {
	return g == "men" || g == "women"
}

// Group represents a recurring small-group meeting unit.
//
// NOTE:
//   - LeaderID and AssistantID are exclusive one-to-one references: a
//     member holds at most one slot across all *active* groups. That
//     invariant is enforced transactionally by the groupassign store,
//     not by the schema alone, because deactivated groups keep their
//     historical documents.
//   - Soft-deleting a group sets DeactivatedAt and clears both slots,
//     freeing the members for reassignment.
//   - WhatsAppLink and WhatsAppQR are derived from Phone; the QR is a
//     base64 PNG treated as an opaque string.
type Group struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Weekday     string             `bson:"weekday" json:"weekday"`
	Gender      string             `bson:"gender" json:"gender"`
	StartTime   string             `bson:"start_time" json:"start_time"` // "HH:MM", 24h
	Address     string             `bson:"address" json:"address"`
	Latitude    *float64           `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude   *float64           `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Phone       string             `bson:"phone" json:"phone"`

	WhatsAppLink string `bson:"whatsapp_link,omitempty" json:"whatsapp_link,omitempty"`
	WhatsAppQR   string `bson:"whatsapp_qr,omitempty" json:"whatsapp_qr,omitempty"`

	LeaderID    *primitive.ObjectID `bson:"leader_id,omitempty" json:"leader_id,omitempty"`
	AssistantID *primitive.ObjectID `bson:"assistant_id,omitempty" json:"assistant_id,omitempty"`

	DeactivatedAt *time.Time `bson:"deactivated_at,omitempty" json:"deactivated_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Active reports whether the group has not been soft-deleted.
func (g *Group) Active() bool { return g.DeactivatedAt == nil }

// Holds reports whether memberID currently occupies the leader or
// assistant slot of this group.
func (g *Group) Holds(memberID primitive.ObjectID) bool {
	if g.LeaderID != nil && *g.LeaderID == memberID {
		return true
	}
	return g.AssistantID != nil && *g.AssistantID == memberID
}
