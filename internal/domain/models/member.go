// internal/domain/models/member.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Member roles. Stored lowercase; normalize.Role folds incoming values.
const (
	RoleAdmin     = "admin"
	RoleLeader    = "leader"
	RoleAssistant = "assistant"
)

// Roles lists the valid member roles in display order.
var Roles = []string{RoleAdmin, RoleLeader, RoleAssistant}

// ValidRole reports whether role is one of the closed role set.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleLeader, RoleAssistant:
		return true
	}
	return false
}

// Member represents a person record with login credentials and a role.
//
// NOTE:
//   - Email is stored lowercase and is unique across active and
//     deactivated members alike (historical uniqueness).
//   - DeactivatedAt nil means the member is active. Members are never
//     hard-deleted while referenced by a group.
//   - PasswordHash is a bcrypt digest and is never serialized to JSON.
type Member struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FirstName    string             `bson:"first_name" json:"first_name"`
	LastName     string             `bson:"last_name" json:"last_name"`
	FullNameCI   string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string             `bson:"email" json:"email"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Role         string             `bson:"role" json:"role"` // admin | leader | assistant
	PasswordHash string             `bson:"password_hash" json:"-"`
	PhotoRef     string             `bson:"photo_ref,omitempty" json:"-"` // stored file name, not a URL

	DeactivatedAt *time.Time `bson:"deactivated_at,omitempty" json:"deactivated_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Active reports whether the member has not been soft-deleted.
func (m *Member) Active() bool { return m.DeactivatedAt == nil }

// FullName returns "First Last" for display and token claims.
func (m *Member) FullName() string {
	if m.FirstName == "" {
		return m.LastName
	}
	if m.LastName == "" {
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}
