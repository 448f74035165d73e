// Package groupassign owns every write that touches the leader and
// assistant slots of groups, plus the member and group deactivation
// paths that interact with those slots. Keeping these writes in one
// place is what upholds the single-slot rule: an active member holds
// at most one slot across all active groups.
package groupassign

import (
	"context"
	"fmt"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/unestilodevida/cellhub/internal/app/system/txn"
	"github.com/unestilodevida/cellhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	client  *mongo.Client
	groups  *mongo.Collection
	members *mongo.Collection
}

func New(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:  client,
		groups:  db.Collection("groups"),
		members: db.Collection("members"),
	}
}

// Sentinel errors for the assignment and deactivation paths.
var (
	ErrGroupNotFound     = fmt.Errorf("group not found")
	ErrGroupDeactivated  = fmt.Errorf("group is deactivated")
	ErrMemberNotFound    = fmt.Errorf("member not found")
	ErrMemberDeactivated = fmt.Errorf("member is deactivated")

	// ErrMemberLeadsGroup rejects placing a group's leader in its own
	// assistant slot. The move direction that would leave the group
	// leaderless is not allowed.
	ErrMemberLeadsGroup = fmt.Errorf("member is the group's leader")

	// ErrSlotConflict reports that the slot changed between the
	// engine's check and its write. The caller may retry.
	ErrSlotConflict = fmt.Errorf("group assignment changed concurrently")
)

// AlreadyAssignedError reports that a member already holds a slot in
// an active group.
type AlreadyAssignedError struct {
	GroupName string
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("member already assigned to group %q", e.GroupName)
}

// MemberAssignedError reports that a member cannot be deactivated
// while an active group still holds them in a slot.
type MemberAssignedError struct {
	GroupName string
}

func (e *MemberAssignedError) Error() string {
	return fmt.Sprintf("member holds a slot in active group %q", e.GroupName)
}

const (
	slotLeader    = "leader_id"
	slotAssistant = "assistant_id"
)

// AssignLeader places a member in a group's leader slot. The member
// must be active and must not hold a slot in any other active group.
// The group's own assistant may be promoted; the assistant slot is
// released in the same write. Re-assigning the same member to the
// same slot is a no-op.
func (s *Store) AssignLeader(ctx context.Context, groupID, memberID primitive.ObjectID) error {
	return s.assign(ctx, groupID, memberID, slotLeader)
}

// AssignAssistant places a member in a group's assistant slot, or
// clears the slot when memberID is nil. Same rules as AssignLeader.
func (s *Store) AssignAssistant(ctx context.Context, groupID primitive.ObjectID, memberID *primitive.ObjectID) error {
	if memberID == nil {
		return s.clearSlot(ctx, groupID, slotAssistant)
	}
	return s.assign(ctx, groupID, *memberID, slotAssistant)
}

// ClearAssistant removes the assistant from a group.
func (s *Store) ClearAssistant(ctx context.Context, groupID primitive.ObjectID) error {
	return s.clearSlot(ctx, groupID, slotAssistant)
}

func (s *Store) assign(ctx context.Context, groupID, memberID primitive.ObjectID, slot string) error {
	return txn.WithTransaction(ctx, s.client,
		func(sc mongo.SessionContext) error {
			return s.assignTx(sc, groupID, memberID, slot)
		},
		func(ctx context.Context) error {
			return s.assignTx(ctx, groupID, memberID, slot)
		},
	)
}

// assignTx runs the guarded slot write. Inside a transaction the
// checks and the write are atomic; on standalone Mongo the write is a
// compare-and-set on the observed slot value, with the partial unique
// indexes on leader_id and assistant_id as a second backstop.
func (s *Store) assignTx(ctx context.Context, groupID, memberID primitive.ObjectID, slot string) error {
	var g models.Group
	if err := s.groups.FindOne(ctx, bson.M{"_id": groupID}).Decode(&g); err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrGroupNotFound
		}
		return err
	}
	if !g.Active() {
		return ErrGroupDeactivated
	}

	var m models.Member
	if err := s.members.FindOne(ctx, bson.M{"_id": memberID}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrMemberNotFound
		}
		return err
	}
	if !m.Active() {
		return ErrMemberDeactivated
	}

	// Already in the requested slot of this group: nothing to do.
	if slot == slotLeader && g.LeaderID != nil && *g.LeaderID == memberID {
		return nil
	}
	if slot == slotAssistant && g.AssistantID != nil && *g.AssistantID == memberID {
		return nil
	}

	// The group's own leader stays in the leader slot; demoting them
	// to assistant would leave the group leaderless.
	if slot == slotAssistant && g.LeaderID != nil && *g.LeaderID == memberID {
		return ErrMemberLeadsGroup
	}

	// Slots held in this group are handled above; only a slot in a
	// different active group blocks the assignment.
	if name, held, err := s.slotHolder(ctx, memberID, groupID); err != nil {
		return err
	} else if held {
		return &AlreadyAssignedError{GroupName: name}
	}

	// Compare-and-set on the observed slot value so two racing writers
	// cannot both apply outside a transaction.
	filter := bson.M{"_id": groupID, "deactivated_at": bson.M{"$exists": false}}
	if cur := slotValue(&g, slot); cur != nil {
		filter[slot] = *cur
	} else {
		filter[slot] = bson.M{"$exists": false}
	}
	update := bson.M{"$set": bson.M{slot: memberID, "updated_at": time.Now().UTC()}}
	if slot == slotLeader && g.AssistantID != nil && *g.AssistantID == memberID {
		// Promotion: release the assistant slot in the same write.
		filter[slotAssistant] = memberID
		update["$unset"] = bson.M{slotAssistant: ""}
	}

	res, err := s.groups.UpdateOne(ctx, filter, update)
	if err != nil {
		if wafflemongo.IsDup(err) {
			// Index backstop fired: someone grabbed the member concurrently.
			name, _, herr := s.slotHolder(ctx, memberID, primitive.NilObjectID)
			if herr != nil {
				return ErrSlotConflict
			}
			return &AlreadyAssignedError{GroupName: name}
		}
		return err
	}
	if res.MatchedCount == 0 {
		// Lost the race: the slot or the group changed after the read.
		if name, held, herr := s.slotHolder(ctx, memberID, primitive.NilObjectID); herr == nil && held {
			return &AlreadyAssignedError{GroupName: name}
		}
		return ErrSlotConflict
	}
	return nil
}

func slotValue(g *models.Group, slot string) *primitive.ObjectID {
	if slot == slotLeader {
		return g.LeaderID
	}
	return g.AssistantID
}

func (s *Store) clearSlot(ctx context.Context, groupID primitive.ObjectID, slot string) error {
	res, err := s.groups.UpdateOne(ctx,
		bson.M{"_id": groupID},
		bson.M{"$unset": bson.M{slot: ""}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// DeactivateGroup soft-deletes a group and frees both of its slots so
// the members become assignable elsewhere. Deactivating an already
// deactivated group is a no-op.
func (s *Store) DeactivateGroup(ctx context.Context, groupID primitive.ObjectID) error {
	now := time.Now().UTC()
	res, err := s.groups.UpdateOne(ctx,
		bson.M{"_id": groupID, "deactivated_at": bson.M{"$exists": false}},
		bson.M{
			"$set":   bson.M{"deactivated_at": now, "updated_at": now},
			"$unset": bson.M{slotLeader: "", slotAssistant: ""},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Either missing or already deactivated; only the former is an error.
		if ferr := s.groups.FindOne(ctx, bson.M{"_id": groupID}).Err(); ferr == mongo.ErrNoDocuments {
			return ErrGroupNotFound
		} else if ferr != nil {
			return ferr
		}
	}
	return nil
}

// DeactivateMember soft-deletes a member. The member must not hold a
// slot in any active group; the caller is told which group blocks the
// deactivation so the message can name it.
func (s *Store) DeactivateMember(ctx context.Context, memberID primitive.ObjectID) error {
	return txn.WithTransaction(ctx, s.client,
		func(sc mongo.SessionContext) error {
			return s.deactivateMemberTx(sc, memberID)
		},
		func(ctx context.Context) error {
			return s.deactivateMemberTx(ctx, memberID)
		},
	)
}

func (s *Store) deactivateMemberTx(ctx context.Context, memberID primitive.ObjectID) error {
	var m models.Member
	if err := s.members.FindOne(ctx, bson.M{"_id": memberID}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrMemberNotFound
		}
		return err
	}
	if !m.Active() {
		return nil
	}

	if name, held, err := s.slotHolder(ctx, memberID, primitive.NilObjectID); err != nil {
		return err
	} else if held {
		return &MemberAssignedError{GroupName: name}
	}

	now := time.Now().UTC()
	_, err := s.members.UpdateOne(ctx,
		bson.M{"_id": memberID},
		bson.M{"$set": bson.M{"deactivated_at": now, "updated_at": now}},
	)
	return err
}

// ActiveGroupName returns the name of the active group holding the
// member in either slot, or "" when the member is unassigned.
func (s *Store) ActiveGroupName(ctx context.Context, memberID primitive.ObjectID) (string, error) {
	name, held, err := s.slotHolder(ctx, memberID, primitive.NilObjectID)
	if err != nil || !held {
		return "", err
	}
	return name, nil
}

// slotHolder looks up the active group holding the member in either
// slot. A non-nil ignoreGroup is excluded from the search so callers
// can ask about other groups only.
func (s *Store) slotHolder(ctx context.Context, memberID, ignoreGroup primitive.ObjectID) (string, bool, error) {
	proj := options.FindOne().SetProjection(bson.M{"name": 1})
	var g models.Group
	err := s.groups.FindOne(ctx, bson.M{
		"_id":            bson.M{"$ne": ignoreGroup},
		"deactivated_at": bson.M{"$exists": false},
		"$or": []bson.M{
			{slotLeader: memberID},
			{slotAssistant: memberID},
		},
	}, proj).Decode(&g)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return g.Name, true, nil
}

// GroupDetail is an active group joined with its slot holders.
type GroupDetail struct {
	Group     models.Group
	Leader    *models.Member
	Assistant *models.Member
}

// ListActiveDetailed returns all active groups with their leader and
// assistant records resolved in one member query.
func (s *Store) ListActiveDetailed(ctx context.Context) ([]GroupDetail, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.groups.Find(ctx, bson.M{"deactivated_at": bson.M{"$exists": false}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(groups)*2)
	for _, g := range groups {
		if g.LeaderID != nil {
			ids = append(ids, *g.LeaderID)
		}
		if g.AssistantID != nil {
			ids = append(ids, *g.AssistantID)
		}
	}

	byID := make(map[primitive.ObjectID]*models.Member, len(ids))
	if len(ids) > 0 {
		mcur, err := s.members.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return nil, err
		}
		defer mcur.Close(ctx)
		for mcur.Next(ctx) {
			var m models.Member
			if err := mcur.Decode(&m); err != nil {
				return nil, err
			}
			byID[m.ID] = &m
		}
		if err := mcur.Err(); err != nil {
			return nil, err
		}
	}

	out := make([]GroupDetail, 0, len(groups))
	for _, g := range groups {
		d := GroupDetail{Group: g}
		if g.LeaderID != nil {
			d.Leader = byID[*g.LeaderID]
		}
		if g.AssistantID != nil {
			d.Assistant = byID[*g.AssistantID]
		}
		out = append(out, d)
	}
	return out, nil
}
