package groupassign_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/unestilodevida/cellhub/internal/app/store/groupassign"
	"github.com/unestilodevida/cellhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_AssignLeader(t *testing.T) {
	client, db := testutil.SetupTestClient(t)
	store := groupassign.New(client, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Jóvenes")
	leader := fixtures.CreateLeader(ctx, "Ana", "Ruiz", "ana@example.com")

	if err := store.AssignLeader(ctx, g.ID, leader.ID); err != nil {
		t.Fatalf("AssignLeader failed: %v", err)
	}

	var got struct {
		LeaderID *primitive.ObjectID `bson:"leader_id"`
	}
	if err := db.Collection("groups").FindOne(ctx, bson.M{"_id": g.ID}).Decode(&got); err != nil {
		t.Fatalf("read group: %v", err)
	}
	if got.LeaderID == nil || *got.LeaderID != leader.ID {
		t.Errorf("leader slot = %v, want %s", got.LeaderID, leader.ID.Hex())
	}

	// Re-assigning the same member to the same slot is a no-op.
	if err := store.AssignLeader(ctx, g.ID, leader.ID); err != nil {
		t.Errorf("idempotent AssignLeader failed: %v", err)
	}
}

func TestStore_AssignLeader_AlreadyAssignedElsewhere(t *testing.T) {
	client, db := testutil.SetupTestClient(t)
	store := groupassign.New(client, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g1 := fixtures.CreateGroup(ctx, "Norte")
	g2 := fixtures.CreateGroup(ctx, "Sur")
	leader := fixtures.CreateLeader(ctx, "Ana", "Ruiz", "ana@example.com")
	fixtures.SetLeader(ctx, g1.ID, leader.ID)

	err := store.AssignLeader(ctx, g2.ID, leader.ID)
	var assigned *groupassign.AlreadyAssignedError
	if !errors.As(err, &assigned) {
		t.Fatalf("AssignLeader = %v, want AlreadyAssignedError", err)
	}
	if assigned.GroupName != "Norte" {
		t.Errorf("blocking group = %q, want Norte", assigned.GroupName)
	}
}

func TestStore_AssignAssistant_RejectsOwnLeader(t *testing.T) {
	client, db := testutil.SetupTestClient(t)
	store := groupassign.New(client, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Norte")
	m := fixtures.CreateLeader(ctx, "Ana", "Ruiz", "ana@example.com")
	fixtures.SetLeader(ctx, g.ID, m.ID)

	// Moving the group's leader into its own assistant slot would
	// leave the group leaderless.
	if err := store.AssignAssistant(ctx, g.ID, &m.ID); err != groupassign.ErrMemberLeadsGroup {
		t.Fatalf("AssignAssistant = %v, want ErrMemberLeadsGroup", err)
	}
}

func TestStore_AssignLeader_PromotesOwnAssistant(t *testing.T) {
	client, db := testutil.SetupTestClient(t)
	store := groupassign.New(client, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Norte")
	m := fixtures.CreateAssistant(ctx, "Caro", "Vega", "caro@example.com")
	fixtures.SetAssistant(ctx, g.ID, m.ID)

	// The group's own assistant may take the leader slot; the
	// assistant slot is released in the same write.
	if err := store.AssignLeader(ctx, g.ID, m.ID); err != nil {
		t.Fatalf("promoting assistant failed: %v", err)
	}

	var got struct {
		LeaderID    *primitive.ObjectID `bson:"leader_id"`
		AssistantID *primitive.ObjectID `bson:"assistant_id"`
	}
	if err := db.Collection("groups").FindOne(ctx, bson.M{"_id": g.ID}).Decode(&got); err != nil {
		t.Fatalf("read group: %v", err)
	}
	if got.LeaderID == nil || *got.LeaderID != m.ID {
		t.Errorf("leader slot = %v, want %s", got.LeaderID, m.ID.Hex())
	}
	if got.AssistantID != nil {
		t.Errorf("assistant slot = %v, want unset", got.AssistantID)
	}
}

func TestStore_AssignAssistant_Clear(t *testing.T) {
	client, db := testutil.SetupTestClient(t)
	store := groupassign.New(client, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Norte")
	m := fixtures.CreateAssistant(ctx, "Caro", "Vega", "caro@example.com")
	fixtures.SetAssistant(ctx, g.ID, m.ID)

	if err := store.AssignAssistant(ctx, g.ID, nil); err != nil {
		t.Fatalf("clearing assistant failed: %v", err)
	}

	count, err := db.Collection("groups").CountDocuments(ctx, bson.M{
		"_id":          g.ID,
		"assistant_id": bson.M{"$exists": true},
	})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 0 {
		t.Error("assistant slot should be unset")
	}

	// Freed member is assignable again.
	if err := store.AssignAssistant(ctx, g.ID, &m.ID); err != nil {
		t.Errorf("re-assign after clear failed: %v", err)
	}
}

func TestStore_Assign_Errors(t *testing.T) {
	client, db := testutil.SetupTestClient(t)
	store := groupassign.New(client, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Norte")
	m := fixtures.CreateLeader(ctx, "Ana", "Ruiz", "ana@example.com")

	if err := store.AssignLeader(ctx, primitive.NewObjectID(), m.ID); err != groupassign.ErrGroupNotFound {
		t.Errorf("missing group: got %v, want ErrGroupNotFound", err)
	}
	if err := store.AssignLeader(ctx, g.ID, primitive.NewObjectID()); err != groupassign.ErrMemberNotFound {
		t.Errorf("missing member: got %v, want ErrMemberNotFound", err)
	}

	fixtures.DeactivateMember(ctx, m.ID)
	if err := store.AssignLeader(ctx, g.ID, m.ID); err != groupassign.ErrMemberDeactivated {
		t.Errorf("deactivated member: got %v, want ErrMemberDeactivated", err)
	}

	g2 := fixtures.CreateGroup(ctx, "Sur")
	fixtures.DeactivateGroup(ctx, g2.ID)
	m2 := fixtures.CreateLeader(ctx, "Beto", "Paz", "beto@example.com")
	if err := store.AssignLeader(ctx, g2.ID, m2.ID); err != groupassign.ErrGroupDeactivated {
		t.Errorf("deactivated group: got %v, want ErrGroupDeactivated", err)
	}
}

func TestStore_DeactivateGroup_FreesSlots(t *testing.T) {
	client, db := testutil.SetupTestClient(t)
	store := groupassign.New(client, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Norte")
	leader := fixtures.CreateLeader(ctx, "Ana", "Ruiz", "ana@example.com")
	assistant := fixtures.CreateAssistant(ctx, "Caro", "Vega", "caro@example.com")
	fixtures.SetLeader(ctx, g.ID, leader.ID)
	fixtures.SetAssistant(ctx, g.ID, assistant.ID)

	if err := store.DeactivateGroup(ctx, g.ID); err != nil {
		t.Fatalf("DeactivateGroup failed: %v", err)
	}

	count, err := db.Collection("groups").CountDocuments(ctx, bson.M{
		"_id": g.ID,
		"$or": []bson.M{
			{"leader_id": bson.M{"$exists": true}},
			{"assistant_id": bson.M{"$exists": true}},
		},
	})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 0 {
		t.Error("slots should be unset after group deactivation")
	}

	// Freed members are assignable to another group.
	g2 := fixtures.CreateGroup(ctx, "Sur")
	if err := store.AssignLeader(ctx, g2.ID, leader.ID); err != nil {
		t.Errorf("assigning freed leader failed: %v", err)
	}

	// Deactivating again is a no-op.
	if err := store.DeactivateGroup(ctx, g.ID); err != nil {
		t.Errorf("second DeactivateGroup failed: %v", err)
	}

	if err := store.DeactivateGroup(ctx, primitive.NewObjectID()); err != groupassign.ErrGroupNotFound {
		t.Errorf("missing group: got %v, want ErrGroupNotFound", err)
	}
}

func TestStore_DeactivateMember(t *testing.T) {
	client, db := testutil.SetupTestClient(t)
	store := groupassign.New(client, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Norte")
	leader := fixtures.CreateLeader(ctx, "Ana", "Ruiz", "ana@example.com")
	free := fixtures.CreateLeader(ctx, "Beto", "Paz", "beto@example.com")
	fixtures.SetLeader(ctx, g.ID, leader.ID)

	// Assigned member cannot be deactivated; the error names the group.
	err := store.DeactivateMember(ctx, leader.ID)
	var held *groupassign.MemberAssignedError
	if !errors.As(err, &held) {
		t.Fatalf("DeactivateMember = %v, want MemberAssignedError", err)
	}
	if held.GroupName != "Norte" {
		t.Errorf("blocking group = %q, want Norte", held.GroupName)
	}

	// Unassigned member deactivates fine, and repeating is a no-op.
	if err := store.DeactivateMember(ctx, free.ID); err != nil {
		t.Fatalf("DeactivateMember failed: %v", err)
	}
	if err := store.DeactivateMember(ctx, free.ID); err != nil {
		t.Errorf("second DeactivateMember failed: %v", err)
	}

	// Once the group releases the leader, deactivation goes through.
	if err := store.DeactivateGroup(ctx, g.ID); err != nil {
		t.Fatalf("DeactivateGroup failed: %v", err)
	}
	if err := store.DeactivateMember(ctx, leader.ID); err != nil {
		t.Errorf("DeactivateMember after release failed: %v", err)
	}
}

func TestStore_ActiveGroupName(t *testing.T) {
	client, db := testutil.SetupTestClient(t)
	store := groupassign.New(client, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Norte")
	m := fixtures.CreateAssistant(ctx, "Caro", "Vega", "caro@example.com")

	name, err := store.ActiveGroupName(ctx, m.ID)
	if err != nil {
		t.Fatalf("ActiveGroupName failed: %v", err)
	}
	if name != "" {
		t.Errorf("unassigned member should have no group, got %q", name)
	}

	fixtures.SetAssistant(ctx, g.ID, m.ID)
	name, err = store.ActiveGroupName(ctx, m.ID)
	if err != nil {
		t.Fatalf("ActiveGroupName failed: %v", err)
	}
	if name != "Norte" {
		t.Errorf("group name = %q, want Norte", name)
	}
}

func TestStore_ListActiveDetailed(t *testing.T) {
	client, db := testutil.SetupTestClient(t)
	store := groupassign.New(client, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g1 := fixtures.CreateGroup(ctx, "Alfa")
	g2 := fixtures.CreateGroup(ctx, "Beta")
	gone := fixtures.CreateGroup(ctx, "Cerrado")
	fixtures.DeactivateGroup(ctx, gone.ID)

	leader := fixtures.CreateLeader(ctx, "Ana", "Ruiz", "ana@example.com")
	assistant := fixtures.CreateAssistant(ctx, "Caro", "Vega", "caro@example.com")
	fixtures.SetLeader(ctx, g1.ID, leader.ID)
	fixtures.SetAssistant(ctx, g1.ID, assistant.ID)

	details, err := store.ListActiveDetailed(ctx)
	if err != nil {
		t.Fatalf("ListActiveDetailed failed: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 active groups, got %d", len(details))
	}
	if details[0].Group.ID != g1.ID || details[1].Group.ID != g2.ID {
		t.Fatalf("groups not sorted by name")
	}
	if details[0].Leader == nil || details[0].Leader.ID != leader.ID {
		t.Error("g1 leader not resolved")
	}
	if details[0].Assistant == nil || details[0].Assistant.ID != assistant.ID {
		t.Error("g1 assistant not resolved")
	}
	if details[1].Leader != nil || details[1].Assistant != nil {
		t.Error("g2 should have empty slots")
	}
}

func TestStore_Assign_ConcurrentSingleWinner(t *testing.T) {
	client, db := testutil.SetupTestClient(t)
	store := groupassign.New(client, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g1 := fixtures.CreateGroup(ctx, "Norte")
	g2 := fixtures.CreateGroup(ctx, "Sur")
	m := fixtures.CreateLeader(ctx, "Ana", "Ruiz", "ana@example.com")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, gid := range []primitive.ObjectID{g1.ID, g2.ID} {
		wg.Add(1)
		go func(i int, gid primitive.ObjectID) {
			defer wg.Done()
			errs[i] = store.AssignLeader(ctx, gid, m.ID)
		}(i, gid)
	}
	wg.Wait()

	// Exactly one group may end up holding the member.
	count, err := db.Collection("groups").CountDocuments(ctx, bson.M{"leader_id": m.ID})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("member holds %d leader slots, want 1 (errs: %v, %v)", count, errs[0], errs[1])
	}
}

func TestStore_Assign_ConcurrentMembersOneSlot(t *testing.T) {
	client, db := testutil.SetupTestClient(t)
	store := groupassign.New(client, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Norte")
	m1 := fixtures.CreateLeader(ctx, "Ana", "Ruiz", "ana@example.com")
	m2 := fixtures.CreateLeader(ctx, "Beto", "Paz", "beto@example.com")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, mid := range []primitive.ObjectID{m1.ID, m2.ID} {
		wg.Add(1)
		go func(i int, mid primitive.ObjectID) {
			defer wg.Done()
			errs[i] = store.AssignLeader(ctx, g.ID, mid)
		}(i, mid)
	}
	wg.Wait()

	// One write wins the slot; the other must surface the conflict
	// rather than overwrite silently.
	winners := 0
	var winner primitive.ObjectID
	for i, mid := range []primitive.ObjectID{m1.ID, m2.ID} {
		if errs[i] == nil {
			winners++
			winner = mid
		}
	}
	if winners != 1 {
		t.Fatalf("successful assignments = %d, want 1 (errs: %v, %v)", winners, errs[0], errs[1])
	}

	var got struct {
		LeaderID *primitive.ObjectID `bson:"leader_id"`
	}
	if err := db.Collection("groups").FindOne(ctx, bson.M{"_id": g.ID}).Decode(&got); err != nil {
		t.Fatalf("read group: %v", err)
	}
	if got.LeaderID == nil || *got.LeaderID != winner {
		t.Errorf("leader slot = %v, want winner %s", got.LeaderID, winner.Hex())
	}
}
