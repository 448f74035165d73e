package memberstore_test

import (
	"testing"

	memberstore "github.com/unestilodevida/cellhub/internal/app/store/members"
	"github.com/unestilodevida/cellhub/internal/domain/models"
	"github.com/unestilodevida/cellhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := memberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Member{
		FirstName:    "  María ",
		LastName:     "López",
		Email:        "Maria.Lopez@Example.COM",
		Phone:        "+52 (55) 1234-5678",
		Role:         "Leader",
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Email != "maria.lopez@example.com" {
		t.Errorf("email not normalized: %q", created.Email)
	}
	if created.Role != models.RoleLeader {
		t.Errorf("role not normalized: %q", created.Role)
	}
	if created.Phone != "+525512345678" {
		t.Errorf("phone not normalized: %q", created.Phone)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.FirstName != "María" {
		t.Errorf("first name = %q", got.FirstName)
	}

	// Lookup is case-insensitive on email.
	byEmail, err := store.GetByEmail(ctx, "MARIA.LOPEZ@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if byEmail.ID != created.ID {
		t.Error("GetByEmail returned a different member")
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := memberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m := models.Member{FirstName: "A", LastName: "B", Email: "dup@example.com", Role: "leader", PasswordHash: "x"}
	if _, err := store.Create(ctx, m); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	m.Email = "DUP@example.com"
	if _, err := store.Create(ctx, m); err != memberstore.ErrDuplicateEmail {
		t.Errorf("second Create = %v, want ErrDuplicateEmail", err)
	}
}

func TestStore_Create_BadRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := memberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, models.Member{
		FirstName: "A", LastName: "B", Email: "a@example.com", Role: "superuser", PasswordHash: "x",
	})
	if err == nil {
		t.Error("Create with invalid role should fail")
	}
}

func TestStore_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := memberstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m := fixtures.CreateMember(ctx, "Ana", "Ruiz", "ana@example.com", "assistant")

	last := "García"
	role := "leader"
	if err := store.Update(ctx, m.ID, memberstore.Update{LastName: &last, Role: &role}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.LastName != "García" {
		t.Errorf("last name = %q", got.LastName)
	}
	if got.FirstName != "Ana" {
		t.Errorf("first name should be untouched, got %q", got.FirstName)
	}
	if got.Role != "leader" {
		t.Errorf("role = %q", got.Role)
	}
	if got.FullNameCI != "ana garcia" {
		t.Errorf("folded name not refreshed: %q", got.FullNameCI)
	}
}

func TestStore_Update_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := memberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	first := "X"
	err := store.Update(ctx, primitive.NewObjectID(), memberstore.Update{FirstName: &first})
	if err != mongo.ErrNoDocuments {
		t.Errorf("Update = %v, want mongo.ErrNoDocuments", err)
	}
}

func TestStore_ListByRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := memberstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateLeader(ctx, "Beto", "Z", "b@example.com")
	fixtures.CreateLeader(ctx, "Alba", "Z", "a@example.com")
	fixtures.CreateAssistant(ctx, "Caro", "Z", "c@example.com")
	gone := fixtures.CreateLeader(ctx, "Dani", "Z", "d@example.com")
	fixtures.DeactivateMember(ctx, gone.ID)

	leaders, err := store.ListByRole(ctx, "leader")
	if err != nil {
		t.Fatalf("ListByRole failed: %v", err)
	}
	if len(leaders) != 2 {
		t.Fatalf("expected 2 active leaders, got %d", len(leaders))
	}
	if leaders[0].FirstName != "Alba" || leaders[1].FirstName != "Beto" {
		t.Errorf("leaders not sorted by name: %s, %s", leaders[0].FirstName, leaders[1].FirstName)
	}
}

func TestStore_EmailExists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := memberstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m := fixtures.CreateMember(ctx, "Ana", "Ruiz", "ana@example.com", "leader")

	ok, err := store.EmailExists(ctx, "ANA@example.com")
	if err != nil {
		t.Fatalf("EmailExists failed: %v", err)
	}
	if !ok {
		t.Error("EmailExists should be true for an existing email")
	}

	ok, err = store.EmailExistsForOther(ctx, "ana@example.com", m.ID)
	if err != nil {
		t.Fatalf("EmailExistsForOther failed: %v", err)
	}
	if ok {
		t.Error("EmailExistsForOther should ignore the excluded member")
	}
}
