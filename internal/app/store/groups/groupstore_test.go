package groupstore_test

import (
	"testing"

	groupstore "github.com/unestilodevida/cellhub/internal/app/store/groups"
	"github.com/unestilodevida/cellhub/internal/domain/models"
	"github.com/unestilodevida/cellhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func validGroup(name string) models.Group {
	return models.Group{
		Name:      name,
		Weekday:   "Friday",
		Gender:    "men",
		StartTime: "19:30",
		Address:   "Calle Falsa 123",
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, validGroup("Jóvenes Norte"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Weekday != "friday" {
		t.Errorf("weekday not normalized: %q", created.Weekday)
	}
	if created.LeaderID != nil || created.AssistantID != nil {
		t.Error("Create must not set slot fields")
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "Jóvenes Norte" {
		t.Errorf("name = %q", got.Name)
	}
	if !got.Active() {
		t.Error("new group should be active")
	}
}

func TestStore_Create_InvalidEnums(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := validGroup("G")
	g.Weekday = "someday"
	if _, err := store.Create(ctx, g); err == nil {
		t.Error("Create with invalid weekday should fail")
	}

	g = validGroup("G")
	g.Gender = "other"
	if _, err := store.Create(ctx, g); err == nil {
		t.Error("Create with invalid gender should fail")
	}
}

func TestStore_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Original")

	name := "Renombrado"
	lat := 19.4326
	if err := store.Update(ctx, g.ID, groupstore.Update{Name: &name, Latitude: &lat}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.GetByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "Renombrado" {
		t.Errorf("name = %q", got.Name)
	}
	if got.Latitude == nil || *got.Latitude != 19.4326 {
		t.Errorf("latitude = %v", got.Latitude)
	}
	if got.Weekday != g.Weekday {
		t.Errorf("weekday should be untouched, got %q", got.Weekday)
	}
}

func TestStore_Update_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	name := "X"
	if err := store.Update(ctx, primitive.NewObjectID(), groupstore.Update{Name: &name}); err != mongo.ErrNoDocuments {
		t.Errorf("Update = %v, want mongo.ErrNoDocuments", err)
	}
}

func TestStore_ListActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateGroup(ctx, "Beta")
	fixtures.CreateGroup(ctx, "Alfa")
	gone := fixtures.CreateGroup(ctx, "Cerrado")
	fixtures.DeactivateGroup(ctx, gone.ID)

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active groups, got %d", len(active))
	}
	if active[0].Name != "Alfa" || active[1].Name != "Beta" {
		t.Errorf("groups not sorted by name: %s, %s", active[0].Name, active[1].Name)
	}
}
