package memberstore

import (
	"context"

	"github.com/unestilodevida/cellhub/internal/app/system/normalize"
	"github.com/unestilodevida/cellhub/internal/app/system/timeouts"
	"github.com/unestilodevida/cellhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fetcher implements auth.MemberFetcher to load fresh member data on
// each authenticated request.
type Fetcher struct {
	members *mongo.Collection
}

// NewFetcher creates a MemberFetcher that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{members: db.Collection("members")}
}

// FetchByEmail retrieves a member by normalized email. Returns
// mongo.ErrNoDocuments if no member uses the email.
func (f *Fetcher) FetchByEmail(ctx context.Context, email string) (*models.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var m models.Member
	if err := f.members.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
