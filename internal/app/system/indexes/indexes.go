// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup can fail
fast instead of limping along without its unique constraints.
*/
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	var problems []string

	if err := ensureMembers(ctx, db, logger); err != nil {
		problems = append(problems, "members: "+err.Error())
	}
	if err := ensureGroups(ctx, db, logger); err != nil {
		problems = append(problems, "groups: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ensureMembers sets up the members collection.
//
// The email index is unique with no partial filter: uniqueness is
// historical, covering deactivated members too, so a soft-deleted
// member's address can never be reused.
func ensureMembers(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	c := db.Collection("members")
	return ensureIndexSet(ctx, c, logger, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_email").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("by_name"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index().SetName("by_role"),
		},
	})
}

// ensureGroups sets up the groups collection.
//
// leader_id and assistant_id carry unique partial indexes over documents
// where the slot is set. Deactivating a group unsets both slots, so a
// set slot always belongs to an active group and the index doubles as a
// storage-level backstop for the one-active-group-per-member invariant.
// The groupassign store still performs the authoritative transactional
// check; the index only converts a lost race into a duplicate-key error
// instead of a silent double booking.
func ensureGroups(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	c := db.Collection("groups")
	return ensureIndexSet(ctx, c, logger, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "leader_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_leader").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "leader_id", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
		{
			Keys: bson.D{{Key: "assistant_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_assistant").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "assistant_id", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("by_name"),
		},
		{
			Keys:    bson.D{{Key: "deactivated_at", Value: 1}},
			Options: options.Index().SetName("by_deactivated"),
		},
	})
}

// ensureIndexSet creates each desired index, tolerating the cases where
// an equivalent index already exists.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, logger *zap.Logger, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		name := ""
		if m.Options != nil && m.Options.Name != nil {
			name = *m.Options.Name
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isOptionsConflictErr(err) {
				// Same keys under a different name or options; the
				// operator must reconcile by hand, but startup can go on.
				logger.Warn("index options conflict",
					zap.String("collection", coll.Name()),
					zap.String("name", name),
					zap.Error(err))
				continue
			}
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			continue
		}

		logger.Info("ensured index",
			zap.String("collection", coll.Name()),
			zap.String("name", name))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Mongo/DocDB returns IndexOptionsConflict when an index with the same
// keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict") ||
		strings.Contains(err.Error(), "IndexKeySpecsConflict")
}
