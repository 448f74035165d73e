// internal/app/system/txn/txn.go

// Package txn wraps multi-document Mongo transactions with a fallback
// for deployments that do not support them (standalone servers).
// Callers pass a fallback that must be safe without a session — typically
// a conditional update whose filter re-checks the invariant, so a lost
// transaction never silently widens into a lost invariant.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// WithTransaction runs fn inside a session transaction on client. When
// the server rejects transactions entirely (IsNotSupported), it runs
// fallback instead. Any other error from the transaction is returned
// as-is.
func WithTransaction(
	ctx context.Context,
	client *mongo.Client,
	fn func(sc mongo.SessionContext) error,
	fallback func(ctx context.Context) error,
) error {
	sess, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) && fallback != nil {
			return fallback(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) && fallback != nil {
		return fallback(ctx)
	}
	return err
}

// Server error codes that indicate transactions are unavailable:
// 20 IllegalOperation ("Transaction numbers are only allowed on...");
// 51 and 263 are related session/transaction rejections.
var notSupportedCodes = map[int32]struct{}{20: {}, 51: {}, 263: {}}

// IsNotSupported reports whether err means the server cannot run
// multi-document transactions at all (as opposed to a transient abort,
// which should be retried or surfaced).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		_, ok := notSupportedCodes[cmdErr.Code]
		return ok
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "transaction") &&
		(strings.Contains(msg, "replica set") || strings.Contains(msg, "session")) {
		return true
	}
	if strings.Contains(msg, "session") && strings.Contains(msg, "not supported") {
		return true
	}
	if strings.Contains(msg, "illegal operation") && strings.Contains(msg, "transaction") {
		return true
	}
	return false
}
