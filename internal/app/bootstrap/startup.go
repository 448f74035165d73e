// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/dalemusser/waffle/config"
	memberstore "github.com/unestilodevida/cellhub/internal/app/store/members"
	"github.com/unestilodevida/cellhub/internal/app/system/authutil"
	"github.com/unestilodevida/cellhub/internal/app/system/normalize"
	"github.com/unestilodevida/cellhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := os.MkdirAll(appCfg.PhotoLocalPath, 0o755); err != nil {
		return fmt.Errorf("create photo directory: %w", err)
	}

	if appCfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, deps, appCfg.AdminEmail, appCfg.AdminPassword, logger); err != nil {
			return err
		}
	}
	return nil
}

// ensureAdmin guarantees an admin account exists for the configured
// email. An existing member with that email is promoted; otherwise a
// new admin is created with the configured password.
func ensureAdmin(ctx context.Context, deps DBDeps, email, password string, logger *zap.Logger) error {
	store := memberstore.New(deps.MongoDatabase)
	email = normalize.Email(email)

	existing, err := store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin {
			return nil
		}
		role := models.RoleAdmin
		if uerr := store.Update(ctx, existing.ID, memberstore.Update{Role: &role}); uerr != nil {
			return fmt.Errorf("promote admin: %w", uerr)
		}
		logger.Info("promoted existing member to admin", zap.String("email", email))
		return nil
	case err == mongo.ErrNoDocuments:
		// fall through to create
	default:
		return fmt.Errorf("look up admin: %w", err)
	}

	if err := authutil.ValidatePassword(password); err != nil {
		return fmt.Errorf("admin password: %w", err)
	}
	hash, err := authutil.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = store.Create(ctx, models.Member{
		FirstName:    "Admin",
		LastName:     "CellHub",
		Email:        email,
		Role:         models.RoleAdmin,
		PasswordHash: hash,
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("created initial admin", zap.String("email", email))
	return nil
}
