// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	groupsfeature "github.com/unestilodevida/cellhub/internal/app/features/groups"
	healthfeature "github.com/unestilodevida/cellhub/internal/app/features/health"
	loginfeature "github.com/unestilodevida/cellhub/internal/app/features/login"
	membersfeature "github.com/unestilodevida/cellhub/internal/app/features/members"
	userinfofeature "github.com/unestilodevida/cellhub/internal/app/features/userinfo"
	"github.com/unestilodevida/cellhub/internal/app/store/groupassign"
	groupstore "github.com/unestilodevida/cellhub/internal/app/store/groups"
	memberstore "github.com/unestilodevida/cellhub/internal/app/store/members"
	"github.com/unestilodevida/cellhub/internal/app/system/auth"
	"github.com/unestilodevida/cellhub/internal/app/system/photos"
	"github.com/unestilodevida/cellhub/internal/app/system/ratelimit"
	"github.com/unestilodevida/cellhub/internal/app/system/tokens"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and any Startup hooks have completed. CellHub builds the token
// service and auth gateway, wires the stores, and mounts the JSON
// feature routers.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	tokenSvc, err := tokens.New(appCfg.JWTSecret, appCfg.JWTExpiry)
	if err != nil {
		logger.Error("token service init failed", zap.Error(err))
		return nil, err
	}

	photoStore, err := photos.New(appCfg.PhotoLocalPath, appCfg.PhotoLocalURL)
	if err != nil {
		logger.Error("photo store init failed", zap.Error(err))
		return nil, err
	}

	members := memberstore.New(deps.MongoDatabase)
	groups := groupstore.New(deps.MongoDatabase)
	assign := groupassign.New(deps.MongoClient, deps.MongoDatabase)

	// The gateway fetches fresh member data on each request so role
	// changes and deactivations take effect immediately, not at token
	// expiry.
	gateway := auth.NewGateway(tokenSvc, memberstore.NewFetcher(deps.MongoDatabase), logger)

	r := chi.NewRouter()

	// Global auth middleware: loads the token identity into context if
	// a valid bearer token is present. Enforcement happens per-route.
	r.Use(gateway.LoadTokenUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Profile photos with pre-compressed file support
	r.Handle(appCfg.PhotoLocalURL+"/*", fileserver.Handler(appCfg.PhotoLocalURL, appCfg.PhotoLocalPath))

	// Authentication
	limiter := ratelimit.NewLoginLimiter(appCfg.LoginRateLimit, appCfg.LoginRateWindow)
	loginHandler := loginfeature.NewHandler(members, tokenSvc, limiter, photoStore, appCfg.BaseURL, logger)
	r.Mount("/auth", loginfeature.Routes(loginHandler))

	// Token identity echo
	userinfofeature.MountRoutes(r, userinfofeature.NewHandler())

	// Member management
	membersHandler := membersfeature.NewHandler(members, assign, photoStore, appCfg.BaseURL, logger)
	r.Mount("/api/members", membersfeature.Routes(membersHandler))

	// Group management
	groupsHandler := groupsfeature.NewHandler(groups, assign, photoStore, appCfg.BaseURL, logger)
	r.Mount("/api/groups", groupsfeature.Routes(groupsHandler))

	return r, nil
}
