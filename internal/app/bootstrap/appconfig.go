// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP ports,
// TLS, logging level, and CORS. AppConfig is everything specific to
// this application.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Bearer token configuration
	JWTSecret string        // HMAC signing key (must be strong in production)
	JWTExpiry time.Duration // Token lifetime

	// Public base URL used to build absolute photo URLs
	BaseURL string // e.g., "https://cellhub.example.org"

	// Profile photo storage
	PhotoLocalPath string // Local directory photos are written to
	PhotoLocalURL  string // URL prefix photos are served under (e.g., "/photos")

	// Login rate limiting
	LoginRateLimit  int           // Attempts per IP within the window
	LoginRateWindow time.Duration // Sliding window length

	// Initial admin bootstrap (created on startup when missing)
	AdminEmail    string
	AdminPassword string
}
