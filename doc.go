// Package vidshare provides the vidshare video-sharing API server.

// The entry points live under cmd/:

// - cmd/server: the HTTP API and notification websocket
// - cmd/admin: migrations, seeding, counter repair and search reindexing

// The API is organized into internal packages:

// - internal/handlers: HTTP request handlers for every API endpoint
// - internal/models: data models and database schemas
// - internal/auth: registration, JWT sessions and password resets
// - internal/engagement: likes, subscriptions, comments, views and counters
// - internal/storage: S3/MinIO uploads behind a circuit breaker
// - internal/search: Elasticsearch with a SQL fallback
// - internal/realtime: websocket hub for live notifications
package vidshare
