// Package store is the gateway's persistence layer: a single relational
// database (SQLite in "Lite Mode", Postgres when DATABASE_URL is set) behind
// one Store interface, the way cmd/helm picks its backing database at boot.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

// Store is every persistence operation the gateway's components need.
type Store interface {
	Close() error

	SaveIntent(ctx context.Context, intent *policy.IntentContract) error
	GetIntent(ctx context.Context, intentID string) (*policy.IntentContract, error)

	RecordDecision(ctx context.Context, event *AuditEvent) error
	GetDecision(ctx context.Context, decisionID string) (*AuditEvent, error)
	QueryDecisions(ctx context.Context, f DecisionFilter) ([]AuditEvent, int, error)
	QueryAudit(ctx context.Context, f AuditFilter) ([]AuditEvent, int, error)
	Timeseries(ctx context.Context, since time.Time, bucket time.Duration) ([]TimeseriesPoint, error)
	BlockReasons(ctx context.Context, since time.Time) ([]BlockReasonCount, error)

	SetCredential(ctx context.Context, c *Credential) error
	GetCredential(ctx context.Context, credentialID, tenantID string) (*Credential, error)
	DeleteCredential(ctx context.Context, credentialID, tenantID string) error

	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, tenantID string) (*Tenant, error)
	GetBillingState(ctx context.Context, tenantID string) (*BillingState, error)

	CreateUser(ctx context.Context, u *User) error
	CreateAPIKey(ctx context.Context, k *ApiKey) error
	GetAPIKeyByHash(ctx context.Context, hash string) (*ApiKey, error)

	CreateChannelToken(ctx context.Context, tok *ChannelToken) error
	GetChannelTokenByHash(ctx context.Context, hash string) (*ChannelToken, error)

	CreateConnectCode(ctx context.Context, c *ConnectCode) error
	ConsumeConnectCode(ctx context.Context, code string, now time.Time) (*ConnectCode, error)
	CreateChannelBinding(ctx context.Context, b *ChannelBinding) error
	GetChannelBinding(ctx context.Context, channel, externalID string) (*ChannelBinding, error)

	SetActivePolicyPreset(ctx context.Context, name string) error
	GetActivePolicyPreset(ctx context.Context) (string, error)

	IncrementCounter(ctx context.Context, table, subject string, windowStart time.Time) (int, error)
	DecrementCounter(ctx context.Context, table, subject string, windowStart time.Time) error

	RememberMemory(ctx context.Context, m *MemoryItem) error
	RecallMemory(ctx context.Context, tenantID, key string) (*MemoryItem, error)
	ListMemory(ctx context.Context, tenantID string) ([]MemoryItem, error)
}

// SQLStore is the database/sql-backed Store, identical in shape whether it
// is driving SQLite or Postgres; the only difference is the driver name and
// placeholder style, both resolved once at Open time.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" | "postgres"
}

// Open opens (and migrates) the store. An empty databaseURL selects Lite
// Mode: a pure-Go embedded SQLite database at sqlitePath.
func Open(ctx context.Context, databaseURL, sqlitePath string) (*SQLStore, error) {
	driver := "sqlite"
	dsn := sqlitePath
	if databaseURL != "" {
		driver = "postgres"
		dsn = databaseURL
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	if driver == "sqlite" {
		if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
			return nil, fmt.Errorf("store: enable WAL: %w", err)
		}
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys=ON;`); err != nil {
			return nil, fmt.Errorf("store: enable foreign keys: %w", err)
		}
	}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ph renders the Nth (1-based) positional placeholder for the active
// driver: plain "?" is SQLite-only, Postgres (lib/pq) needs "$N", so every
// multi-arg query goes through this helper.
func (s *SQLStore) ph(n int) string {
	if s.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) now() time.Time {
	return time.Now().UTC()
}
