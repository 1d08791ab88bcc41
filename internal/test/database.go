package test

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"sync"
	"testing"

	integresql "github.com/allaboutapps/integresql-client-go"
	"github.com/ethereum/go-ethereum/crypto"

	"github/chapool/go-ledger/internal/ledger/journal"

	// Import postgres driver for database/sql package
	_ "github.com/lib/pq"
)

// IntegreSQLBaseURLEnv points tests at the IntegreSQL server handing out
// Postgres test databases.
const IntegreSQLBaseURLEnv = "INTEGRESQL_CLIENT_BASE_URL"

var (
	client     *integresql.Client
	clientOnce sync.Once
	clientErr  error

	templateHash string
	templateOnce sync.Once
	templateErr  error
)

// WithTestDatabase runs closure against an isolated database holding the
// migrated journal schema. Tests are skipped when no IntegreSQL server is
// configured.
func WithTestDatabase(t *testing.T, closure func(db *sql.DB)) {
	t.Helper()

	if os.Getenv(IntegreSQLBaseURLEnv) == "" {
		t.Skipf("%s not set, skipping database test", IntegreSQLBaseURLEnv)
	}

	ctx := context.Background()

	clientOnce.Do(func() {
		client, clientErr = integresql.DefaultClientFromEnv()
	})
	if clientErr != nil {
		t.Fatalf("Failed to create new integresql-client: %v", clientErr)
	}

	templateOnce.Do(func() {
		templateHash, templateErr = journalTemplateHash()
		if templateErr != nil {
			return
		}
		templateErr = client.SetupTemplateWithDBClient(ctx, templateHash, func(db *sql.DB) error {
			_, err := journal.Migrate(ctx, db)
			return err
		})
		if templateErr != nil {
			// a template that failed to set up blocks every later test database
			_ = client.DiscardTemplate(ctx, templateHash)
		}
	})
	if templateErr != nil {
		t.Fatalf("Failed to setup journal template database: %v", templateErr)
	}

	testDatabase, err := client.GetTestDatabase(ctx, templateHash)
	if err != nil {
		t.Fatalf("Failed to obtain test database: %v", err)
	}

	db, err := sql.Open("postgres", testDatabase.Config.ConnectionString())
	if err != nil {
		t.Fatalf("Failed to setup test database for connectionString %q: %v", testDatabase.Config.ConnectionString(), err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	closure(db)
}

// journalTemplateHash changes whenever a journal migration changes.
func journalTemplateHash() (string, error) {
	migrations, err := journal.Migrations.FindMigrations()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, m := range migrations {
		b.WriteString(m.Id)
		for _, stmt := range m.Up {
			b.WriteString(stmt)
		}
	}

	return crypto.Keccak256Hash([]byte(b.String())).Hex()[2:34], nil
}
