package test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Momena-akhtar/classfellow-sub000/internal/profile"
	"github.com/Momena-akhtar/classfellow-sub000/store"
	"github.com/Momena-akhtar/classfellow-sub000/store/db"
)

// getDriverFromEnv returns the driver under test. DRIVER=postgres selects
// PostgreSQL, anything else selects SQLite.
func getDriverFromEnv() string {
	if os.Getenv("DRIVER") == "postgres" {
		return "postgres"
	}
	return "sqlite"
}

// NewTestingStore opens a migrated store for the driver under test.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	profile := getTestingProfile(t)
	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	ts := store.New(dbDriver, profile)
	if err := ts.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() { _ = ts.Close() })
	return ts
}

func getTestingProfile(t *testing.T) *profile.Profile {
	driver := getDriverFromEnv()
	dir := t.TempDir()

	p := &profile.Profile{
		Mode:         "dev",
		Data:         dir,
		Driver:       driver,
		SessionTTL:   24 * time.Hour,
		StoreTimeout: 3 * time.Second,
	}
	switch driver {
	case "postgres":
		p.DSN = GetPostgresDSN(t)
	default:
		p.DSN = filepath.Join(dir, fmt.Sprintf("classfellow_%s.db", p.Mode))
	}
	return p
}
