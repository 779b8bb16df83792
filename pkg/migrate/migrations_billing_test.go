package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hauslist/hauslist-backend/pkg/migrate"
)

func TestBillingMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_property_billing.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no property billing migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS property_billings",
		"property_id UUID NOT NULL UNIQUE",
		"FOREIGN KEY (host_id) REFERENCES hosts(id) ON DELETE CASCADE",
		"last_event_at TIMESTAMPTZ",
		"DROP TABLE IF EXISTS property_billings",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestProcessedEventsMigrationHasUniqueEventID(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_processed_events.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no processed events migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	if !strings.Contains(string(data), "event_id TEXT NOT NULL UNIQUE") {
		t.Errorf("processed_events must enforce a unique event_id")
	}
}

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migration dir failed validation: %v", err)
	}
}
