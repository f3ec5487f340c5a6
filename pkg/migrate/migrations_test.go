package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lucasfarre/ordercore-backend/pkg/migrate"
)

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestCoreSchemaMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_core_schema.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no core schema migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE inventory_records",
		"PRIMARY KEY (product_id, store_id)",
		"quantity_available >= 0 AND quantity_on_hold >= 0 AND quantity_reserved >= 0",
		"CREATE TYPE order_status",
		"DROP TABLE inventory_records",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentsMigrationEnforcesNotificationUniqueness(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_payments_and_outbox.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no payments migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	for _, sub := range []string{
		"CREATE UNIQUE INDEX ux_webhook_notifications_notification_id",
		"CREATE UNIQUE INDEX ux_payment_transactions_reference",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
