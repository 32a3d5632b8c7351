package db

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/afyalink/referral-service/internal/payment"
	"github.com/afyalink/referral-service/internal/referral"
)

// checkValues extracts the quoted values of a "column IN (...)" CHECK
// clause from the schema file.
func checkValues(t *testing.T, schema, column string) map[string]bool {
	t.Helper()

	re := regexp.MustCompile(column + `\s+IN\s*\(([^)]+)\)`)
	m := re.FindStringSubmatch(schema)
	if m == nil {
		t.Fatalf("no CHECK clause for column %s in schema", column)
	}

	values := make(map[string]bool)
	for _, raw := range strings.Split(m[1], ",") {
		values[strings.Trim(strings.TrimSpace(raw), "'")] = true
	}
	return values
}

func loadSchema(t *testing.T) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_init.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	return string(raw)
}

func TestSchemaAcceptsModelPriorities(t *testing.T) {
	allowed := checkValues(t, loadSchema(t), "priority")

	for _, p := range []referral.Priority{
		referral.PriorityRoutine,
		referral.PriorityUrgent,
		referral.PriorityEmergency,
	} {
		if !p.Valid() {
			t.Errorf("priority %q fails model validation", p)
		}
		if !allowed[string(p)] {
			t.Errorf("priority %q passes model validation but violates the schema CHECK (allowed: %v)", p, allowed)
		}
	}
}

func TestSchemaAcceptsPaymentStatuses(t *testing.T) {
	allowed := checkValues(t, loadSchema(t), "status")

	for _, s := range []payment.Status{
		payment.StatusPending,
		payment.StatusCompleted,
		payment.StatusFailed,
	} {
		if !allowed[string(s)] {
			t.Errorf("payment status %q violates the schema CHECK (allowed: %v)", s, allowed)
		}
	}
}

func TestMigratorLoadOrdersByVersion(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"010_add_index.sql": "CREATE INDEX x ON t (a);",
		"002_alter.sql":     "ALTER TABLE t ADD COLUMN b INT;",
		"001_init.sql":      "CREATE TABLE t (a INT);",
		"notes.txt":         "not a migration",
		"README.sql":        "no numeric prefix",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	migrations, err := NewMigrator(nil, dir).load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, want := range []int{1, 2, 10} {
		if migrations[i].Version != want {
			t.Errorf("migration %d: version = %d, want %d", i, migrations[i].Version, want)
		}
	}
}
