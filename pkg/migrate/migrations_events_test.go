package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWebhookEventsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_webhook_events.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS webhook_events",
		"FOREIGN KEY (webhook_config_id) REFERENCES webhook_configs(id) ON DELETE CASCADE",
		"CHECK (status IN ('PENDING', 'PROCESSED', 'INVALID', 'FAILED'))",
		"CHECK (attempt_count >= 0)",
		"WHERE status = 'PENDING' AND published_at IS NULL",
		"DROP TABLE IF EXISTS webhook_events",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestGristMigrationContainsUniqueColumnConstraint(t *testing.T) {
	content := readMigration(t, "*_create_grist_configs.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS grist_configs",
		"CREATE TABLE IF NOT EXISTS grist_columns",
		"CONSTRAINT ux_grist_columns_config_col UNIQUE (grist_config_id, col_id)",
		"FOREIGN KEY (grist_config_id) REFERENCES grist_configs(id) ON DELETE CASCADE",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestProjectRecordsMigrationContainsUpsertConstraint(t *testing.T) {
	content := readMigration(t, "*_create_project_records.sql")

	if !strings.Contains(content, "CONSTRAINT ux_project_records_config_project UNIQUE (grist_config_id, project_id)") {
		t.Errorf("missing unique constraint on (grist_config_id, project_id)")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %q", pattern)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
