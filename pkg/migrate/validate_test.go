package migrate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/recoco/recoco-relay/pkg/migrate"
)

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "001_bad_version.sql")
	if err := os.WriteFile(path, []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write migration: %v", err)
	}

	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected error for short version prefix")
	}
}

func TestValidateDirRejectsMissingGooseHeaders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "20250101000000_no_headers.sql")
	if err := os.WriteFile(path, []byte("CREATE TABLE t (id INT);"), 0o644); err != nil {
		t.Fatalf("write migration: %v", err)
	}

	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected error for missing goose headers")
	}
}
