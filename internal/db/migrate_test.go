package db

import (
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/logic.report/internal/timeutil"
)

// setupMigrationTestDB creates a test database without running migrations
func setupMigrationTestDB(t *testing.T) *DB {
	t.Helper()
	fname := filepath.Join(t.TempDir(), "migrate_test.db")

	sqlDB, err := sql.Open("sqlite", fname)
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	return &DB{DB: sqlDB, clock: timeutil.RealClock{}}
}

// setupTestMigrations creates a temporary directory with test migration files
// and returns it as an fs.FS
func setupTestMigrations(t *testing.T) fs.FS {
	t.Helper()
	tmpDir := filepath.Join(t.TempDir(), "migrations")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		t.Fatalf("failed to create temp migrations dir: %v", err)
	}

	// Create test migration files
	migrations := map[string]string{
		"000001_create_test_table.up.sql": `
			CREATE TABLE IF NOT EXISTS test_table (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL
			);
		`,
		"000001_create_test_table.down.sql": `
			DROP TABLE IF EXISTS test_table;
		`,
		"000002_add_test_column.up.sql": `
			ALTER TABLE test_table ADD COLUMN description TEXT;
		`,
		"000002_add_test_column.down.sql": `
			-- SQLite doesn't support DROP COLUMN directly, so we need to recreate the table
			CREATE TABLE test_table_new (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL
			);
			INSERT INTO test_table_new (id, name) SELECT id, name FROM test_table;
			DROP TABLE test_table;
			ALTER TABLE test_table_new RENAME TO test_table;
		`,
	}

	for filename, content := range migrations {
		path := filepath.Join(tmpDir, filename)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write migration file %s: %v", filename, err)
		}
	}

	return os.DirFS(tmpDir)
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name=?
	`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check for table %s: %v", name, err)
	}
	return exists
}

func TestMigrateUp(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := setupTestMigrations(t)

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
	if dirty {
		t.Error("database should not be dirty after successful migration")
	}

	if !tableExists(t, db, "test_table") {
		t.Error("test_table should exist after migration")
	}

	// Running again is a no-op.
	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("second MigrateUp failed: %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := setupTestMigrations(t)

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := db.MigrateDown(migrationsFS); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}

	version, _, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1 after one rollback, got %d", version)
	}
}

func TestMigrateTo(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := setupTestMigrations(t)

	if err := db.MigrateTo(migrationsFS, 1); err != nil {
		t.Fatalf("MigrateTo(1) failed: %v", err)
	}
	version, _, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1, got %d", version)
	}

	if err := db.MigrateTo(migrationsFS, 2); err != nil {
		t.Fatalf("MigrateTo(2) failed: %v", err)
	}
	version, _, err = db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
}

func TestMigrateForce(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := setupTestMigrations(t)

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := db.MigrateForce(migrationsFS, 1); err != nil {
		t.Fatalf("MigrateForce failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected forced version 1, got %d", version)
	}
	if dirty {
		t.Error("forced version should not be dirty")
	}
}

func TestMigrateVersionFreshDatabase(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := setupTestMigrations(t)

	version, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion on fresh DB failed: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("fresh DB should report version 0 clean, got %d (dirty: %v)", version, dirty)
	}
}

func TestBaselineAtVersion(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := setupTestMigrations(t)

	if err := db.BaselineAtVersion(1); err != nil {
		t.Fatalf("BaselineAtVersion failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("expected baselined version 1 clean, got %d (dirty: %v)", version, dirty)
	}

	// A second baseline must be rejected.
	if err := db.BaselineAtVersion(2); err == nil {
		t.Error("expected error when baselining an already-baselined database")
	}
}

func TestGetLatestMigrationVersion(t *testing.T) {
	migrationsFS := setupTestMigrations(t)

	latest, err := GetLatestMigrationVersion(migrationsFS)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	if latest != 2 {
		t.Errorf("expected latest version 2, got %d", latest)
	}

	empty := os.DirFS(t.TempDir())
	if _, err := GetLatestMigrationVersion(empty); err == nil {
		t.Error("expected error for directory without migrations")
	}
}

func TestGetMigrationStatus(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := setupTestMigrations(t)

	status, err := db.GetMigrationStatus(migrationsFS)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if exists, _ := status["schema_migrations_exists"].(bool); exists {
		t.Error("schema_migrations should not exist before migrations run")
	}

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	status, err = db.GetMigrationStatus(migrationsFS)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if exists, _ := status["schema_migrations_exists"].(bool); !exists {
		t.Error("schema_migrations should exist after migrations run")
	}
	if v, _ := status["current_version"].(uint); v != 2 {
		t.Errorf("expected current_version 2, got %v", status["current_version"])
	}
}

func TestCheckAndPromptMigrations(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := setupTestMigrations(t)

	// Fresh database is behind and must prompt.
	needed, err := db.CheckAndPromptMigrations(migrationsFS)
	if !needed {
		t.Error("fresh database should need migrations")
	}
	if err == nil {
		t.Error("expected out-of-date error for fresh database")
	}

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	needed, err = db.CheckAndPromptMigrations(migrationsFS)
	if needed || err != nil {
		t.Errorf("up-to-date database should pass, got needed=%v err=%v", needed, err)
	}
}

// TestEmbeddedMigrationsFS verifies the embedded migrations filesystem structure
func TestEmbeddedMigrationsFS(t *testing.T) {
	migrationsFS := MigrationsFS()

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded migration files")
	}

	found := false
	for _, entry := range entries {
		if entry.Name() == "000001_create_captures.up.sql" {
			found = true
		}
	}
	if !found {
		t.Error("000001_create_captures.up.sql missing from embedded migrations")
	}

	latest, err := GetLatestMigrationVersion(migrationsFS)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion on embedded FS failed: %v", err)
	}
	if latest != 2 {
		t.Errorf("expected latest embedded version 2, got %d", latest)
	}
}

func TestEmbeddedMigrationsApply(t *testing.T) {
	db := setupMigrationTestDB(t)

	if err := db.MigrateUp(MigrationsFS()); err != nil {
		t.Fatalf("MigrateUp with embedded migrations failed: %v", err)
	}
	if !tableExists(t, db, "captures") {
		t.Error("captures table should exist after embedded migrations")
	}

	// Walk down to zero and back up.
	if err := db.MigrateDown(MigrationsFS()); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	if err := db.MigrateDown(MigrationsFS()); err != nil {
		t.Fatalf("second MigrateDown failed: %v", err)
	}
	if tableExists(t, db, "captures") {
		t.Error("captures table should be gone after rolling back all migrations")
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		t.Fatalf("re-running MigrateUp failed: %v", err)
	}
}
