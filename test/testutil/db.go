package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/livinglib/internal/config"
	"github.com/xxxsen/livinglib/internal/db"
)

// OpenTestDB connects to the pgvector-enabled test database named by
// TEST_DB_HOST and applies migrations. The test is skipped when it is unset.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "livinglib",
		Password: "livinglib_pass",
		DBName:   "livinglib_test",
		SSLMode:  "disable",
		PoolSize: 4,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

// InsertMaterial creates a material with a primary file asset and returns
// the material and file ids.
func InsertMaterial(t *testing.T, conn *sql.DB, title string, year int, provider, path, bucket string) (int64, int64) {
	t.Helper()
	var materialID, fileID int64
	if err := conn.QueryRow(`INSERT INTO material (title, year) VALUES ($1, $2) RETURNING material_id`, title, year).Scan(&materialID); err != nil {
		t.Fatalf("insert material: %v", err)
	}
	var b interface{}
	if bucket != "" {
		b = bucket
	}
	if err := conn.QueryRow(`INSERT INTO file_asset (material_id, storage_provider, storage_path, storage_bucket, is_primary)
		VALUES ($1, $2, $3, $4, TRUE) RETURNING file_id`, materialID, provider, path, b).Scan(&fileID); err != nil {
		t.Fatalf("insert file asset: %v", err)
	}
	return materialID, fileID
}
