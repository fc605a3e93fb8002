package main

import (
	"database/sql"
	"fmt"
	"log"

	"launchpad-backend/internal/config"

	_ "github.com/lib/pq"
)

// Connectivity and schema sanity check against the configured database.
func main() {
	fmt.Println("🔍 Verifying database connection...")

	if err := config.LoadConfig(""); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sqlDB, err := sql.Open("postgres", config.AppConfig.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	// The launch id is a 0x-prefixed keccak hash, 66 characters.
	var size sql.NullInt64
	err = sqlDB.QueryRow(`
		SELECT character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = 'launches'
		AND column_name = 'launch_id'
	`).Scan(&size)
	if err != nil {
		log.Fatalf("Failed to query column size: %v", err)
	}

	if !size.Valid {
		fmt.Println("❌ launches.launch_id column does not exist, run the coordinator once to migrate")
		return
	}

	fmt.Printf("📋 launches.launch_id column size: VARCHAR(%d)\n", size.Int64)
	if size.Int64 < 66 {
		fmt.Printf("❌ Column size is too small! Need VARCHAR(66), but got VARCHAR(%d)\n", size.Int64)
		return
	}

	fmt.Println("✅ Database schema looks good")
}
