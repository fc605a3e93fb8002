package db

import (
	"log"

	"launchpad-backend/internal/config"
	"launchpad-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB connects to PostgreSQL and migrates the schema. Fatal on failure:
// the coordinator cannot run without its state store.
func InitDB() {
	var err error

	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	DB, err = gorm.Open(postgres.Open(config.AppConfig.Database.DSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		CreateBatchSize:                          1000,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	log.Println("✅ Database connected successfully")

	if err := DB.AutoMigrate(
		&models.Launch{},
		&models.CurveState{},
		&models.MigrationRecord{},
		&models.DeploymentRecord{},
		&models.SyncCursor{},
		&models.TradeEvent{},
		&models.FanoutDeadLetter{},
		&models.AuthorizedCaller{},
	); err != nil {
		log.Fatalf("Failed to migrate database schema: %v", err)
	}

	log.Println("✅ Database schema migrated")
}
