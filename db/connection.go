package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lingopulse/realtime-gateway/config"
	"lingopulse/realtime-gateway/models"
)

// Connect opens the platform database. The realtime gateway only reads
// role-policy rows from it; everything else in Postgres belongs to the
// main backend.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var gormLogger logger.Interface
	if cfg.Environment == "production" {
		gormLogger = logger.Default.LogMode(logger.Silent)
	} else {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Environment == "development" {
		if err := db.AutoMigrate(&models.RolePolicyRecord{}); err != nil {
			return nil, fmt.Errorf("failed to migrate role policies: %w", err)
		}
	}

	return db, nil
}

// LoadRolePolicies merges stored policy rows over the built-in tiers.
// The merged map is fixed for the lifetime of the process.
func LoadRolePolicies(db *gorm.DB, builtin map[string]models.RolePolicy) (map[string]models.RolePolicy, error) {
	var records []models.RolePolicyRecord
	if err := db.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load role policies: %w", err)
	}

	merged := make(map[string]models.RolePolicy, len(builtin)+len(records))
	for role, p := range builtin {
		merged[role] = p
	}
	for _, r := range records {
		if r.RequestsPerWindow <= 0 || r.WindowSeconds <= 0 {
			continue
		}
		merged[r.Role] = r.Policy()
	}

	return merged, nil
}
