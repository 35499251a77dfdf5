package database

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// NewORM opens gorm over an existing pool so the write path and gorm
// share connections and pool limits.
func NewORM(db *sql.DB, env string) (*gorm.DB, error) {
	level := logger.Warn
	if env == "dev" {
		level = logger.Info
	}
	return gorm.Open(mysql.New(mysql.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
}

// Migrate creates or updates the parking_lots, reservations and payments
// tables.
func Migrate(ctx context.Context, orm *gorm.DB) error {
	if err := orm.WithContext(ctx).AutoMigrate(&model.ParkingLot{}, &model.Reservation{}, &model.Payment{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// SeedLots inserts lots when the table is empty and reports how many were
// written.
func SeedLots(ctx context.Context, orm *gorm.DB, lots []model.ParkingLot) (int, error) {
	var n int64
	if err := orm.WithContext(ctx).Model(&model.ParkingLot{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count lots: %w", err)
	}
	if n > 0 || len(lots) == 0 {
		return 0, nil
	}
	if err := orm.WithContext(ctx).Create(&lots).Error; err != nil {
		return 0, fmt.Errorf("seed lots: %w", err)
	}
	return len(lots), nil
}
