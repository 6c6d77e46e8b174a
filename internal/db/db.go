package db

import (
	"fmt"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/suPer8Hu/estate-chat/internal/config"
	"github.com/suPer8Hu/estate-chat/internal/conversation"
	"github.com/suPer8Hu/estate-chat/internal/models"
)

// Connect opens the configured database, applies pool settings and migrates the schema.
func Connect(cfg config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = gormsqlite.Open(cfg.DBDSN)
	default:
		dialector = mysql.Open(cfg.DBDSN)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnLifetime)

	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&models.User{}, &conversation.Conversation{}, &conversation.Message{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
