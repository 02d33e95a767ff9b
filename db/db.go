package db

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func GetDB() *gorm.DB {
	return DB
}

// Init establishes the postgres connection without running migrations
func Init(databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	if _, err := Open(postgres.Open(databaseURL)); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info().Msg("database connection established")
	return nil
}

// Open connects through any GORM dialector and installs the result as DB
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	conn, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	DB = conn
	return conn, nil
}
