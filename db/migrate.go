package db

import (
	"fmt"

	"github.com/meinhoongagan/spa-app/models"
	"github.com/rs/zerolog/log"
)

// Migrate runs AutoMigrate on the open connection
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database is not initialized")
	}

	err := DB.AutoMigrate(
		&models.Account{},
		&models.User{},
		&models.Service{},
		&models.Registration{},
		&models.UserRegistration{},
		&models.Todo{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Msg("migrations applied")
	return nil
}
