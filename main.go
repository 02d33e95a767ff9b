package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meinhoongagan/spa-app/config"
	"github.com/meinhoongagan/spa-app/controllers"
	"github.com/meinhoongagan/spa-app/cron"
	"github.com/meinhoongagan/spa-app/db"
	"github.com/meinhoongagan/spa-app/logger"
	"github.com/meinhoongagan/spa-app/realtime"
	"github.com/meinhoongagan/spa-app/redis"
	"github.com/meinhoongagan/spa-app/routes"
	"github.com/meinhoongagan/spa-app/utils"
)

func main() {
	cfg, err := config.Load()
	logger.Init("spa-app", config.Get().Env)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := db.Init(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if cfg.RedisAddr != "" {
		if err := redis.InitRedis(ctx, cfg.RedisAddr, cfg.RedisPassword); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-process change feed; password reset disabled")
		}
	}
	cancel()

	if redis.Client != nil {
		broker, err := realtime.NewRedisBroker(redis.Client, realtime.DefaultBuffer)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create change feed")
		}
		realtime.Default = broker
	}

	if cfg.CloudinaryCloudName != "" {
		uploader, err := utils.InitCloudinary(utils.CloudinaryConfig{
			CloudName:    cfg.CloudinaryCloudName,
			APIKey:       cfg.CloudinaryAPIKey,
			APISecret:    cfg.CloudinaryAPISecret,
			UploadPreset: cfg.CloudinaryUploadPreset,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize cloudinary")
		}
		utils.ImageUploader = uploader
	} else {
		log.Warn().Msg("CLOUDINARY_CLOUD_NAME not set, image uploads disabled")
	}

	utils.DefaultMailer = utils.NewSMTPMailer(utils.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.EmailUser,
		Password: cfg.EmailPass,
	})

	scheduler, err := cron.StartCronJobs(cfg.ReminderSchedule, &cron.Reminder{
		DB:       db.GetDB(),
		Mailer:   utils.DefaultMailer,
		Timezone: cfg.Timezone,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	streams, stopStreams := context.WithCancel(context.Background())
	controllers.SetStreamContext(streams)

	app := routes.NewApp()
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Msg("server started")

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	log.Info().Msg("shutting down")

	<-scheduler.Stop().Done()
	stopStreams()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	_ = realtime.Default.Close()
	if err := redis.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close redis")
	}
	if sqlDB, err := db.GetDB().DB(); err == nil {
		_ = sqlDB.Close()
	}
}
