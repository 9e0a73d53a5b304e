package main

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpapi "connectmeet/internal/api/http"
	"connectmeet/internal/config"
	"connectmeet/internal/meeting"
	"connectmeet/internal/repository"
	"connectmeet/internal/repository/model"
	"connectmeet/internal/service"
	"connectmeet/internal/signal"
	"connectmeet/internal/store"
	"connectmeet/lib/logger/slogpretty"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	st := setupStore(cfg, log)

	userRepo, err := setupUserRepository(cfg.Database, log)
	if err != nil {
		log.Error("failed to connect database", slog.Any("error", err))
		os.Exit(1)
	}

	meetingRecords := meeting.NewService(st, log)
	signals := signal.NewAdapter(st, log)

	userService := service.NewUserService(userRepo, log, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	meetingService := service.NewMeetingService(meetingRecords, userRepo, log)

	meetingController := httpapi.NewMeetingController(meetingService, meetingRecords, signals, log)
	userController := httpapi.NewUserController(userService)

	router := httpapi.SetupRouter(meetingController, userController, cfg.HTTP.AllowedOrigins, cfg.Auth.JWTSecret)

	log.Info("starting application", slog.String("addr", cfg.HTTP.Address))
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

// setupStore picks the shared document store backing meeting records and
// call signaling. Without a Redis address everything stays in-process.
func setupStore(cfg *config.Config, log *slog.Logger) store.Store {
	if cfg.Redis.Address == "" {
		log.Warn("no redis address configured, using in-memory store")
		return store.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	log.Info("using redis store", slog.String("addr", cfg.Redis.Address))
	return store.NewRedisStore(client)
}

func setupUserRepository(cfg config.DatabaseConfig, log *slog.Logger) (repository.UserRepository, error) {
	if cfg.DSN == "" {
		log.Warn("no database dsn configured, using in-memory user repository")
		return repository.NewInMemoryUserRepository(), nil
	}

	db, err := connectDatabase(cfg)
	if err != nil {
		return nil, err
	}
	return repository.NewPostgresUserRepository(db), nil
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	db.AutoMigrate(&model.User{})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
