package db

import (
	"fmt"
	"time"

	"github.com/szabolcsnagy0/kindly/config"
	"github.com/szabolcsnagy0/kindly/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// DefaultRequestTypes are the categories seeded into an empty database.
var DefaultRequestTypes = []string{
	"Shopping",
	"Dog Walking",
	"Cleaning",
	"Gardening",
	"Tutoring",
	"Pet Sitting",
	"Home Repair",
}

// GormConfig is shared by the postgres connection and the test database.
func GormConfig(log logger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger: log,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError: true,
	}
}

func Connect(cfg config.DB, log *zap.Logger) (*gorm.DB, error) {
	gormLogger := logger.New(
		zap.NewStdLog(log),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	gcfg := GormConfig(gormLogger)
	gcfg.PrepareStmt = true

	maxRetries := 10
	var err error

	for i := 0; i < maxRetries; i++ {
		var conn *gorm.DB
		conn, err = gorm.Open(postgres.Open(cfg.DSN()), gcfg)
		if err == nil {
			sqlDB, dbErr := conn.DB()
			if dbErr == nil {
				if dbErr = sqlDB.Ping(); dbErr == nil {
					sqlDB.SetMaxIdleConns(10)
					sqlDB.SetMaxOpenConns(100)
					sqlDB.SetConnMaxLifetime(time.Hour)

					log.Info("database_connected", zap.String("host", cfg.Host), zap.String("port", cfg.Port))
					DB = conn
					return conn, nil
				}
			}
			err = dbErr
		}

		log.Warn("database_connect_retry",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err),
		)
		time.Sleep(2 * time.Second)
	}

	return nil, fmt.Errorf("connect to database after %d attempts: %w", maxRetries, err)
}

func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.User{},
		&models.RequestType{},
		&models.Request{},
		&models.Application{},
		&models.Quest{},
		&models.BadgeAchievement{},
	)
}

// SeedRequestTypes inserts the default categories when none exist.
func SeedRequestTypes(conn *gorm.DB) (int, error) {
	var count int64
	if err := conn.Model(&models.RequestType{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	types := make([]models.RequestType, 0, len(DefaultRequestTypes))
	for _, name := range DefaultRequestTypes {
		types = append(types, models.RequestType{Name: name})
	}
	if err := conn.Create(&types).Error; err != nil {
		return 0, err
	}
	return len(types), nil
}
