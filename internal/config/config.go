package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mrbooking/backend/internal/models"
)

type Config struct {
	SERVER_PORT int
	LOG_LEVEL   string

	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	REDIS_ADDR     string
	REDIS_PASSWORD string
	REDIS_DB       int

	JWT_SECRET               string
	ACCESS_TOKEN_EXPIRES_IN  time.Duration
	REFRESH_TOKEN_EXPIRES_IN time.Duration

	SMTP_HOST      string
	SMTP_PORT      int
	SMTP_USER      string
	SMTP_PASSWORD  string
	SMTP_FROM_NAME string
	SMTP_FROM_ADDR string

	S3_ACCESS_KEY_ID     string
	S3_SECRET_ACCESS_KEY string
	S3_ENDPOINT_URL      string
	S3_REGION            string
	S3_BUCKET_NAME       string
	S3_UPLOAD_KEY        string
	S3_FILE_PREFIX_URL   string

	KAFKA_ADDRESS string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		SERVER_PORT: envIntDefault("SERVER_PORT", 8080),
		LOG_LEVEL:   os.Getenv("LOG_LEVEL"),

		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_NAME:     os.Getenv("DB_NAME"),

		REDIS_ADDR:     os.Getenv("REDIS_ADDR"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:       envIntDefault("REDIS_DB", 0),

		JWT_SECRET:               os.Getenv("JWT_SECRET"),
		ACCESS_TOKEN_EXPIRES_IN:  envDurationDefault("JWT_ACCESS_TOKEN_EXPIRES_TIME", 30*time.Minute),
		REFRESH_TOKEN_EXPIRES_IN: envDurationDefault("JWT_REFRESH_TOKEN_EXPIRES_TIME", 7*24*time.Hour),

		SMTP_HOST:      os.Getenv("SMTP_HOST"),
		SMTP_PORT:      envIntDefault("SMTP_PORT", 587),
		SMTP_USER:      os.Getenv("SMTP_USER"),
		SMTP_PASSWORD:  os.Getenv("SMTP_PASSWORD"),
		SMTP_FROM_NAME: os.Getenv("SMTP_FROM_NAME"),
		SMTP_FROM_ADDR: os.Getenv("SMTP_FROM_ADDR"),

		S3_ACCESS_KEY_ID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3_SECRET_ACCESS_KEY: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3_ENDPOINT_URL:      os.Getenv("S3_ENDPOINT_URL"),
		S3_REGION:            os.Getenv("S3_REGION"),
		S3_BUCKET_NAME:       os.Getenv("S3_BUCKET_NAME"),
		S3_UPLOAD_KEY:        os.Getenv("S3_UPLOAD_KEY"),
		S3_FILE_PREFIX_URL:   os.Getenv("S3_FILE_PREFIX_URL"),

		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),

		ES_URL:      os.Getenv("ES_URL"),
		ES_USER:     os.Getenv("ES_USER"),
		ES_PASSWORD: os.Getenv("ES_PASSWORD"),
	}

	return config, nil
}

func InitDB(configuration *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		configuration.DB_USER, configuration.DB_PASSWORD,
		configuration.DB_HOST, configuration.DB_PORT, configuration.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.Permission{}, &models.Role{}, &models.User{}, &models.MeetingRoom{}); err != nil {
		return nil, fmt.Errorf("cannot run migrations: %w", err)
	}
	return db, nil
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
