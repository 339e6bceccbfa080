package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mrbooking/backend/internal/cache"
	"github.com/mrbooking/backend/internal/config"
	"github.com/mrbooking/backend/internal/events"
	"github.com/mrbooking/backend/internal/guard"
	"github.com/mrbooking/backend/internal/handlers"
	"github.com/mrbooking/backend/internal/logging"
	"github.com/mrbooking/backend/internal/mail"
	"github.com/mrbooking/backend/internal/response"
	"github.com/mrbooking/backend/internal/storage"
	"github.com/mrbooking/backend/internal/tokens"
	httpserver "github.com/mrbooking/backend/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if configuration.JWT_SECRET == "" {
		log.Fatal("missing required env JWT_SECRET")
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}
	if err := config.SeedRBAC(db); err != nil {
		log.Fatalf("rbac seed error: %v", err)
	}

	codes := cache.NewCodes(configuration.REDIS_ADDR, configuration.REDIS_PASSWORD, configuration.REDIS_DB)

	tokenService := &tokens.Service{
		Secret:     []byte(configuration.JWT_SECRET),
		AccessTTL:  configuration.ACCESS_TOKEN_EXPIRES_IN,
		RefreshTTL: configuration.REFRESH_TOKEN_EXPIRES_IN,
	}

	var producer *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	var esClient *elasticsearch.Client
	if configuration.ES_URL != "" {
		esClient, err = elasticsearch.NewClient(elasticsearch.Config{
			Addresses: []string{configuration.ES_URL},
			Username:  configuration.ES_USER,
			Password:  configuration.ES_PASSWORD,
		})
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
	}

	uploader, err := storage.NewUploader(context.Background(), configuration)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = response.HTTPErrorHandler
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), middleware.CORS())
	e.Use(logging.RequestLogger(logger))

	deps := httpserver.Deps{
		Guard: &guard.Guard{Tokens: tokenService},
		UserHandler: &handlers.UserHandler{
			DB:       db,
			Codes:    codes,
			Tokens:   tokenService,
			Mail:     mail.NewSender(configuration),
			Producer: producer,
		},
		RoomHandler: &handlers.RoomHandler{
			DB:       db,
			Producer: producer,
			ES:       esClient,
			Index:    "meeting_rooms",
		},
		UploadHandler: &handlers.UploadHandler{Uploader: uploader},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", configuration.SERVER_PORT),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := codes.Close(); err != nil {
		log.Printf("redis close error: %v", err)
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
