package main

import (
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"toursapp/internal/auth"
	"toursapp/internal/config"
	"toursapp/internal/database"
	"toursapp/internal/email"
	"toursapp/internal/logging"
	redisx "toursapp/internal/redis"
	"toursapp/internal/reviews"
	"toursapp/internal/server"
	"toursapp/internal/tours"
)

const logFileMaxBytes = 10 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logOutput := io.Writer(os.Stdout)
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			log.Fatalf("log setup error: %v", err)
		}
		f, err := logging.NewRotatingFileWriter(cfg.LogFile, logFileMaxBytes)
		if err != nil {
			log.Fatalf("log file open error: %v", err)
		}
		defer f.Close()
		logOutput = io.MultiWriter(os.Stdout, f)
	}
	log.SetOutput(logOutput)
	log.SetFlags(log.LstdFlags | log.LUTC | log.Lshortfile)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer db.Close()

	redisClient, err := redisx.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis error: %v", err)
	}
	defer redisClient.Close()

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.JWTSecret),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		Issuer:     cfg.BaseURL,
	})
	if err != nil {
		log.Fatalf("token service error: %v", err)
	}

	hasher := auth.NewBcryptHasher()
	users := auth.NewUserRepository(db, hasher)
	sessions := auth.NewRefreshSessionRepository(db)
	tourStore := tours.NewRepository(db)
	reviewStore := reviews.NewRepository(db)
	rateLimiter := &auth.RateLimiter{Redis: redisClient}
	mailer := email.NewSender(cfg.Email)
	totpSvc := auth.NewTOTPService(cfg.TOTPIssuer)

	api := server.NewServer(cfg, users, sessions, tourStore, reviewStore, tokens, totpSvc, hasher, rateLimiter, mailer)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Router(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
	}

	log.Printf("Listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
