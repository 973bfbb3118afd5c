package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatgo/internal/config"
	"chatgo/internal/domain"
	"chatgo/internal/httpserver"
	"chatgo/internal/security"
	"chatgo/internal/service"
	"chatgo/internal/store/postgres"
	"chatgo/internal/store/sqlite"
	"chatgo/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var (
		db       *sql.DB
		users    domain.UserRepository
		chats    domain.ChatRepository
		messages domain.MessageRepository
	)
	switch cfg.DBDriver {
	case "postgres":
		db, err = postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		if err := postgres.Migrate(db); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		users = postgres.NewUserRepo(db)
		chats = postgres.NewChatRepo(db)
		messages = postgres.NewMessageRepo(db)
	default:
		db, err = sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		if err := sqlite.Migrate(db); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		users = sqlite.NewUserRepo(db)
		chats = sqlite.NewChatRepo(db)
		messages = sqlite.NewMessageRepo(db)
	}
	defer db.Close()

	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	passwordHasher := security.NewPasswordHasher(0)

	guard := service.NewMembershipGuard(chats)
	hub := ws.NewHub(guard)

	svcs := httpserver.Services{
		Auth:     service.NewAuthService(users, tokenSvc, passwordHasher),
		Chats:    service.NewChatService(chats, messages, users),
		Messages: service.NewMessageService(messages, guard, hub, cfg.MaxBodyRunes),
		Guard:    guard,
		Users:    users,
	}

	router := httpserver.NewRouter(cfg, svcs, hub, tokenSvc)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting %s on %s\n", cfg.AppName, cfg.HTTPAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
