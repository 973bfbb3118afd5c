package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chatgo/internal/config"
	"chatgo/internal/domain"
	"chatgo/internal/security"
	"chatgo/internal/service"
	"chatgo/internal/ws"
)

// Services bundles the application services the router wires up.
type Services struct {
	Auth     *service.AuthService
	Chats    *service.ChatService
	Messages *service.MessageService
	Guard    *service.MembershipGuard
	Users    domain.UserRepository
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(cfg *config.Config, svcs Services, hub *ws.Hub, tokens *security.TokenService) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": cfg.AppName,
			"version": "1.0.0",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(svcs.Auth))
			r.Post("/login", handleLogin(svcs.Auth))
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokens, svcs.Users))

			r.Get("/users/me", handleMe())

			r.Route("/chats", func(r chi.Router) {
				r.Get("/", handleListChats(svcs.Chats))
				r.Post("/", handleCreateChat(svcs.Chats))
				r.Get("/{chatID}", handleGetChat(svcs.Chats))
				r.Delete("/{chatID}", handleDeleteChat(svcs.Chats))
				r.Post("/{chatID}/participants", handleAddParticipant(svcs.Chats))
				r.Delete("/{chatID}/participants", handleRemoveParticipant(svcs.Chats))
			})

			r.Route("/messages", func(r chi.Router) {
				r.Get("/", handleListMessages(svcs.Messages))
				r.Post("/", handleCreateMessage(svcs.Messages))
				r.Put("/{messageID}", handleEditMessage(svcs.Messages))
				r.Delete("/{messageID}", handleDeleteMessage(svcs.Messages))
			})
		})
	})

	// Live channel
	r.Get("/ws", ws.MakeHandler(hub, tokens, svcs.Users, svcs.Guard, svcs.Messages, cfg.CORSOrigins))

	return r
}
