package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"chatgo/internal/domain"
	"chatgo/internal/event"
	"chatgo/internal/security"
	"chatgo/internal/service"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// MakeHandler returns an HTTP handler for the /ws endpoint.
//
// The bearer token (Authorization header or Sec-WebSocket-Protocol) is
// resolved to a user exactly once, at upgrade time; that identity is passed
// explicitly into every membership and lifecycle call. Commands:
//
//	joinChat     -> admit into the room (membership-gated, denied silently)
//	leaveChat    -> idempotent removal from the room
//	message:new  -> create via the lifecycle engine, which broadcasts
//	typing:start / typing:stop -> ephemeral typing indicator to the room
//
// There is no server-side typing timeout: a client that disconnects
// mid-typing leaves its indicator stale for others until the next typing
// event or a reload. Accepted tradeoff; the client owns the stop debounce.
func MakeHandler(
	hub *Hub,
	tokens *security.TokenService,
	users domain.UserRepository,
	guard *service.MembershipGuard,
	msgSvc *service.MessageService,
	allowedOrigins []string,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			if authErr, ok := err.(wsAuthError); ok {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sub, err := tokens.Subject(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		user, err := users.GetByUsername(ctx, sub)
		if err != nil || user == nil {
			http.Error(w, "user not found", http.StatusUnauthorized)
			return
		}

		sock, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		conn := newConn(sock, user.Participant())
		defer func() {
			hub.Unregister(conn)
			sock.Close()
		}()

		for {
			var env event.Envelope
			if err := sock.ReadJSON(&env); err != nil {
				break
			}

			switch env.Event {

			case event.JoinChat:
				var cmd event.JoinChatCommand
				if err := json.Unmarshal(env.Data, &cmd); err != nil || cmd.ChatID == 0 {
					continue
				}
				hub.Join(ctx, conn, cmd.ChatID)

			case event.LeaveChat:
				var cmd event.LeaveChatCommand
				if err := json.Unmarshal(env.Data, &cmd); err != nil || cmd.ChatID == 0 {
					continue
				}
				hub.Leave(conn, cmd.ChatID)

			case event.NewMessage:
				var cmd event.NewMessageCommand
				if err := json.Unmarshal(env.Data, &cmd); err != nil || cmd.ChatID == 0 {
					sendError(conn, "message:new requires chat_id")
					continue
				}
				// the engine persists and broadcasts; the sender gets the
				// echo through the room like everyone else
				if _, err := msgSvc.Create(ctx, user.ID, service.MessageCreateInput{
					ChatID:  cmd.ChatID,
					Body:    cmd.Body,
					ReplyTo: cmd.ReplyTo,
				}); err != nil {
					log.Printf("ws: create message: %v", err)
					sendError(conn, "failed to send message")
					continue
				}

			case event.TypingStart, event.TypingStop:
				var cmd event.TypingCommand
				if err := json.Unmarshal(env.Data, &cmd); err != nil || cmd.ChatID == 0 {
					continue
				}
				ok, err := guard.IsMember(ctx, cmd.ChatID, user.ID)
				if err != nil || !ok {
					sendError(conn, "not allowed for this chat")
					continue
				}
				hub.Broadcast(cmd.ChatID, event.TypingEvent{
					ChatID:   cmd.ChatID,
					User:     user.Participant(),
					IsTyping: env.Event == event.TypingStart,
				})

			default:
				log.Printf("ws: unknown event type %q from user %d", env.Event, user.ID)
			}
		}
	}
}

func sendError(c *Conn, msg string) {
	_ = c.sendEvent(event.ErrorEvent{Message: msg})
}
