package event

import (
	"encoding/json"

	"chatgo/internal/domain"
)

// Wire names for server-pushed events and client commands. The message
// lifecycle names are shared by both directions: a client may create a
// message by sending "message:new" over the live channel, and every room
// member (the originator included) receives the resulting "message:new"
// broadcast.
const (
	NewMessage    = "message:new"
	UpdateMessage = "message:update"
	DeleteMessage = "message:delete"
	Typing        = "typing"
	Error         = "error"

	JoinChat    = "joinChat"
	LeaveChat   = "leaveChat"
	TypingStart = "typing:start"
	TypingStop  = "typing:stop"
)

// Envelope is the wire frame in both directions: {"event": name, "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is the closed set of payloads fanned out to room subscribers.
// The unexported method keeps the union closed to this package.
type Event interface {
	Name() string
	payload() any
}

// NewMessageEvent announces a freshly created message.
type NewMessageEvent struct {
	Message *domain.Message
}

func (e NewMessageEvent) Name() string { return NewMessage }
func (e NewMessageEvent) payload() any { return e.Message }

// UpdateMessageEvent announces an edited message.
type UpdateMessageEvent struct {
	Message *domain.Message
}

func (e UpdateMessageEvent) Name() string { return UpdateMessage }
func (e UpdateMessageEvent) payload() any { return e.Message }

// DeleteMessageEvent announces a soft-deleted message. The payload is the
// cleared message, not a bare id: subscribers replace it in place.
type DeleteMessageEvent struct {
	Message *domain.Message
}

func (e DeleteMessageEvent) Name() string { return DeleteMessage }
func (e DeleteMessageEvent) payload() any { return e.Message }

// TypingEvent is the ephemeral typing indicator. Never persisted.
type TypingEvent struct {
	ChatID   int64              `json:"chat_id"`
	User     domain.Participant `json:"user"`
	IsTyping bool               `json:"is_typing"`
}

func (e TypingEvent) Name() string { return Typing }
func (e TypingEvent) payload() any { return e }

// ErrorEvent reports a failed command back to the sender only.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (e ErrorEvent) Name() string { return Error }
func (e ErrorEvent) payload() any { return e }

// Encode wraps ev into a wire frame.
func Encode(ev Event) (Envelope, error) {
	raw, err := json.Marshal(ev.payload())
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: ev.Name(), Data: raw}, nil
}

// Client commands carried inside envelopes.

type JoinChatCommand struct {
	ChatID int64 `json:"chat_id"`
}

type LeaveChatCommand struct {
	ChatID int64 `json:"chat_id"`
}

type NewMessageCommand struct {
	ChatID  int64  `json:"chat_id"`
	Body    string `json:"body"`
	ReplyTo *int64 `json:"reply_to,omitempty"`
}

type TypingCommand struct {
	ChatID int64 `json:"chat_id"`
}

// EncodeCommand wraps a client command into a wire frame.
func EncodeCommand(name string, cmd any) (Envelope, error) {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: name, Data: raw}, nil
}
