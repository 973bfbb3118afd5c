package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatgo/internal/domain"
	"chatgo/internal/event"
)

// Broadcaster fans an event out to a chat's live room. Implemented by the
// ws hub; a no-op implementation is fine for offline tooling.
type Broadcaster interface {
	Broadcast(chatID int64, ev event.Event)
}

// MessageService is the message lifecycle engine: the single writer of
// message state. Both the REST path and the live-channel command path
// funnel into it; after every successful persist it instructs the hub to
// fan the resulting event out.
type MessageService struct {
	messages domain.MessageRepository
	guard    *MembershipGuard
	hub      Broadcaster

	MaxBodyRunes int
}

func NewMessageService(
	messages domain.MessageRepository,
	guard *MembershipGuard,
	hub Broadcaster,
	maxBodyRunes int,
) *MessageService {
	if maxBodyRunes <= 0 {
		maxBodyRunes = 5000
	}
	return &MessageService{
		messages:     messages,
		guard:        guard,
		hub:          hub,
		MaxBodyRunes: maxBodyRunes,
	}
}

type MessageCreateInput struct {
	ChatID      int64
	Body        string
	ReplyTo     *int64
	Attachments []domain.Attachment
}

// Create persists a new message with status "sent" and broadcasts it to the
// chat's room. Requires chat membership and a non-empty body or at least
// one attachment. A reply reference must resolve to a message in the same
// chat; replying to a deleted message is allowed since the row survives.
func (s *MessageService) Create(ctx context.Context, authorID int64, in MessageCreateInput) (*domain.Message, error) {
	body := strings.TrimSpace(in.Body)
	if len([]rune(body)) > s.MaxBodyRunes {
		return nil, fmt.Errorf("%w: message body exceeds %d characters", domain.ErrInvalidInput, s.MaxBodyRunes)
	}

	if err := s.guard.Require(ctx, in.ChatID, authorID); err != nil {
		return nil, err
	}

	if body == "" && len(in.Attachments) == 0 {
		return nil, fmt.Errorf("%w: message body or attachment required", domain.ErrInvalidInput)
	}

	if in.ReplyTo != nil {
		ref, err := s.messages.GetByID(ctx, *in.ReplyTo)
		if err != nil {
			return nil, fmt.Errorf("resolve reply_to: %w", err)
		}
		if ref == nil || ref.ChatID != in.ChatID {
			return nil, fmt.Errorf("%w: reply_to must reference a message in the same chat", domain.ErrInvalidInput)
		}
	}

	now := time.Now().UTC()
	msg := &domain.Message{
		ChatID:      in.ChatID,
		AuthorID:    authorID,
		Body:        body,
		ReplyTo:     in.ReplyTo,
		Status:      domain.StatusSent,
		Attachments: in.Attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	s.hub.Broadcast(msg.ChatID, event.NewMessageEvent{Message: msg})
	return msg, nil
}

// Edit replaces the body of the requester's own message and marks it
// "edited". Editing is repeatable; a deleted message cannot be edited.
func (s *MessageService) Edit(ctx context.Context, requesterID, messageID int64, newBody string) (*domain.Message, error) {
	body := strings.TrimSpace(newBody)
	if body == "" {
		return nil, fmt.Errorf("%w: message body is required", domain.ErrInvalidInput)
	}
	if len([]rune(body)) > s.MaxBodyRunes {
		return nil, fmt.Errorf("%w: message body exceeds %d characters", domain.ErrInvalidInput, s.MaxBodyRunes)
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return nil, domain.ErrNotFound
	}
	if msg.AuthorID != requesterID {
		// ownership, not membership: a chat member who is not the author
		// is still denied
		return nil, domain.ErrForbidden
	}
	if msg.Status == domain.StatusDeleted {
		return nil, fmt.Errorf("%w: message is deleted", domain.ErrInvalidInput)
	}

	msg.Body = body
	msg.Status = domain.StatusEdited
	msg.UpdatedAt = time.Now().UTC()
	if err := s.messages.Update(ctx, msg); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	s.hub.Broadcast(msg.ChatID, event.UpdateMessageEvent{Message: msg})
	return msg, nil
}

// Delete soft-deletes the requester's own message: the body is cleared and
// the status becomes "deleted", but the row keeps its id and chat position
// so reply references stay valid. Deleting an already-deleted message is a
// no-op; there is no transition out of "deleted".
func (s *MessageService) Delete(ctx context.Context, requesterID, messageID int64) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return nil, domain.ErrNotFound
	}
	if msg.AuthorID != requesterID {
		return nil, domain.ErrForbidden
	}
	if msg.Status == domain.StatusDeleted {
		return msg, nil
	}

	msg.Body = ""
	msg.Attachments = nil
	msg.Status = domain.StatusDeleted
	msg.UpdatedAt = time.Now().UTC()
	if err := s.messages.Update(ctx, msg); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	s.hub.Broadcast(msg.ChatID, event.DeleteMessageEvent{Message: msg})
	return msg, nil
}

// List returns the chat's full message history ordered by creation time
// ascending. Requires chat membership.
func (s *MessageService) List(ctx context.Context, requesterID, chatID int64) ([]*domain.Message, error) {
	if err := s.guard.Require(ctx, chatID, requesterID); err != nil {
		return nil, err
	}
	return s.messages.ListForChat(ctx, chatID)
}
