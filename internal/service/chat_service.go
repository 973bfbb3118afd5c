package service

import (
	"context"
	"fmt"
	"time"

	"chatgo/internal/domain"
)

// ChatService manages chats and their participant sets. Chat deletion
// cascades to messages (messages first, then the chat row; a crash in
// between leaves unreachable orphans, which is acceptable and recoverable).
type ChatService struct {
	chats    domain.ChatRepository
	messages domain.MessageRepository
	users    domain.UserRepository
}

func NewChatService(
	chats domain.ChatRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
) *ChatService {
	return &ChatService{
		chats:    chats,
		messages: messages,
		users:    users,
	}
}

type ChatCreateInput struct {
	// InviteCode targets a single user's share code for a 1:1 chat.
	InviteCode string
	// ShareIDs lists share codes for a group chat.
	ShareIDs []string
}

// CreateOrFetch resolves the requested participant set, always including
// the creator, and returns the existing chat with that exact set if one
// exists; otherwise it creates a new chat.
func (s *ChatService) CreateOrFetch(ctx context.Context, creatorID int64, in ChatCreateInput) (*domain.Chat, error) {
	ids := []int64{creatorID}
	seen := map[int64]struct{}{creatorID: {}}

	resolve := func(code string) error {
		u, err := s.users.GetByShareID(ctx, code)
		if err != nil {
			return fmt.Errorf("resolve share code: %w", err)
		}
		if u == nil {
			return fmt.Errorf("%w: no user for share code %q", domain.ErrNotFound, code)
		}
		if _, ok := seen[u.ID]; !ok {
			seen[u.ID] = struct{}{}
			ids = append(ids, u.ID)
		}
		return nil
	}

	if in.InviteCode != "" {
		if err := resolve(in.InviteCode); err != nil {
			return nil, err
		}
	} else {
		for _, code := range in.ShareIDs {
			if err := resolve(code); err != nil {
				return nil, err
			}
		}
	}

	existing, err := s.chats.FindByParticipants(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find existing chat: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	chat := &domain.Chat{CreatedAt: time.Now().UTC()}
	if err := s.chats.Create(ctx, chat, ids); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return s.chats.GetByID(ctx, chat.ID)
}

func (s *ChatService) ListForUser(ctx context.Context, userID int64) ([]*domain.Chat, error) {
	return s.chats.ListForUser(ctx, userID)
}

// Get returns the chat if the caller is a participant.
func (s *ChatService) Get(ctx context.Context, callerID, chatID int64) (*domain.Chat, error) {
	chat, err := s.requireMember(ctx, callerID, chatID)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// AddParticipant invites a user by share code. Only existing members can
// invite; adding an existing member is a no-op.
func (s *ChatService) AddParticipant(ctx context.Context, callerID, chatID int64, inviteCode string) (*domain.Chat, error) {
	if _, err := s.requireMember(ctx, callerID, chatID); err != nil {
		return nil, err
	}

	other, err := s.users.GetByShareID(ctx, inviteCode)
	if err != nil {
		return nil, fmt.Errorf("resolve share code: %w", err)
	}
	if other == nil {
		return nil, fmt.Errorf("%w: no user for share code %q", domain.ErrNotFound, inviteCode)
	}

	if err := s.chats.AddParticipant(ctx, chatID, other.ID); err != nil {
		return nil, fmt.Errorf("add participant: %w", err)
	}
	return s.chats.GetByID(ctx, chatID)
}

// RemoveParticipant removes a user by share code; self-removal is allowed.
// A removal that empties the chat garbage-collects it (cascading to its
// messages) and returns nil.
func (s *ChatService) RemoveParticipant(ctx context.Context, callerID, chatID int64, shareID string) (*domain.Chat, error) {
	if _, err := s.requireMember(ctx, callerID, chatID); err != nil {
		return nil, err
	}

	target, err := s.users.GetByShareID(ctx, shareID)
	if err != nil {
		return nil, fmt.Errorf("resolve share code: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: no user for share code %q", domain.ErrNotFound, shareID)
	}

	if err := s.chats.RemoveParticipant(ctx, chatID, target.ID); err != nil {
		return nil, fmt.Errorf("remove participant: %w", err)
	}

	remaining, err := s.chats.ParticipantIDs(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	if len(remaining) == 0 {
		if err := s.cascadeDelete(ctx, chatID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s.chats.GetByID(ctx, chatID)
}

// Delete removes a chat and all of its messages. Any participant may
// delete the chat.
func (s *ChatService) Delete(ctx context.Context, callerID, chatID int64) error {
	if _, err := s.requireMember(ctx, callerID, chatID); err != nil {
		return err
	}
	return s.cascadeDelete(ctx, chatID)
}

func (s *ChatService) cascadeDelete(ctx context.Context, chatID int64) error {
	if err := s.messages.DeleteForChat(ctx, chatID); err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}
	if err := s.chats.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

func (s *ChatService) requireMember(ctx context.Context, callerID, chatID int64) (*domain.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return nil, domain.ErrNotFound
	}
	ok, err := s.chats.IsParticipant(ctx, chatID, callerID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return nil, domain.ErrForbidden
	}
	return chat, nil
}
