package service

import (
	"context"
	"fmt"

	"chatgo/internal/domain"
)

// MembershipGuard authorizes an identity against a chat's participant set.
// Pure read; it gates both REST message operations and live-channel joins.
type MembershipGuard struct {
	chats domain.ChatRepository
}

func NewMembershipGuard(chats domain.ChatRepository) *MembershipGuard {
	return &MembershipGuard{chats: chats}
}

// IsMember reports whether userID belongs to the chat's participant set.
// A chat that does not exist is simply not a membership.
func (g *MembershipGuard) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	return g.chats.IsParticipant(ctx, chatID, userID)
}

// Require distinguishes a missing chat (ErrNotFound) from a non-member
// (ErrForbidden) for callers that report explicit denials.
func (g *MembershipGuard) Require(ctx context.Context, chatID, userID int64) error {
	chat, err := g.chats.GetByID(ctx, chatID)
	if err != nil {
		return fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return domain.ErrNotFound
	}
	ok, err := g.chats.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return domain.ErrForbidden
	}
	return nil
}
