package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"chatgo/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	attachments, err := marshalAttachments(m.Attachments)
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO messages (chat_id, author_id, body, reply_to, status, attachments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		m.ChatID,
		m.AuthorID,
		m.Body,
		m.ReplyTo,
		string(m.Status),
		attachments,
		m.CreatedAt,
		m.UpdatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, chat_id, author_id, body, reply_to, status, attachments, created_at, updated_at
		FROM messages
		WHERE id = $1
	`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) ListForChat(ctx context.Context, chatID int64) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, author_id, body, reply_to, status, attachments, created_at, updated_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MessageRepo) Update(ctx context.Context, m *domain.Message) error {
	attachments, err := marshalAttachments(m.Attachments)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE messages
		SET body = $1, status = $2, attachments = $3, updated_at = $4
		WHERE id = $5
	`, m.Body, string(m.Status), attachments, m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

func (r *MessageRepo) DeleteForChat(ctx context.Context, chatID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	m := &domain.Message{}
	var (
		replyTo     sql.NullInt64
		status      string
		attachments sql.NullString
	)
	if err := row.Scan(
		&m.ID,
		&m.ChatID,
		&m.AuthorID,
		&m.Body,
		&replyTo,
		&status,
		&attachments,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if replyTo.Valid {
		m.ReplyTo = &replyTo.Int64
	}
	m.Status = domain.MessageStatus(status)
	if attachments.Valid && attachments.String != "" {
		if err := json.Unmarshal([]byte(attachments.String), &m.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments: %w", err)
		}
	}
	return m, nil
}

func marshalAttachments(atts []domain.Attachment) (any, error) {
	if len(atts) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(atts)
	if err != nil {
		return nil, fmt.Errorf("encode attachments: %w", err)
	}
	return string(b), nil
}
