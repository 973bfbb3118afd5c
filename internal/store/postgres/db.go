package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the chatgo schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id               BIGSERIAL PRIMARY KEY,
			username         VARCHAR(50)  UNIQUE NOT NULL,
			name             VARCHAR(100) NOT NULL,
			share_id         VARCHAR(64)  UNIQUE NOT NULL,
			hashed_password  VARCHAR(255) NOT NULL,
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS chats (
			id          BIGSERIAL   PRIMARY KEY,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS chat_participants (
			chat_id    BIGINT      NOT NULL REFERENCES chats(id),
			user_id    BIGINT      NOT NULL REFERENCES users(id),
			joined_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (chat_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id           BIGSERIAL   PRIMARY KEY,
			chat_id      BIGINT      NOT NULL REFERENCES chats(id),
			author_id    BIGINT      NOT NULL REFERENCES users(id),
			body         TEXT        NOT NULL DEFAULT '',
			reply_to     BIGINT      DEFAULT NULL,
			status       TEXT        NOT NULL DEFAULT 'sent',
			attachments  JSONB       DEFAULT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_share_id ON users(share_id);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_participants_user ON chat_participants(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages(chat_id, created_at ASC);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
