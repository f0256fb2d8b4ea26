package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"AirChat/module/chat/model"
	"AirChat/tools/errs"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS chat_channels (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS chat_messages (
	seq         BIGSERIAL,
	channel_id  TEXT NOT NULL REFERENCES chat_channels(id) ON DELETE CASCADE,
	id          TEXT NOT NULL,
	text        TEXT NOT NULL,
	author_id   TEXT NOT NULL,
	author_name TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (channel_id, id)
);
CREATE INDEX IF NOT EXISTS chat_messages_seq ON chat_messages (channel_id, seq);
`

// foreign_key_violation
const pgFKViolation = "23503"

// Postgres keeps the store in two tables; see pgSchema.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, pgSchema)
	return errs.WrapMsg(err, "postgres migrate")
}

func (s *Postgres) EnsureChannel(ctx context.Context, ch model.Channel) error {
	var err error
	if ch.Name == "" {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO chat_channels (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, ch.ID)
	} else {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO chat_channels (id, name) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, ch.ID, ch.Name)
	}
	return errs.WrapMsg(err, "postgres ensure channel", "channel", ch.ID)
}

func (s *Postgres) Load(ctx context.Context, channelID model.ChannelID) (History, error) {
	h := History{Channel: model.Channel{ID: channelID}}
	err := s.pool.QueryRow(ctx, `SELECT name FROM chat_channels WHERE id = $1`, channelID).
		Scan(&h.Channel.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return History{}, ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	if err != nil {
		return History{}, errs.WrapMsg(err, "postgres load channel", "channel", channelID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, text, author_id, author_name, created_at
		   FROM chat_messages WHERE channel_id = $1 ORDER BY seq`, channelID)
	if err != nil {
		return History{}, errs.WrapMsg(err, "postgres load messages", "channel", channelID)
	}
	defer rows.Close()
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.Text, &m.Author.ID, &m.Author.Name, &m.CreatedAt); err != nil {
			return History{}, errs.Wrap(err)
		}
		h.Messages = append(h.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return History{}, errs.Wrap(err)
	}
	return h, nil
}

func (s *Postgres) Append(ctx context.Context, channelID model.ChannelID, msg model.Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_messages (channel_id, id, text, author_id, author_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (channel_id, id) DO NOTHING`,
		channelID, msg.ID, msg.Text, msg.Author.ID, msg.Author.Name, msg.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgFKViolation {
		return ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	return errs.WrapMsg(err, "postgres append", "channel", channelID, "message", msg.ID)
}

func (s *Postgres) Remove(ctx context.Context, channelID model.ChannelID, msgID model.MessageID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM chat_messages WHERE channel_id = $1 AND id = $2`, channelID, msgID)
	return errs.WrapMsg(err, "postgres remove", "channel", channelID, "message", msgID)
}

func (s *Postgres) Rename(ctx context.Context, channelID model.ChannelID, name string) (model.Channel, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE chat_channels SET name = $2 WHERE id = $1`, channelID, name)
	if err != nil {
		return model.Channel{}, errs.WrapMsg(err, "postgres rename", "channel", channelID)
	}
	if tag.RowsAffected() == 0 {
		return model.Channel{}, ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	return model.Channel{ID: channelID, Name: name}, nil
}
