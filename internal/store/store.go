// Package store implements the Postgres-backed notification sink and
// message repository: three tables (message, message_text,
// message_file) joined 1:1 on message_id, queried by the admin HTTP
// surface in internal/httpapi.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	logging "gopkg.in/op/go-logging.v1"

	"github.com/parcelnet/parcel/internal/exec"
)

// schema is applied idempotently at startup rather than through a
// separate migration tool.
const schema = `
CREATE TABLE IF NOT EXISTS message (
	message_id     BIGSERIAL PRIMARY KEY,
	public_id      UUID NOT NULL UNIQUE,
	timestamp      TIMESTAMP NOT NULL,
	user_nickname  VARCHAR NOT NULL,
	user_ip        VARCHAR NOT NULL
);

CREATE TABLE IF NOT EXISTS message_text (
	message_id BIGINT PRIMARY KEY REFERENCES message(message_id) ON DELETE CASCADE,
	text       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS message_file (
	message_id BIGINT PRIMARY KEY REFERENCES message(message_id) ON DELETE CASCADE,
	filename   VARCHAR NOT NULL,
	filepath   VARCHAR NOT NULL,
	mime       VARCHAR,
	length     BIGINT NOT NULL,
	hash       VARCHAR NOT NULL
);
`

// Message is one row of the message table. The serial message_id stays
// internal; rows are addressed externally by PublicID only.
type Message struct {
	PublicID  uuid.UUID
	Timestamp time.Time
	Nickname  string
	IP        string
}

// MessageText is the text child row of a message.
type MessageText struct {
	Text string
}

// MessageFile is the file child row of a message. Filepath is relative
// to the server's transfer root.
type MessageFile struct {
	Filename string
	Filepath string
	Mime     string
	Length   int64
	Hash     string
}

// FullMessage is the joined view returned by GetMessages and
// GetMessageByPublicID: Text and File are mutually exclusive.
type FullMessage struct {
	Message
	Text *MessageText
	File *MessageFile
}

// ErrNotFound is returned by GetMessageByPublicID when no row matches.
var ErrNotFound = errors.New("store: message not found")

// Repository is a Postgres-backed implementation of the notification
// sink (exec.Sink) and the admin query surface.
type Repository struct {
	pool *pgxpool.Pool
	log  *logging.Logger
}

// Open connects to databaseURL and ensures the schema exists.
func Open(ctx context.Context, databaseURL string, log *logging.Logger) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Repository{pool: pool, log: log}, nil
}

// Close releases the connection pool.
func (r *Repository) Close() { r.pool.Close() }

// Notify implements exec.Sink: it inserts one message row plus its text
// or file child row in a single transaction.
func (r *Repository) Notify(n exec.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.insert(ctx, n); err != nil {
		// Best-effort: a persistence failure must not affect session
		// liveness.
		if r.log != nil {
			r.log.Errorf("failed to persist notification: %v", err)
		}
	}
}

func (r *Repository) insert(ctx context.Context, n exec.Notification) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	publicID := uuid.New()

	var messageID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO message (public_id, timestamp, user_nickname, user_ip)
		 VALUES ($1, $2, $3, $4) RETURNING message_id`,
		publicID, n.Timestamp, n.Nickname, n.IP,
	).Scan(&messageID)
	if err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}

	switch n.Payload.Variant {
	case "Text":
		_, err = tx.Exec(ctx,
			`INSERT INTO message_text (message_id, text) VALUES ($1, $2)`,
			messageID, n.Payload.Text)
	case "File":
		f := n.Payload.File
		_, err = tx.Exec(ctx,
			`INSERT INTO message_file (message_id, filename, filepath, mime, length, hash)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			messageID, f.Filename, f.Filepath, nullableString(f.Mime), f.Length, f.Hash)
	}
	if err != nil {
		return fmt.Errorf("store: insert payload: %w", err)
	}

	return tx.Commit(ctx)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

const fullMessageQuery = `
SELECT m.public_id, m.timestamp, m.user_nickname, m.user_ip,
       t.text,
       f.filename, f.filepath, f.mime, f.length, f.hash
FROM message m
LEFT JOIN message_text t ON t.message_id = m.message_id
LEFT JOIN message_file f ON f.message_id = m.message_id
`

// GetMessages returns messages ordered newest first, optionally filtered
// by nickname, paginated by offset/limit.
func (r *Repository) GetMessages(ctx context.Context, nickname string, offset, limit int) ([]FullMessage, error) {
	query := fullMessageQuery + " ORDER BY m.timestamp DESC OFFSET $1 LIMIT $2"
	args := []interface{}{offset, limit}

	if nickname != "" {
		query = fullMessageQuery + " WHERE m.user_nickname = $3 ORDER BY m.timestamp DESC OFFSET $1 LIMIT $2"
		args = append(args, nickname)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get messages: %w", err)
	}
	defer rows.Close()

	return scanFullMessages(rows)
}

// GetMessageByPublicID returns a single message by its public UUID. It
// returns ErrNotFound if no row matches.
func (r *Repository) GetMessageByPublicID(ctx context.Context, id uuid.UUID) (FullMessage, error) {
	rows, err := r.pool.Query(ctx, fullMessageQuery+" WHERE m.public_id = $1", id)
	if err != nil {
		return FullMessage{}, fmt.Errorf("store: get message: %w", err)
	}
	defer rows.Close()

	messages, err := scanFullMessages(rows)
	if err != nil {
		return FullMessage{}, err
	}
	if len(messages) == 0 {
		return FullMessage{}, ErrNotFound
	}
	return messages[0], nil
}

// DeleteByIDs deletes the messages with the given public IDs. Child
// rows cascade via the foreign key.
func (r *Repository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM message WHERE public_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("store: delete by ids: %w", err)
	}
	return nil
}

// DeleteByUsername deletes every message from nickname.
func (r *Repository) DeleteByUsername(ctx context.Context, nickname string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM message WHERE user_nickname = $1`, nickname)
	if err != nil {
		return fmt.Errorf("store: delete by username: %w", err)
	}
	return nil
}

func scanFullMessages(rows pgx.Rows) ([]FullMessage, error) {
	var out []FullMessage

	for rows.Next() {
		var (
			m        FullMessage
			text     *string
			filename *string
			filepath *string
			mime     *string
			length   *int64
			hash     *string
		)

		if err := rows.Scan(&m.PublicID, &m.Timestamp, &m.Nickname, &m.IP,
			&text, &filename, &filepath, &mime, &length, &hash); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}

		if text != nil {
			m.Text = &MessageText{Text: *text}
		}
		if filename != nil {
			m.File = &MessageFile{
				Filename: *filename,
				Filepath: *filepath,
				Length:   *length,
				Hash:     *hash,
			}
			if mime != nil {
				m.File.Mime = *mime
			}
		}

		out = append(out, m)
	}

	return out, rows.Err()
}
