package archive

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/notepid/guestbook/internal/guestbook"
)

// Repo handles database operations for archived messages.
type Repo struct {
	db *sql.DB
}

// NewRepo creates a new archive repository.
func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Archiver binds the repository to one contract address.
func (r *Repo) Archiver(contract common.Address) guestbook.Archiver {
	return &contractArchiver{repo: r, contract: contract.Hex()}
}

type contractArchiver struct {
	repo     *Repo
	contract string
}

// Archive stores a full message list read at block. The contract's array is
// append-only, so a message's position identifies it.
func (a *contractArchiver) Archive(ctx context.Context, msgs []guestbook.Message, block uint64) error {
	return a.repo.Save(ctx, a.contract, msgs, block)
}

// Save upserts msgs by position for the given contract.
func (r *Repo) Save(ctx context.Context, contract string, msgs []guestbook.Message, block uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (contract, position, sender, body, timestamp_ms, content_key, block_number)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(contract, position) DO UPDATE SET
			sender = excluded.sender,
			body = excluded.body,
			timestamp_ms = excluded.timestamp_ms,
			content_key = excluded.content_key
		WHERE messages.content_key != excluded.content_key
	`)
	if err != nil {
		return fmt.Errorf("prepare archive: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		if _, err := stmt.ExecContext(ctx, contract, i, m.Sender.Hex(), m.Text, m.Timestamp, m.Key(), block); err != nil {
			return fmt.Errorf("archive message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

// ListContracts returns every archived contract with its message count.
func (r *Repo) ListContracts() ([]*Contract, error) {
	rows, err := r.db.Query(`
		SELECT contract, COUNT(*), MAX(block_number)
		FROM messages
		GROUP BY contract
		ORDER BY contract
	`)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var out []*Contract
	for rows.Next() {
		c := &Contract{}
		if err := rows.Scan(&c.Address, &c.TotalMsgs, &c.LastBlock); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListMessages returns a contract's messages most recent first, paginated.
func (r *Repo) ListMessages(contract string, offset, limit int) ([]*Message, error) {
	rows, err := r.db.Query(`
		SELECT contract, position, sender, body, timestamp_ms, content_key, block_number, archived_at
		FROM messages
		WHERE contract = ?
		ORDER BY timestamp_ms DESC, position DESC
		LIMIT ? OFFSET ?
	`, contract, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.Contract, &m.Position, &m.Sender, &m.Body, &m.Timestamp,
			&m.ContentKey, &m.Block, &m.ArchivedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMessage returns one archived message.
func (r *Repo) GetMessage(contract string, position int) (*Message, error) {
	m := &Message{}
	err := r.db.QueryRow(`
		SELECT contract, position, sender, body, timestamp_ms, content_key, block_number, archived_at
		FROM messages
		WHERE contract = ? AND position = ?
	`, contract, position).Scan(&m.Contract, &m.Position, &m.Sender, &m.Body, &m.Timestamp,
		&m.ContentKey, &m.Block, &m.ArchivedAt)
	if err != nil {
		return nil, fmt.Errorf("get message %s/%d: %w", contract, position, err)
	}
	return m, nil
}

// CountMessages returns the number of archived messages for a contract.
func (r *Repo) CountMessages(contract string) int {
	var count int
	r.db.QueryRow("SELECT COUNT(*) FROM messages WHERE contract = ?", contract).Scan(&count)
	return count
}
