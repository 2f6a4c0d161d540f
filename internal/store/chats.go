package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chatd/pkg/types"
)

// CreateChat starts a new empty chat.
func (s *Store) CreateChat(ctx context.Context, characterName, userName string) (types.Chat, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (character_name, user_name, created_at) VALUES (?, ?, ?)`,
		characterName, userName, now.Unix())
	if err != nil {
		return types.Chat{}, fmt.Errorf("create chat: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Chat{}, fmt.Errorf("create chat: %w", err)
	}
	return types.Chat{ID: id, CharacterName: characterName, UserName: userName, CreatedAt: time.Unix(now.Unix(), 0).UTC()}, nil
}

// Chat returns a single chat.
func (s *Store) Chat(ctx context.Context, chatID int64) (types.Chat, error) {
	var c types.Chat
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, character_name, user_name, created_at FROM chats WHERE id = ?`, chatID).
		Scan(&c.ID, &c.CharacterName, &c.UserName, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return c, notFoundError{what: fmt.Sprintf("chat %d", chatID)}
	}
	if err != nil {
		return c, fmt.Errorf("get chat %d: %w", chatID, err)
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	return c, nil
}

// ListChats returns all chats, newest first.
func (s *Store) ListChats(ctx context.Context) ([]types.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, character_name, user_name, created_at FROM chats ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()
	var out []types.Chat
	for rows.Next() {
		var c types.Chat
		var created int64
		if err := rows.Scan(&c.ID, &c.CharacterName, &c.UserName, &created); err != nil {
			return nil, fmt.Errorf("list chats: %w", err)
		}
		c.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// Entries returns the entries of a chat in order.
func (s *Store) Entries(ctx context.Context, chatID int64) ([]types.ChatEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, ord, author, is_user, text FROM entries WHERE chat_id = ? ORDER BY ord`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	var out []types.ChatEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Entry returns a single entry.
func (s *Store) Entry(ctx context.Context, entryID int64) (types.ChatEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, ord, author, is_user, text FROM entries WHERE id = ?`, entryID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, notFoundError{what: fmt.Sprintf("entry %d", entryID)}
	}
	if err != nil {
		return e, fmt.Errorf("get entry %d: %w", entryID, err)
	}
	return e, nil
}

// LastEntry returns the newest entry of a chat.
func (s *Store) LastEntry(ctx context.Context, chatID int64) (types.ChatEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, ord, author, is_user, text FROM entries WHERE chat_id = ? ORDER BY ord DESC LIMIT 1`, chatID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, notFoundError{what: fmt.Sprintf("entries of chat %d", chatID)}
	}
	if err != nil {
		return e, fmt.Errorf("last entry %d: %w", chatID, err)
	}
	return e, nil
}

// AddEntry appends an entry to a chat and returns its id.
func (s *Store) AddEntry(ctx context.Context, chatID int64, author string, isUser bool, text string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("add entry: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM chats WHERE id = ?`, chatID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("add entry: %w", err)
	}
	if exists == 0 {
		return 0, notFoundError{what: fmt.Sprintf("chat %d", chatID)}
	}
	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(ord) + 1, 0) FROM entries WHERE chat_id = ?`, chatID).Scan(&next); err != nil {
		return 0, fmt.Errorf("add entry: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO entries (chat_id, ord, author, is_user, text, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		chatID, next, author, boolInt(isUser), text, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("add entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add entry: %w", err)
	}
	return id, tx.Commit()
}

// UpdateEntryText replaces the text of an entry.
func (s *Store) UpdateEntryText(ctx context.Context, entryID int64, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entries SET text = ?, updated_at = ? WHERE id = ?`, text, time.Now().Unix(), entryID)
	if err != nil {
		return fmt.Errorf("update entry %d: %w", entryID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFoundError{what: fmt.Sprintf("entry %d", entryID)}
	}
	return nil
}

// DeleteEntry removes an entry.
func (s *Store) DeleteEntry(ctx context.Context, entryID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, entryID); err != nil {
		return fmt.Errorf("delete entry %d: %w", entryID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(r scanner) (types.ChatEntry, error) {
	var e types.ChatEntry
	var isUser int
	err := r.Scan(&e.ID, &e.ChatID, &e.Order, &e.Author, &isUser, &e.Text)
	e.IsUser = isUser != 0
	return e, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
