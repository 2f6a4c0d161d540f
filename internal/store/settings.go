package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Setting keys.
const (
	KeyAutoLoadLocal       = "auto_load_local"
	KeySaveLocalKV         = "save_local_kv"
	KeyPrintContext        = "print_context"
	KeyBypassContextLength = "bypass_context_length"
	KeyLocalSessionLoaded  = "local_session_loaded"
	KeyLocalModel          = "local_model"
	KeyLocalPreset         = "local_preset"
	KeyInstruct            = "instruct"
)

// volatileKeys are cleared on Open: they describe this process only.
var volatileKeys = []string{KeyLocalSessionLoaded}

// String returns the raw value of key. Missing keys report IsNotFound.
func (s *Store) String(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFoundError{what: "setting " + key}
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, nil
}

// SetString stores the raw value of key.
func (s *Store) SetString(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// Bool returns the boolean value of key; missing keys are false.
func (s *Store) Bool(ctx context.Context, key string) (bool, error) {
	v, err := s.String(ctx, key)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("setting %s: %w", key, err)
	}
	return b, nil
}

// SetBool stores a boolean value.
func (s *Store) SetBool(ctx context.Context, key string, v bool) error {
	return s.SetString(ctx, key, strconv.FormatBool(v))
}

// JSON decodes the value of key into dst. Missing keys report IsNotFound;
// undecodable values are returned as a wrapped decode error.
func (s *Store) JSON(ctx context.Context, key string, dst any) error {
	v, err := s.String(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		return fmt.Errorf("decode setting %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	return s.SetString(ctx, key, string(b))
}
