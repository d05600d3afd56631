package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// KV is a string key/value view over the store, isolated by scope. A scope is
// one client tab/process; two scopes never see each other's keys.
type KV struct {
	s     *Store
	scope string
}

func (s *Store) KV(scope string) *KV {
	return &KV{s: s, scope: scope}
}

func (kv *KV) Get(key string) (string, bool, error) {
	var value string
	err := kv.s.db.QueryRow(`SELECT value FROM kv WHERE scope = ? AND key = ?`, kv.scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return value, true, nil
}

func (kv *KV) Set(key, value string) error {
	_, err := kv.s.db.Exec(`INSERT INTO kv (scope, key, value) VALUES (?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		kv.scope, key, value)
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (kv *KV) Delete(key string) error {
	if _, err := kv.s.db.Exec(`DELETE FROM kv WHERE scope = ? AND key = ?`, kv.scope, key); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// Take reads and deletes key in one transaction.
func (kv *KV) Take(key string) (string, bool, error) {
	tx, err := kv.s.db.Begin()
	if err != nil {
		return "", false, fmt.Errorf("kv take %s: %w", key, err)
	}
	defer tx.Rollback()

	var value string
	err = tx.QueryRow(`SELECT value FROM kv WHERE scope = ? AND key = ?`, kv.scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv take %s: %w", key, err)
	}
	if _, err := tx.Exec(`DELETE FROM kv WHERE scope = ? AND key = ?`, kv.scope, key); err != nil {
		return "", false, fmt.Errorf("kv take %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("kv take %s: %w", key, err)
	}
	return value, true, nil
}

// Clear removes every key in the scope.
func (kv *KV) Clear() error {
	if _, err := kv.s.db.Exec(`DELETE FROM kv WHERE scope = ?`, kv.scope); err != nil {
		return fmt.Errorf("kv clear: %w", err)
	}
	return nil
}
