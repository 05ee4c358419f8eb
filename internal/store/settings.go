package store

import (
	"database/sql"
	"fmt"
	"strconv"
)

// Tunable keys seeded by the initial migration.
var economyKeys = []string{
	"ranking_coin_weight",
	"ranking_value_weight",
	"mystery_ball_price",
}

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting %q not found", key)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

// GetInt returns the setting parsed as an integer, or fallback when the
// setting is missing or malformed.
func (s *SettingsStore) GetInt(key string, fallback int) int {
	value, err := s.Get(key)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// GetEconomySettings returns the tunable economy keys as a map.
func (s *SettingsStore) GetEconomySettings() (map[string]string, error) {
	settings := make(map[string]string)
	for _, key := range economyKeys {
		value, err := s.Get(key)
		if err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, nil
}
