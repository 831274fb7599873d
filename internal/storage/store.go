// Package storage persists sessions, their dataset entries and chat history,
// and archives backup files to an object store.
package storage

import (
	"errors"
	"fmt"

	"chefia/internal/config"
	"chefia/internal/models"
)

// ErrNotFound is returned when a session or entry does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence layer behind session.Manager.
type Store interface {
	CreateSession(s *models.Session) error
	GetSession(id string) (*models.Session, error)
	UpdateSession(s *models.Session) error

	// ListEntries returns a session's entries in dataset order.
	ListEntries(sessionID string) ([]models.Entry, error)
	// ReplaceEntries swaps the whole dataset of a session.
	ReplaceEntries(sessionID string, entries []models.Entry) error
	AddEntry(e *models.Entry) error
	UpdateEntry(e *models.Entry) error
	DeleteEntry(sessionID string, id uint) error
	ClearEntries(sessionID string) error

	AppendMessage(m *models.ChatMessage) error
	ListMessages(sessionID string) ([]models.ChatMessage, error)

	Close() error
}

// Open returns the Store selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite3", "postgres":
		return NewGormStore(cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}
