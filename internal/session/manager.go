// Package session owns each user's dataset, provider choice and chat history.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"chefia/internal/backup"
	"chefia/internal/ingest"
	"chefia/internal/menu"
	"chefia/internal/models"
	"chefia/internal/storage"
)

var (
	ErrNotFound     = storage.ErrNotFound
	ErrInvalidEntry = errors.New("invalid entry")
)

// ModelValidator checks a provider/model pair.
type ModelValidator interface {
	Validate(provider, model string) error
}

// Manager creates sessions and applies every mutation of their state.
type Manager struct {
	store     storage.Store
	validator ModelValidator
	provider  string
	model     string
	logger    *slog.Logger
}

// NewManager creates a session manager. New sessions start on the given
// default provider and model.
func NewManager(store storage.Store, validator ModelValidator, provider, model string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		validator: validator,
		provider:  provider,
		model:     model,
		logger:    logger,
	}
}

// Start opens a new session for userName
func (m *Manager) Start(userName string) (*models.Session, error) {
	sess := &models.Session{
		ID:       uuid.NewString(),
		UserName: strings.TrimSpace(userName),
		Provider: m.provider,
		Model:    m.model,
	}
	if err := m.store.CreateSession(sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	m.logger.Info("session started", "session_id", sess.ID)
	return sess, nil
}

// Get loads a session
func (m *Manager) Get(id string) (*models.Session, error) {
	return m.store.GetSession(id)
}

// Rename changes the name the report addresses
func (m *Manager) Rename(id, userName string) (*models.Session, error) {
	sess, err := m.store.GetSession(id)
	if err != nil {
		return nil, err
	}
	sess.UserName = strings.TrimSpace(userName)
	if err := m.store.UpdateSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SetProvider selects the LLM the session's report and chat use
func (m *Manager) SetProvider(id, provider, model string) (*models.Session, error) {
	if err := m.validator.Validate(provider, model); err != nil {
		return nil, err
	}
	sess, err := m.store.GetSession(id)
	if err != nil {
		return nil, err
	}
	sess.Provider, sess.Model = provider, model
	if err := m.store.UpdateSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Analysis classifies the session's current dataset
func (m *Manager) Analysis(id string) (*menu.Analysis, error) {
	entries, err := m.Entries(id)
	if err != nil {
		return nil, err
	}
	return menu.FromEntries(entries), nil
}

// ReplaceDataset stores the items of a merged analysis as the session dataset
func (m *Manager) ReplaceDataset(id string, a *menu.Analysis) error {
	if _, err := m.store.GetSession(id); err != nil {
		return err
	}
	if err := m.store.ReplaceEntries(id, a.Entries()); err != nil {
		return fmt.Errorf("failed to store dataset: %w", err)
	}
	return nil
}

// ImportResult describes the outcome of a backup import.
type ImportResult struct {
	ImportID string `json:"import_id"`
	Skipped  bool   `json:"skipped"`
	Entries  int    `json:"entries"`
}

// ImportBackup replaces the dataset with a backup CSV. The import is skipped
// when the same file (name and size) was the last one imported.
func (m *Manager) ImportBackup(id, filename string, size int64, r io.Reader) (*ImportResult, error) {
	sess, err := m.store.GetSession(id)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{ImportID: backup.ImportID(filename, size)}
	if sess.LastImportID == res.ImportID {
		res.Skipped = true
		return res, nil
	}

	entries, err := backup.ReadCSV(r)
	if err != nil {
		return nil, err
	}
	if err := m.store.ReplaceEntries(id, entries); err != nil {
		return nil, fmt.Errorf("failed to store imported dataset: %w", err)
	}

	sess.LastImportID = res.ImportID
	if err := m.store.UpdateSession(sess); err != nil {
		return nil, err
	}
	res.Entries = len(entries)
	m.logger.Info("backup imported", "session_id", id, "import_id", res.ImportID, "entries", res.Entries)
	return res, nil
}

// Entries lists the session dataset
func (m *Manager) Entries(id string) ([]models.Entry, error) {
	if _, err := m.store.GetSession(id); err != nil {
		return nil, err
	}
	return m.store.ListEntries(id)
}

func prepareEntry(e *models.Entry) error {
	e.ProductName = ingest.NormalizeProductName(e.ProductName)
	// Hand-edited rows have no export revenue; it is derived on read.
	e.TotalRevenue = 0
	if err := models.ValidateEntry(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}

// AddEntry validates e and appends it to the dataset
func (m *Manager) AddEntry(id string, e models.Entry) (*models.Entry, error) {
	if _, err := m.store.GetSession(id); err != nil {
		return nil, err
	}
	if err := prepareEntry(&e); err != nil {
		return nil, err
	}
	e.SessionID = id
	if err := m.store.AddEntry(&e); err != nil {
		return nil, fmt.Errorf("failed to add entry: %w", err)
	}
	return &e, nil
}

// UpdateEntry validates e and overwrites the entry with e.ID
func (m *Manager) UpdateEntry(id string, e models.Entry) (*models.Entry, error) {
	if _, err := m.store.GetSession(id); err != nil {
		return nil, err
	}
	if err := prepareEntry(&e); err != nil {
		return nil, err
	}
	e.SessionID = id
	if err := m.store.UpdateEntry(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteEntry removes one entry
func (m *Manager) DeleteEntry(id string, entryID uint) error {
	if _, err := m.store.GetSession(id); err != nil {
		return err
	}
	return m.store.DeleteEntry(id, entryID)
}

// ClearEntries empties the dataset
func (m *Manager) ClearEntries(id string) error {
	if _, err := m.store.GetSession(id); err != nil {
		return err
	}
	return m.store.ClearEntries(id)
}

// History returns the chat messages of a session, oldest first
func (m *Manager) History(id string) ([]models.ChatMessage, error) {
	if _, err := m.store.GetSession(id); err != nil {
		return nil, err
	}
	return m.store.ListMessages(id)
}

// RecordExchange appends a question and its answer to the chat history
func (m *Manager) RecordExchange(id, question, answer string) error {
	for _, msg := range []*models.ChatMessage{
		{SessionID: id, Role: models.ChatRoleUser, Content: question},
		{SessionID: id, Role: models.ChatRoleAssistant, Content: answer},
	} {
		if err := m.store.AppendMessage(msg); err != nil {
			return fmt.Errorf("failed to save chat message: %w", err)
		}
	}
	return nil
}
