package storage

import (
	"sync"
	"time"

	"chefia/internal/models"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]models.Session
	entries   map[string][]models.Entry
	messages  map[string][]models.ChatMessage
	nextEntry uint
	nextMsg   uint
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.Session),
		entries:  make(map[string][]models.Entry),
		messages: make(map[string][]models.ChatMessage),
	}
}

func (m *MemoryStore) CreateSession(s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) GetSession(id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) UpdateSession(s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	s.CreatedAt = cur.CreatedAt
	s.UpdatedAt = time.Now()
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) ListEntries(sessionID string) ([]models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Entry, len(m.entries[sessionID]))
	copy(out, m.entries[sessionID])
	return out, nil
}

func (m *MemoryStore) ReplaceEntries(sessionID string, entries []models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	list := make([]models.Entry, len(entries))
	for i, e := range entries {
		m.nextEntry++
		e.ID = m.nextEntry
		e.SessionID = sessionID
		e.Position = i
		e.CreatedAt, e.UpdatedAt = now, now
		list[i] = e
	}
	m.entries[sessionID] = list
	return nil
}

func (m *MemoryStore) AddEntry(e *models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[e.SessionID]
	m.nextEntry++
	e.ID = m.nextEntry
	e.Position = 0
	if n := len(list); n > 0 {
		e.Position = list[n-1].Position + 1
	}
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	m.entries[e.SessionID] = append(list, *e)
	return nil
}

func (m *MemoryStore) UpdateEntry(e *models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[e.SessionID]
	for i := range list {
		if list[i].ID != e.ID {
			continue
		}
		list[i].ProductName = e.ProductName
		list[i].ProductionCost = e.ProductionCost
		list[i].SalePrice = e.SalePrice
		list[i].Popularity = e.Popularity
		list[i].TotalRevenue = e.TotalRevenue
		list[i].UpdatedAt = time.Now()
		return nil
	}
	return ErrNotFound
}

func (m *MemoryStore) DeleteEntry(sessionID string, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[sessionID]
	for i := range list {
		if list[i].ID == id {
			m.entries[sessionID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ClearEntries(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sessionID)
	return nil
}

func (m *MemoryStore) AppendMessage(msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMsg++
	msg.ID = m.nextMsg
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], *msg)
	return nil
}

func (m *MemoryStore) ListMessages(sessionID string) ([]models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ChatMessage, len(m.messages[sessionID]))
	copy(out, m.messages[sessionID])
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
