package storage

import (
	"fmt"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"              // SQLite driver

	"chefia/internal/models"
)

// GormStore keeps sessions in a SQL database through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the database and migrates the schema.
func NewGormStore(driver, dsn string) (*GormStore, error) {
	db, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		// Every connection to ":memory:" is its own database.
		db.DB().SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&models.Session{}, &models.Entry{}, &models.ChatMessage{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateSession inserts a new session
func (s *GormStore) CreateSession(sess *models.Session) error {
	return s.db.Create(sess).Error
}

// GetSession loads a session by id
func (s *GormStore) GetSession(id string) (*models.Session, error) {
	var sess models.Session
	if err := s.db.Where("id = ?", id).First(&sess).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// UpdateSession saves every field of a session
func (s *GormStore) UpdateSession(sess *models.Session) error {
	res := s.db.Model(&models.Session{}).Where("id = ?", sess.ID).Updates(map[string]interface{}{
		"user_name":      sess.UserName,
		"provider":       sess.Provider,
		"model":          sess.Model,
		"last_import_id": sess.LastImportID,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListEntries(sessionID string) ([]models.Entry, error) {
	entries := []models.Entry{}
	err := s.db.Where("session_id = ?", sessionID).Order("position asc, id asc").Find(&entries).Error
	return entries, err
}

func (s *GormStore) ReplaceEntries(sessionID string, entries []models.Entry) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.Where("session_id = ?", sessionID).Delete(&models.Entry{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	for i := range entries {
		e := entries[i]
		e.ID = 0
		e.SessionID = sessionID
		e.Position = i
		if err := tx.Create(&e).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert entry %q: %w", e.ProductName, err)
		}
	}
	return tx.Commit().Error
}

func (s *GormStore) AddEntry(e *models.Entry) error {
	var last models.Entry
	err := s.db.Where("session_id = ?", e.SessionID).Order("position desc").First(&last).Error
	switch {
	case gorm.IsRecordNotFoundError(err):
		e.Position = 0
	case err != nil:
		return err
	default:
		e.Position = last.Position + 1
	}
	e.ID = 0
	return s.db.Create(e).Error
}

func (s *GormStore) UpdateEntry(e *models.Entry) error {
	res := s.db.Model(&models.Entry{}).
		Where("id = ? AND session_id = ?", e.ID, e.SessionID).
		Updates(map[string]interface{}{
			"product_name":    e.ProductName,
			"production_cost": e.ProductionCost,
			"sale_price":      e.SalePrice,
			"popularity":      e.Popularity,
			"total_revenue":   e.TotalRevenue,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteEntry(sessionID string, id uint) error {
	res := s.db.Where("id = ? AND session_id = ?", id, sessionID).Delete(&models.Entry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ClearEntries(sessionID string) error {
	return s.db.Where("session_id = ?", sessionID).Delete(&models.Entry{}).Error
}

func (s *GormStore) AppendMessage(m *models.ChatMessage) error {
	return s.db.Create(m).Error
}

func (s *GormStore) ListMessages(sessionID string) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	err := s.db.Where("session_id = ?", sessionID).Order("id asc").Find(&msgs).Error
	return msgs, err
}

// Close closes the database connection
func (s *GormStore) Close() error {
	return s.db.Close()
}
