package models

import (
	"fmt"
	"time"
)

// Session is the explicit per-user context that replaces ambient UI state.
type Session struct {
	ID           string    `gorm:"primary_key;size:36" json:"id"`
	UserName     string    `json:"user_name"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	LastImportID string    `json:"last_import_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName sets the table name for Session
func (Session) TableName() string {
	return "sessions"
}

// Entry is one dataset row of a session: the inputs a MenuItem is derived from.
type Entry struct {
	ID             uint      `gorm:"primary_key" json:"id"`
	SessionID      string    `gorm:"index;size:36" json:"-"`
	Position       int       `json:"-"`
	ProductName    string    `json:"product_name"`
	ProductionCost float64   `json:"production_cost"`
	SalePrice      float64   `json:"sale_price"`
	Popularity     float64   `json:"popularity"`
	// TotalRevenue is the revenue reported by the sales export. Zero means
	// price times popularity.
	TotalRevenue float64   `json:"total_revenue"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// TableName sets the table name for Entry
func (Entry) TableName() string {
	return "entries"
}

// ValidateEntry validates a dataset entry
func ValidateEntry(e *Entry) error {
	if e.ProductName == "" {
		return fmt.Errorf("product name is required")
	}
	if e.ProductionCost < 0.01 {
		return fmt.Errorf("production cost must be at least 0.01")
	}
	if e.SalePrice < 0.01 {
		return fmt.Errorf("sale price must be at least 0.01")
	}
	if e.Popularity < 1 {
		return fmt.Errorf("popularity must be at least 1")
	}
	return nil
}

// ChatRole is the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one persisted message of a session's data chat.
type ChatMessage struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	SessionID string    `gorm:"index;size:36" json:"-"`
	Role      ChatRole  `json:"role"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName sets the table name for ChatMessage
func (ChatMessage) TableName() string {
	return "chat_messages"
}
