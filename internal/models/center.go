package models

import "time"

// Center is a training center listed for members.
type Center struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Location    string    `gorm:"size:255" json:"location"`
	Hours       string    `gorm:"size:120" json:"hours"`
	Link        string    `gorm:"size:512" json:"link,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Dashboard aggregates the data an administrator reviews.
type Dashboard struct {
	PendingAccounts []User   `json:"pending_accounts"`
	Posts           []*Post  `json:"posts"`
	PostsTotal      int64    `json:"posts_total"`
	NextOffset      *int     `json:"next_offset"`
	Centers         []Center `json:"centers"`
}
