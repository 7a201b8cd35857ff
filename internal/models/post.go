package models

import (
	"time"
)

// Post represents a member's feed entry.
type Post struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	UserID         uint   `gorm:"not null;index" json:"user_id"`
	User           User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
	Content        string `gorm:"type:text;not null;default:''" json:"content"`
	ImageRef       string `json:"image_url,omitempty"`
	Likes          int    `gorm:"not null;default:0;check:likes >= 0" json:"likes"`
	IsAnnouncement bool   `gorm:"not null;default:false" json:"is_announcement"`
	// Liked indicates whether the requesting member liked this post (computed)
	Liked     bool       `gorm:"-" json:"liked"`
	Comments  []*Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Comment is a reply under a post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Like records that a member liked a post. At most one row exists per (user, post).
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}
