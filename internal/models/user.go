// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// AccountStatus is the approval state of an account.
type AccountStatus string

const (
	// StatusPending is the state of every newly registered account.
	StatusPending AccountStatus = "pending"
	// StatusApproved accounts may use the community.
	StatusApproved AccountStatus = "approved"
	// StatusRejected is only a transition target; rejected accounts are removed.
	StatusRejected AccountStatus = "rejected"
)

// Valid reports whether s is a persisted account status.
func (s AccountStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved
}

// User represents a member account.
type User struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	Username       string        `gorm:"uniqueIndex;not null;size:64" json:"username"`
	Email          *string       `gorm:"uniqueIndex;size:255" json:"email,omitempty"`
	Password       string        `gorm:"not null" json:"-"`
	Status         AccountStatus `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	IsAdmin        bool          `gorm:"not null;default:false" json:"is_admin"`
	Bio            string        `gorm:"type:text" json:"bio"`
	TrainingCourse string        `gorm:"size:120" json:"training_course"`
	ProfilePicture string        `json:"profile_picture,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsApproved reports whether the account has passed moderation.
func (u *User) IsApproved() bool {
	return u != nil && u.Status == StatusApproved
}

// PublicProfile is the subset of an account shown to other members.
type PublicProfile struct {
	ID             uint      `json:"id"`
	Username       string    `json:"username"`
	Bio            string    `json:"bio"`
	TrainingCourse string    `json:"training_course"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Public returns the account's public profile.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:             u.ID,
		Username:       u.Username,
		Bio:            u.Bio,
		TrainingCourse: u.TrainingCourse,
		ProfilePicture: u.ProfilePicture,
		CreatedAt:      u.CreatedAt,
	}
}
