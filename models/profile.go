package models

import (
	"time"

	"gorm.io/gorm"
)

// Profile represents a platform user. Passwords are stored as bcrypt hashes only.
// Counter columns (questions_count, answers_count, ...) are denormalized and kept
// in sync by database triggers; application code never writes them directly.
type Profile struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	Username             string         `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email                string         `gorm:"size:255;index" json:"email"`
	PasswordHash         string         `gorm:"size:255" json:"-"`
	DisplayName          string         `gorm:"size:128" json:"display_name"`
	Provider             string         `gorm:"size:32" json:"provider"`
	ProviderID           string         `gorm:"size:255" json:"provider_id"`
	AvatarURL            string         `gorm:"size:512" json:"avatar_url"`
	Bio                  string         `gorm:"size:512" json:"bio"`
	Reputation           int            `gorm:"default:0" json:"reputation"`
	IsModerator          bool           `gorm:"default:false" json:"is_moderator"`
	QuestionsCount       int            `gorm:"default:0" json:"questions_count"`
	AnswersCount         int            `gorm:"default:0" json:"answers_count"`
	AcceptedAnswersCount int            `gorm:"default:0" json:"accepted_answers_count"`
	FollowersCount       int            `gorm:"default:0" json:"followers_count"`
	FollowingCount       int            `gorm:"default:0" json:"following_count"`
	NotificationPrefs    string         `gorm:"type:text" json:"notification_prefs"` // JSON preference bag
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Profile) TableName() string { return "profiles" }

// BeforeCreate hook ensures timestamps are set even when not provided.
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (p *Profile) BeforeUpdate(tx *gorm.DB) error {
	p.UpdatedAt = time.Now()
	return nil
}
