package models

import "time"

// Question is the central entity of the platform. AuthorID is nullable to
// support anonymous and guest asking: exactly one of {AuthorID, AskerName,
// IsAnonymous} determines the displayed attribution. Votes and AnswerCount are
// mutated only through trigger-backed side effects of related inserts.
type Question struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuthorID    *uint     `gorm:"index" json:"author_id"`
	AskerName   string    `gorm:"size:64" json:"asker_name"`
	IsAnonymous bool      `gorm:"default:false" json:"is_anonymous"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	Tags        string    `gorm:"size:255" json:"tags"` // comma separated tag set
	Votes       int       `gorm:"default:0" json:"votes"`
	AnswerCount int       `gorm:"default:0" json:"answer_count"`
	IsAnswered  bool      `gorm:"default:false" json:"is_answered"`
	IsFeatured  bool      `gorm:"default:false" json:"is_featured"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Author      *Profile  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Answers     []Answer  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"answers,omitempty"`
}
