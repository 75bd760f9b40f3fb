package models

import "time"

// Comment represents a reply to an answer.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AnswerID  uint      `gorm:"index;not null" json:"answer_id"`
	AuthorID  uint      `gorm:"index;not null" json:"author_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Votes     int       `gorm:"default:0" json:"votes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Author    *Profile  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}
