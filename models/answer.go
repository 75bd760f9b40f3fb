package models

import "time"

// Answer belongs to exactly one question. At most one answer per question is
// accepted; the accept operation enforces this with a conditional update inside
// a transaction rather than a uniqueness constraint.
type Answer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	QuestionID uint      `gorm:"index;not null" json:"question_id"`
	AuthorID   *uint     `gorm:"index" json:"author_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Votes      int       `gorm:"default:0" json:"votes"`
	IsAccepted bool      `gorm:"default:false" json:"is_accepted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Author     *Profile  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Comments   []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments,omitempty"`
}
