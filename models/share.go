package models

import "time"

// QuestionShare grants outsiders answer access to one question via an opaque
// code, without prior navigation or authentication. Policy flags decide whether
// the respondent may stay anonymous or must sign in first.
type QuestionShare struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	QuestionID     uint      `gorm:"index;not null" json:"question_id"`
	Code           string    `gorm:"size:64;uniqueIndex;not null" json:"code"`
	CreatedBy      uint      `gorm:"index" json:"created_by"`
	AllowAnonymous bool      `gorm:"default:true" json:"allow_anonymous"`
	RequireAuth    bool      `gorm:"default:false" json:"require_auth"`
	CreatedAt      time.Time `json:"created_at"`
}
