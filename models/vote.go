package models

import "time"

// Vote directions and target kinds.
const (
	VoteUp   = "up"
	VoteDown = "down"

	TargetQuestion = "question"
	TargetAnswer   = "answer"
	TargetComment  = "comment"
)

// Vote records one user's vote on a question, answer or comment. Uniqueness per
// (user, target) is enforced by the composite unique index in the remote store;
// the local store checks for an existing vote before appending.
type Vote struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_votes_user_target" json:"user_id"`
	TargetID   uint      `gorm:"not null;uniqueIndex:idx_votes_user_target" json:"target_id"`
	TargetType string    `gorm:"size:16;not null;uniqueIndex:idx_votes_user_target" json:"target_type"`
	Direction  string    `gorm:"size:8;not null" json:"direction"` // up or down
	CreatedAt  time.Time `json:"created_at"`
}
