package models

import "time"

// Notification kinds.
const (
	NotifyAnswer   = "answer"
	NotifyComment  = "comment"
	NotifyAccepted = "accepted"
	NotifyFollow   = "follow"
	NotifyVote     = "vote"
	NotifyTagged   = "tagged_question"
)

// Notification is an engagement record delivered to one recipient.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RecipientID uint      `gorm:"index;not null" json:"recipient_id"`
	ActorID     uint      `gorm:"index" json:"actor_id"`
	Type        string    `gorm:"size:32;index;not null" json:"type"`
	TargetID    uint      `json:"target_id"`
	TargetType  string    `gorm:"size:16" json:"target_type"`
	Message     string    `gorm:"size:512" json:"message"`
	IsRead      bool      `gorm:"default:false;index" json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// Follow links a follower to a followed profile. Both parties' follower and
// following counters are adjusted symmetrically by triggers.
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follows_pair" json:"follower_id"`
	FollowedID uint      `gorm:"not null;uniqueIndex:idx_follows_pair" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TagSubscription subscribes a user to new questions carrying a tag.
type TagSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_tag_subs_user_tag" json:"user_id"`
	Tag       string    `gorm:"size:64;not null;uniqueIndex:idx_tag_subs_user_tag" json:"tag"`
	CreatedAt time.Time `json:"created_at"`
}
