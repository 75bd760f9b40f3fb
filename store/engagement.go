package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/amaglobal/ama/models"
	"github.com/amaglobal/ama/utils"
)

// NotificationView is the read model for a notification.
type NotificationView struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ActorID    string    `json:"actor_id,omitempty"`
	TargetID   string    `json:"target_id"`
	TargetType string    `json:"target_type,omitempty"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
	Actor      *UserView `json:"actor,omitempty"`
}

// Engagement covers notifications, user follows and tag subscriptions. These
// are inherently cross-user features, so there is no local fallback: offline
// compositions get ErrOfflineUnavailable from every operation.
type Engagement struct {
	db  *gorm.DB // nil in offline composition
	log *zap.SugaredLogger
}

// NewEngagement builds the engagement service. Pass a nil db for offline mode.
func NewEngagement(db *gorm.DB, log *zap.SugaredLogger) *Engagement {
	return &Engagement{db: db, log: log}
}

// Notifications lists a user's notifications, newest first.
func (e *Engagement) Notifications(ctx context.Context, userID string, unreadOnly bool) ([]NotificationView, error) {
	if e.db == nil {
		return nil, ErrOfflineUnavailable
	}
	uid, ok := parseUintID(userID)
	if !ok {
		return nil, ErrAuthRequired
	}

	q := e.db.WithContext(ctx).Where("recipient_id = ?", uid)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var rows []models.Notification
	if err := q.Order("created_at DESC").Limit(100).Find(&rows).Error; err != nil {
		return nil, err
	}

	actorIDs := make([]uint, 0, len(rows))
	for _, n := range rows {
		if n.ActorID != 0 {
			actorIDs = append(actorIDs, n.ActorID)
		}
	}
	actors := map[uint]models.Profile{}
	if len(actorIDs) > 0 {
		var profiles []models.Profile
		if err := e.db.WithContext(ctx).Where("id IN ?", utils.UniqueUint(actorIDs)).Find(&profiles).Error; err == nil {
			for _, p := range profiles {
				actors[p.ID] = p
			}
		}
	}

	views := make([]NotificationView, 0, len(rows))
	for _, n := range rows {
		v := NotificationView{
			ID:         uintToID(n.ID),
			Type:       n.Type,
			TargetID:   uintToID(n.TargetID),
			TargetType: n.TargetType,
			Message:    n.Message,
			IsRead:     n.IsRead,
			CreatedAt:  n.CreatedAt,
		}
		if n.ActorID != 0 {
			v.ActorID = uintToID(n.ActorID)
			if p, ok := actors[n.ActorID]; ok {
				v.Actor = profileView(p)
			}
		}
		views = append(views, v)
	}
	return views, nil
}

// UnreadCount returns how many unread notifications a user has.
func (e *Engagement) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if e.db == nil {
		return 0, ErrOfflineUnavailable
	}
	uid, ok := parseUintID(userID)
	if !ok {
		return 0, ErrAuthRequired
	}
	var count int64
	err := e.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", uid, false).
		Count(&count).Error
	return count, err
}

// MarkRead marks one notification, or all of a user's notifications when
// notificationID is empty.
func (e *Engagement) MarkRead(ctx context.Context, userID, notificationID string) error {
	if e.db == nil {
		return ErrOfflineUnavailable
	}
	uid, ok := parseUintID(userID)
	if !ok {
		return ErrAuthRequired
	}

	q := e.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", uid)
	if notificationID != "" {
		nid, ok := parseUintID(notificationID)
		if !ok {
			return ErrNotFound
		}
		q = q.Where("id = ?", nid)
	}
	res := q.Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if notificationID != "" && res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Follow makes follower follow followed. Following yourself or an unknown
// user is an error; re-following is a no-op. The counter columns on both
// profiles ride on the follows insert trigger.
func (e *Engagement) Follow(ctx context.Context, followerID, followedID string) error {
	if e.db == nil {
		return ErrOfflineUnavailable
	}
	fid, ok := parseUintID(followerID)
	if !ok {
		return ErrAuthRequired
	}
	tid, ok := parseUintID(followedID)
	if !ok {
		return ErrNotFound
	}
	if fid == tid {
		return errors.New("cannot follow yourself")
	}

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var followed models.Profile
		if err := tx.First(&followed, tid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var existing int64
		if err := tx.Model(&models.Follow{}).
			Where("follower_id = ? AND followed_id = ?", fid, tid).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		if err := tx.Create(&models.Follow{FollowerID: fid, FollowedID: tid}).Error; err != nil {
			return err
		}
		return tx.Create(&models.Notification{
			RecipientID: tid,
			ActorID:     fid,
			Type:        models.NotifyFollow,
			TargetID:    fid,
			TargetType:  "profile",
			Message:     "started following you",
		}).Error
	})
}

// Unfollow removes a follow edge. Unfollowing someone you do not follow is a
// no-op. The follows delete trigger rolls both counters back.
func (e *Engagement) Unfollow(ctx context.Context, followerID, followedID string) error {
	if e.db == nil {
		return ErrOfflineUnavailable
	}
	fid, ok := parseUintID(followerID)
	if !ok {
		return ErrAuthRequired
	}
	tid, ok := parseUintID(followedID)
	if !ok {
		return ErrNotFound
	}
	return e.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", fid, tid).
		Delete(&models.Follow{}).Error
}

// IsFollowing reports whether follower follows followed.
func (e *Engagement) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	if e.db == nil {
		return false, ErrOfflineUnavailable
	}
	fid, ok := parseUintID(followerID)
	if !ok {
		return false, nil
	}
	tid, ok := parseUintID(followedID)
	if !ok {
		return false, nil
	}
	var count int64
	err := e.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", fid, tid).
		Count(&count).Error
	return count > 0, err
}

// SubscribeTag subscribes a user to a tag. Re-subscribing is a no-op.
func (e *Engagement) SubscribeTag(ctx context.Context, userID, tag string) error {
	if e.db == nil {
		return ErrOfflineUnavailable
	}
	uid, ok := parseUintID(userID)
	if !ok {
		return ErrAuthRequired
	}
	tag = normalizeTagName(tag)
	if tag == "" {
		return errors.New("tag is required")
	}
	var existing int64
	if err := e.db.WithContext(ctx).Model(&models.TagSubscription{}).
		Where("user_id = ? AND tag = ?", uid, tag).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	return e.db.WithContext(ctx).Create(&models.TagSubscription{UserID: uid, Tag: tag}).Error
}

// UnsubscribeTag drops a tag subscription.
func (e *Engagement) UnsubscribeTag(ctx context.Context, userID, tag string) error {
	if e.db == nil {
		return ErrOfflineUnavailable
	}
	uid, ok := parseUintID(userID)
	if !ok {
		return ErrAuthRequired
	}
	return e.db.WithContext(ctx).
		Where("user_id = ? AND tag = ?", uid, normalizeTagName(tag)).
		Delete(&models.TagSubscription{}).Error
}

// SubscribedTags lists the tags a user follows.
func (e *Engagement) SubscribedTags(ctx context.Context, userID string) ([]string, error) {
	if e.db == nil {
		return nil, ErrOfflineUnavailable
	}
	uid, ok := parseUintID(userID)
	if !ok {
		return nil, ErrAuthRequired
	}
	var tags []string
	err := e.db.WithContext(ctx).Model(&models.TagSubscription{}).
		Where("user_id = ?", uid).
		Order("tag ASC").
		Pluck("tag", &tags).Error
	return tags, err
}

// NotifyTagSubscribers fans a new-question notification out to everyone
// subscribed to any of its tags. Failures are logged, not surfaced: a missed
// notification must not fail the question post.
func (e *Engagement) NotifyTagSubscribers(ctx context.Context, q QuestionView) {
	if e.db == nil || len(q.Tags) == 0 {
		return
	}
	qid, ok := parseUintID(q.ID)
	if !ok {
		return
	}
	normalized := make([]string, 0, len(q.Tags))
	for _, t := range q.Tags {
		if n := normalizeTagName(t); n != "" {
			normalized = append(normalized, n)
		}
	}
	if len(normalized) == 0 {
		return
	}

	var subs []models.TagSubscription
	if err := e.db.WithContext(ctx).Where("tag IN ?", normalized).Find(&subs).Error; err != nil {
		e.log.Warnf("tag notification fan-out failed: %v", err)
		return
	}

	seen := map[uint]bool{}
	var authorID uint
	if q.AuthorID != "" {
		authorID, _ = parseUintID(q.AuthorID)
	}
	for _, sub := range subs {
		if seen[sub.UserID] || sub.UserID == authorID {
			continue
		}
		seen[sub.UserID] = true
		note := models.Notification{
			RecipientID: sub.UserID,
			Type:        models.NotifyTagged,
			TargetID:    qid,
			TargetType:  models.TargetQuestion,
			Message:     "new question tagged " + sub.Tag,
		}
		if err := e.db.WithContext(ctx).Create(&note).Error; err != nil {
			e.log.Warnf("tag notification insert failed: %v", err)
		}
	}
}

func normalizeTagName(tag string) string {
	return joinTags([]string{tag})
}
