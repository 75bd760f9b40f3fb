package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/amaglobal/ama/models"
)

func TestEngagementOffline(t *testing.T) {
	ctx := context.Background()
	svc := NewEngagement(nil, testLogger())

	if _, err := svc.Notifications(ctx, "1", false); !errors.Is(err, ErrOfflineUnavailable) {
		t.Errorf("notifications err = %v, want ErrOfflineUnavailable", err)
	}
	if err := svc.Follow(ctx, "1", "2"); !errors.Is(err, ErrOfflineUnavailable) {
		t.Errorf("follow err = %v, want ErrOfflineUnavailable", err)
	}
	if err := svc.SubscribeTag(ctx, "1", "go"); !errors.Is(err, ErrOfflineUnavailable) {
		t.Errorf("subscribe err = %v, want ErrOfflineUnavailable", err)
	}
}

func TestFollowLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewEngagement(db, testLogger())
	amy := seedProfile(t, db, "amy")
	bob := seedProfile(t, db, "bob")

	if err := svc.Follow(ctx, uintToID(amy.ID), uintToID(bob.ID)); err != nil {
		t.Fatalf("follow: %v", err)
	}

	following, err := svc.IsFollowing(ctx, uintToID(amy.ID), uintToID(bob.ID))
	if err != nil || !following {
		t.Fatalf("IsFollowing = %v, %v", following, err)
	}

	// Counters on both sides ride the insert trigger.
	var a, b models.Profile
	if err := db.First(&a, amy.ID).Error; err != nil {
		t.Fatalf("reload amy: %v", err)
	}
	if err := db.First(&b, bob.ID).Error; err != nil {
		t.Fatalf("reload bob: %v", err)
	}
	if a.FollowingCount != 1 || b.FollowersCount != 1 {
		t.Errorf("counters = following %d, followers %d; want 1, 1", a.FollowingCount, b.FollowersCount)
	}

	// Bob hears about it.
	notes, err := svc.Notifications(ctx, uintToID(bob.ID), true)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Type != models.NotifyFollow {
		t.Fatalf("got %v, want one follow notification", notes)
	}
	if notes[0].Actor == nil || notes[0].Actor.Username != "amy" {
		t.Errorf("actor not attached: %+v", notes[0].Actor)
	}

	// Re-following is a no-op: no double counters, no second notification.
	if err := svc.Follow(ctx, uintToID(amy.ID), uintToID(bob.ID)); err != nil {
		t.Fatalf("re-follow: %v", err)
	}
	if err := db.First(&b, bob.ID).Error; err != nil {
		t.Fatalf("reload bob: %v", err)
	}
	if b.FollowersCount != 1 {
		t.Errorf("followers after re-follow = %d, want 1", b.FollowersCount)
	}

	if err := svc.Unfollow(ctx, uintToID(amy.ID), uintToID(bob.ID)); err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	if err := db.First(&b, bob.ID).Error; err != nil {
		t.Fatalf("reload bob: %v", err)
	}
	if b.FollowersCount != 0 {
		t.Errorf("followers after unfollow = %d, want 0", b.FollowersCount)
	}
	// Unfollowing again stays a no-op.
	if err := svc.Unfollow(ctx, uintToID(amy.ID), uintToID(bob.ID)); err != nil {
		t.Fatalf("second unfollow: %v", err)
	}
}

func TestFollowGuards(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewEngagement(db, testLogger())
	amy := seedProfile(t, db, "amy")

	if err := svc.Follow(ctx, uintToID(amy.ID), uintToID(amy.ID)); err == nil {
		t.Fatal("expected self-follow to fail")
	}
	if err := svc.Follow(ctx, uintToID(amy.ID), "9999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("follow unknown err = %v, want ErrNotFound", err)
	}
	if err := svc.Follow(ctx, "", uintToID(amy.ID)); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("anonymous follow err = %v, want ErrAuthRequired", err)
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewEngagement(db, testLogger())
	amy := seedProfile(t, db, "amy")
	bob := seedProfile(t, db, "bob")

	seed := func(recipient uint) models.Notification {
		n := models.Notification{RecipientID: recipient, Type: models.NotifyVote, Message: "m"}
		if err := db.Create(&n).Error; err != nil {
			t.Fatalf("seed notification: %v", err)
		}
		return n
	}
	first := seed(amy.ID)
	seed(amy.ID)
	other := seed(bob.ID)

	count, err := svc.UnreadCount(ctx, uintToID(amy.ID))
	if err != nil || count != 2 {
		t.Fatalf("unread = %d, %v; want 2", count, err)
	}

	if err := svc.MarkRead(ctx, uintToID(amy.ID), uintToID(first.ID)); err != nil {
		t.Fatalf("mark one: %v", err)
	}
	count, _ = svc.UnreadCount(ctx, uintToID(amy.ID))
	if count != 1 {
		t.Errorf("unread after one = %d, want 1", count)
	}

	// Another user's notification is out of reach.
	if err := svc.MarkRead(ctx, uintToID(amy.ID), uintToID(other.ID)); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user mark err = %v, want ErrNotFound", err)
	}

	// Empty id marks everything.
	if err := svc.MarkRead(ctx, uintToID(amy.ID), ""); err != nil {
		t.Fatalf("mark all: %v", err)
	}
	count, _ = svc.UnreadCount(ctx, uintToID(amy.ID))
	if count != 0 {
		t.Errorf("unread after mark all = %d, want 0", count)
	}
	// Bob is untouched.
	count, _ = svc.UnreadCount(ctx, uintToID(bob.ID))
	if count != 1 {
		t.Errorf("bob unread = %d, want 1", count)
	}
}

func TestTagSubscriptions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewEngagement(db, testLogger())
	amy := seedProfile(t, db, "amy")

	if err := svc.SubscribeTag(ctx, uintToID(amy.ID), " go "); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := svc.SubscribeTag(ctx, uintToID(amy.ID), "databases"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// Re-subscribing is a no-op.
	if err := svc.SubscribeTag(ctx, uintToID(amy.ID), "go"); err != nil {
		t.Fatalf("re-subscribe: %v", err)
	}
	if err := svc.SubscribeTag(ctx, uintToID(amy.ID), "  "); err == nil {
		t.Fatal("expected blank tag to be rejected")
	}

	tags, err := svc.SubscribedTags(ctx, uintToID(amy.ID))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if want := []string{"databases", "go"}; !reflect.DeepEqual(tags, want) {
		t.Errorf("tags = %v, want %v", tags, want)
	}

	if err := svc.UnsubscribeTag(ctx, uintToID(amy.ID), "go"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	tags, _ = svc.SubscribedTags(ctx, uintToID(amy.ID))
	if len(tags) != 1 || tags[0] != "databases" {
		t.Errorf("tags after unsubscribe = %v", tags)
	}
}

func TestNotifyTagSubscribers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewEngagement(db, testLogger())
	author := seedProfile(t, db, "author")
	fan := seedProfile(t, db, "fan")
	both := seedProfile(t, db, "both")

	mustSubscribe := func(uid uint, tag string) {
		t.Helper()
		if err := svc.SubscribeTag(ctx, uintToID(uid), tag); err != nil {
			t.Fatalf("subscribe %d to %s: %v", uid, tag, err)
		}
	}
	mustSubscribe(fan.ID, "go")
	mustSubscribe(both.ID, "go")
	mustSubscribe(both.ID, "sql")
	mustSubscribe(author.ID, "go")

	svc.NotifyTagSubscribers(ctx, QuestionView{
		ID:       "41",
		AuthorID: uintToID(author.ID),
		Tags:     []string{"go", "sql"},
	})

	// The author never hears about their own question; a subscriber matching
	// several of its tags is notified once.
	var count int64
	if err := db.Model(&models.Notification{}).Where("recipient_id = ?", author.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("author notifications = %d, want 0", count)
	}
	for _, p := range []models.Profile{fan, both} {
		if err := db.Model(&models.Notification{}).
			Where("recipient_id = ? AND type = ?", p.ID, models.NotifyTagged).
			Count(&count).Error; err != nil {
			t.Fatalf("count for %s: %v", p.Username, err)
		}
		if count != 1 {
			t.Errorf("%s notifications = %d, want 1", p.Username, count)
		}
	}

	// Local-store question ids cannot fan out; nothing happens.
	svc.NotifyTagSubscribers(ctx, QuestionView{ID: "offline_1_ab", Tags: []string{"go"}})
}
