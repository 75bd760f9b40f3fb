package utils

import (
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/amaglobal/ama/models"
)

func TestPruneReadNotifications(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "prune_test.db")), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stale := time.Now().Add(-2 * notificationRetention)
	rows := []models.Notification{
		{RecipientID: 1, Type: models.NotifyAnswer, IsRead: true, CreatedAt: stale},
		{RecipientID: 1, Type: models.NotifyFollow, IsRead: false, CreatedAt: stale},
		{RecipientID: 1, Type: models.NotifyComment, IsRead: true, CreatedAt: time.Now()},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	pruneReadNotifications(db, time.Now().Add(-notificationRetention))

	var remaining []models.Notification
	if err := db.Order("created_at asc").Find(&remaining).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d, want 2 (stale read row pruned)", len(remaining))
	}
	// Unread rows survive regardless of age; recent read rows survive too.
	if remaining[0].IsRead || remaining[0].Type != models.NotifyFollow {
		t.Errorf("stale unread row pruned: %+v", remaining[0])
	}
	if remaining[1].Type != models.NotifyComment {
		t.Errorf("recent read row pruned: %+v", remaining[1])
	}
}

func TestStartNotificationPrunerNilDB(t *testing.T) {
	// Without a database there is nothing to prune; must not panic or spawn.
	StartNotificationPruner(nil, time.Millisecond)
}
