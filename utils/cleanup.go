package utils

import (
	"time"

	"gorm.io/gorm"

	"github.com/amaglobal/ama/models"
)

const notificationRetention = 30 * 24 * time.Hour

// StartNotificationPruner launches a background goroutine that periodically
// deletes read notifications past the retention window. It is best-effort and
// logs failures.
func StartNotificationPruner(db *gorm.DB, interval time.Duration) {
	if db == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			pruneReadNotifications(db, time.Now().Add(-notificationRetention))
		}
	}()
}

func pruneReadNotifications(db *gorm.DB, cutoff time.Time) {
	res := db.Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if res.Error != nil {
		if Sugar != nil {
			Sugar.Warnf("notification pruner failed: %v", res.Error)
		}
		return
	}
	if res.RowsAffected > 0 && Sugar != nil {
		Sugar.Infof("pruned %d read notifications", res.RowsAffected)
	}
}
