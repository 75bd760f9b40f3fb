package store

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/amaglobal/ama/models"
)

// sqliteTriggers is the counter trigger set in sqlite dialect. It mirrors the
// MySQL DDL installed at startup so tests can exercise the trigger-maintained
// counters against a file database instead of a MySQL server.
var sqliteTriggers = []string{
	`CREATE TRIGGER questions_after_insert AFTER INSERT ON questions
WHEN NEW.author_id IS NOT NULL
BEGIN
  UPDATE profiles SET questions_count = questions_count + 1 WHERE id = NEW.author_id;
END`,
	`CREATE TRIGGER questions_after_delete AFTER DELETE ON questions
WHEN OLD.author_id IS NOT NULL
BEGIN
  UPDATE profiles SET questions_count = questions_count - 1 WHERE id = OLD.author_id;
END`,
	`CREATE TRIGGER answers_after_insert AFTER INSERT ON answers
BEGIN
  UPDATE questions SET answer_count = answer_count + 1 WHERE id = NEW.question_id;
  UPDATE profiles SET answers_count = answers_count + 1
    WHERE NEW.author_id IS NOT NULL AND id = NEW.author_id;
END`,
	`CREATE TRIGGER answers_after_delete AFTER DELETE ON answers
BEGIN
  UPDATE questions SET answer_count = answer_count - 1 WHERE id = OLD.question_id;
  UPDATE profiles SET answers_count = answers_count - 1
    WHERE OLD.author_id IS NOT NULL AND id = OLD.author_id;
  UPDATE questions SET is_answered = 0 WHERE OLD.is_accepted AND id = OLD.question_id;
  UPDATE profiles SET accepted_answers_count = accepted_answers_count - 1
    WHERE OLD.is_accepted AND OLD.author_id IS NOT NULL AND id = OLD.author_id;
END`,
	`CREATE TRIGGER answers_after_accept_toggle AFTER UPDATE OF is_accepted ON answers
BEGIN
  UPDATE questions SET is_answered = 1
    WHERE NEW.is_accepted AND NOT OLD.is_accepted AND id = NEW.question_id;
  UPDATE profiles SET accepted_answers_count = accepted_answers_count + 1
    WHERE NEW.is_accepted AND NOT OLD.is_accepted AND NEW.author_id IS NOT NULL AND id = NEW.author_id;
  UPDATE questions SET is_answered = 0
    WHERE OLD.is_accepted AND NOT NEW.is_accepted AND id = NEW.question_id;
  UPDATE profiles SET accepted_answers_count = accepted_answers_count - 1
    WHERE OLD.is_accepted AND NOT NEW.is_accepted AND NEW.author_id IS NOT NULL AND id = NEW.author_id;
END`,
	`CREATE TRIGGER votes_after_insert AFTER INSERT ON votes
BEGIN
  UPDATE questions SET votes = votes + (CASE NEW.direction WHEN 'up' THEN 1 ELSE -1 END)
    WHERE NEW.target_type = 'question' AND id = NEW.target_id;
  UPDATE answers SET votes = votes + (CASE NEW.direction WHEN 'up' THEN 1 ELSE -1 END)
    WHERE NEW.target_type = 'answer' AND id = NEW.target_id;
  UPDATE comments SET votes = votes + (CASE NEW.direction WHEN 'up' THEN 1 ELSE -1 END)
    WHERE NEW.target_type = 'comment' AND id = NEW.target_id;
END`,
	`CREATE TRIGGER follows_after_insert AFTER INSERT ON follows
BEGIN
  UPDATE profiles SET followers_count = followers_count + 1 WHERE id = NEW.followed_id;
  UPDATE profiles SET following_count = following_count + 1 WHERE id = NEW.follower_id;
END`,
	`CREATE TRIGGER follows_after_delete AFTER DELETE ON follows
BEGIN
  UPDATE profiles SET followers_count = followers_count - 1 WHERE id = OLD.followed_id;
  UPDATE profiles SET following_count = following_count - 1 WHERE id = OLD.follower_id;
END`,
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ama_test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                                   gormlogger.Discard,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Profile{},
		&models.Question{},
		&models.Answer{},
		&models.Comment{},
		&models.Vote{},
		&models.QuestionShare{},
		&models.Notification{},
		&models.Follow{},
		&models.TagSubscription{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, ddl := range sqliteTriggers {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("install trigger: %v", err)
		}
	}
	return db
}

func newTestLocal(t *testing.T) *LocalStore {
	t.Helper()
	local, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return local
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func seedProfile(t *testing.T, db *gorm.DB, username string) models.Profile {
	t.Helper()
	p := models.Profile{Username: username, Email: username + "@example.com"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed profile %s: %v", username, err)
	}
	return p
}

func seedModerator(t *testing.T, db *gorm.DB, username string) models.Profile {
	t.Helper()
	p := models.Profile{Username: username, Email: username + "@example.com", IsModerator: true}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed moderator %s: %v", username, err)
	}
	return p
}
