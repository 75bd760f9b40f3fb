package config

import "gorm.io/gorm"

// Denormalized counters are owned by the database: triggers adjust them as a
// side effect of row changes so they stay correct no matter which client
// performs the write. Application code never updates a counter column directly;
// the one exception is the local JSON store, which has no trigger machinery and
// adjusts its cached copies in code.
var triggerDDL = []struct {
	name string
	drop string
	stmt string
}{
	{
		name: "questions_after_insert",
		drop: "DROP TRIGGER IF EXISTS questions_after_insert",
		stmt: `CREATE TRIGGER questions_after_insert AFTER INSERT ON questions
FOR EACH ROW
BEGIN
  IF NEW.author_id IS NOT NULL THEN
    UPDATE profiles SET questions_count = questions_count + 1 WHERE id = NEW.author_id;
  END IF;
END`,
	},
	{
		name: "questions_after_delete",
		drop: "DROP TRIGGER IF EXISTS questions_after_delete",
		stmt: `CREATE TRIGGER questions_after_delete AFTER DELETE ON questions
FOR EACH ROW
BEGIN
  IF OLD.author_id IS NOT NULL THEN
    UPDATE profiles SET questions_count = questions_count - 1 WHERE id = OLD.author_id;
  END IF;
END`,
	},
	{
		name: "answers_after_insert",
		drop: "DROP TRIGGER IF EXISTS answers_after_insert",
		stmt: `CREATE TRIGGER answers_after_insert AFTER INSERT ON answers
FOR EACH ROW
BEGIN
  UPDATE questions SET answer_count = answer_count + 1 WHERE id = NEW.question_id;
  IF NEW.author_id IS NOT NULL THEN
    UPDATE profiles SET answers_count = answers_count + 1 WHERE id = NEW.author_id;
  END IF;
END`,
	},
	{
		name: "answers_after_delete",
		drop: "DROP TRIGGER IF EXISTS answers_after_delete",
		stmt: `CREATE TRIGGER answers_after_delete AFTER DELETE ON answers
FOR EACH ROW
BEGIN
  UPDATE questions SET answer_count = answer_count - 1 WHERE id = OLD.question_id;
  IF OLD.author_id IS NOT NULL THEN
    UPDATE profiles SET answers_count = answers_count - 1 WHERE id = OLD.author_id;
  END IF;
  IF OLD.is_accepted THEN
    UPDATE questions SET is_answered = false WHERE id = OLD.question_id;
    IF OLD.author_id IS NOT NULL THEN
      UPDATE profiles SET accepted_answers_count = accepted_answers_count - 1 WHERE id = OLD.author_id;
    END IF;
  END IF;
END`,
	},
	{
		name: "answers_after_accept_toggle",
		drop: "DROP TRIGGER IF EXISTS answers_after_accept_toggle",
		stmt: `CREATE TRIGGER answers_after_accept_toggle AFTER UPDATE ON answers
FOR EACH ROW
BEGIN
  IF NEW.is_accepted AND NOT OLD.is_accepted THEN
    UPDATE questions SET is_answered = true WHERE id = NEW.question_id;
    IF NEW.author_id IS NOT NULL THEN
      UPDATE profiles SET accepted_answers_count = accepted_answers_count + 1 WHERE id = NEW.author_id;
    END IF;
  END IF;
  IF OLD.is_accepted AND NOT NEW.is_accepted THEN
    UPDATE questions SET is_answered = false WHERE id = NEW.question_id;
    IF NEW.author_id IS NOT NULL THEN
      UPDATE profiles SET accepted_answers_count = accepted_answers_count - 1 WHERE id = NEW.author_id;
    END IF;
  END IF;
END`,
	},
	{
		name: "votes_after_insert",
		drop: "DROP TRIGGER IF EXISTS votes_after_insert",
		stmt: `CREATE TRIGGER votes_after_insert AFTER INSERT ON votes
FOR EACH ROW
BEGIN
  IF NEW.target_type = 'question' THEN
    UPDATE questions SET votes = votes + IF(NEW.direction = 'up', 1, -1) WHERE id = NEW.target_id;
  ELSEIF NEW.target_type = 'answer' THEN
    UPDATE answers SET votes = votes + IF(NEW.direction = 'up', 1, -1) WHERE id = NEW.target_id;
  ELSEIF NEW.target_type = 'comment' THEN
    UPDATE comments SET votes = votes + IF(NEW.direction = 'up', 1, -1) WHERE id = NEW.target_id;
  END IF;
END`,
	},
	{
		name: "follows_after_insert",
		drop: "DROP TRIGGER IF EXISTS follows_after_insert",
		stmt: `CREATE TRIGGER follows_after_insert AFTER INSERT ON follows
FOR EACH ROW
BEGIN
  UPDATE profiles SET followers_count = followers_count + 1 WHERE id = NEW.followed_id;
  UPDATE profiles SET following_count = following_count + 1 WHERE id = NEW.follower_id;
END`,
	},
	{
		name: "follows_after_delete",
		drop: "DROP TRIGGER IF EXISTS follows_after_delete",
		stmt: `CREATE TRIGGER follows_after_delete AFTER DELETE ON follows
FOR EACH ROW
BEGIN
  UPDATE profiles SET followers_count = followers_count - 1 WHERE id = OLD.followed_id;
  UPDATE profiles SET following_count = following_count - 1 WHERE id = OLD.follower_id;
END`,
	},
}

// InstallTriggers (re)creates the counter maintenance triggers. Statements are
// idempotent: each trigger is dropped before creation.
func InstallTriggers(db *gorm.DB) error {
	for _, t := range triggerDDL {
		if err := db.Exec(t.drop).Error; err != nil {
			return err
		}
		if err := db.Exec(t.stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
