package store

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/amaglobal/ama/models"
)

type failingAnswerStore struct{ err error }

func (f failingAnswerStore) ListForQuestion(ctx context.Context, questionID string) ([]AnswerView, error) {
	return nil, f.err
}
func (f failingAnswerStore) Create(ctx context.Context, in CreateAnswerInput) (AnswerView, error) {
	return AnswerView{}, f.err
}

func seedQuestion(t *testing.T, db *gorm.DB, authorID *uint, title string) models.Question {
	t.Helper()
	q := models.Question{AuthorID: authorID, Title: title, Content: "body"}
	if err := db.Create(&q).Error; err != nil {
		t.Fatalf("seed question: %v", err)
	}
	return q
}

func TestRemoteAnswersCreate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	remote := NewRemoteAnswers(db)
	asker := seedProfile(t, db, "asker")
	helper := seedProfile(t, db, "helper")
	q := seedQuestion(t, db, &asker.ID, "Needs answers")

	a, err := remote.Create(ctx, CreateAnswerInput{
		QuestionID: uintToID(q.ID),
		AuthorID:   uintToID(helper.ID),
		Content:    "Here is how",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Author == nil || a.Author.Username != "helper" {
		t.Errorf("author not attached: %+v", a.Author)
	}

	// Insert trigger maintains the denormalized counters.
	var reloaded models.Question
	if err := db.First(&reloaded, q.ID).Error; err != nil {
		t.Fatalf("reload question: %v", err)
	}
	if reloaded.AnswerCount != 1 {
		t.Errorf("answer_count = %d, want 1", reloaded.AnswerCount)
	}
	var p models.Profile
	if err := db.First(&p, helper.ID).Error; err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	if p.AnswersCount != 1 {
		t.Errorf("answers_count = %d, want 1", p.AnswersCount)
	}

	// The question author hears about the new answer.
	var notes []models.Notification
	if err := db.Where("recipient_id = ?", asker.ID).Find(&notes).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Type != models.NotifyAnswer {
		t.Fatalf("got %d notifications, want one answer notification", len(notes))
	}

	if _, err := remote.Create(ctx, CreateAnswerInput{QuestionID: "9999", Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("create on missing question err = %v, want ErrNotFound", err)
	}
}

func TestRemoteAnswersSelfAnswerNoNotification(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	remote := NewRemoteAnswers(db)
	asker := seedProfile(t, db, "asker")
	q := seedQuestion(t, db, &asker.ID, "Self answered")

	if _, err := remote.Create(ctx, CreateAnswerInput{
		QuestionID: uintToID(q.ID),
		AuthorID:   uintToID(asker.ID),
		Content:    "Answering myself",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	var count int64
	if err := db.Model(&models.Notification{}).Count(&count).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	if count != 0 {
		t.Errorf("got %d notifications for a self answer, want 0", count)
	}
}

func TestRemoteAnswersAcceptExclusivity(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	remote := NewRemoteAnswers(db)
	asker := seedProfile(t, db, "asker")
	helper := seedProfile(t, db, "helper")
	q := seedQuestion(t, db, &asker.ID, "Pick one")

	first, err := remote.Create(ctx, CreateAnswerInput{QuestionID: uintToID(q.ID), AuthorID: uintToID(helper.ID), Content: "first"})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := remote.Create(ctx, CreateAnswerInput{QuestionID: uintToID(q.ID), AuthorID: uintToID(helper.ID), Content: "second"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	got, err := remote.Accept(ctx, first.ID, uintToID(asker.ID))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !got.IsAccepted {
		t.Fatal("first answer not accepted")
	}
	var reloaded models.Question
	if err := db.First(&reloaded, q.ID).Error; err != nil {
		t.Fatalf("reload question: %v", err)
	}
	if !reloaded.IsAnswered {
		t.Error("question not marked answered")
	}
	var p models.Profile
	if err := db.First(&p, helper.ID).Error; err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	if p.AcceptedAnswersCount != 1 {
		t.Errorf("accepted_answers_count = %d, want 1", p.AcceptedAnswersCount)
	}

	// Accepting the second clears the first: at most one accepted answer.
	if _, err := remote.Accept(ctx, second.ID, uintToID(asker.ID)); err != nil {
		t.Fatalf("accept second: %v", err)
	}
	var accepted int64
	if err := db.Model(&models.Answer{}).
		Where("question_id = ? AND is_accepted = ?", q.ID, true).
		Count(&accepted).Error; err != nil {
		t.Fatalf("count accepted: %v", err)
	}
	if accepted != 1 {
		t.Fatalf("accepted answers = %d, want exactly 1", accepted)
	}
	fid, _ := parseUintID(first.ID)
	var firstReloaded models.Answer
	if err := db.First(&firstReloaded, fid).Error; err != nil {
		t.Fatalf("reload first: %v", err)
	}
	if firstReloaded.IsAccepted {
		t.Error("first answer still accepted after switching")
	}

	// Toggling the accepted answer off clears the answered flag again.
	got, err = remote.Accept(ctx, second.ID, uintToID(asker.ID))
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if got.IsAccepted {
		t.Error("answer still accepted after toggle off")
	}
	if err := db.First(&reloaded, q.ID).Error; err != nil {
		t.Fatalf("reload question: %v", err)
	}
	if reloaded.IsAnswered {
		t.Error("question still marked answered after toggle off")
	}
}

func TestRemoteAnswersAcceptPermissions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	remote := NewRemoteAnswers(db)
	asker := seedProfile(t, db, "asker")
	stranger := seedProfile(t, db, "stranger")
	mod := seedModerator(t, db, "mod")
	q := seedQuestion(t, db, &asker.ID, "Guarded")

	a, err := remote.Create(ctx, CreateAnswerInput{QuestionID: uintToID(q.ID), Content: "anon answer"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := remote.Accept(ctx, a.ID, uintToID(stranger.ID)); err == nil {
		t.Fatal("expected accept by stranger to fail")
	}
	if _, err := remote.Accept(ctx, a.ID, uintToID(mod.ID)); err != nil {
		t.Fatalf("accept by moderator: %v", err)
	}
	if _, err := remote.Accept(ctx, "9999", uintToID(asker.ID)); !errors.Is(err, ErrNotFound) {
		t.Errorf("accept missing answer err = %v, want ErrNotFound", err)
	}
}

func TestRemoteAnswersVote(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	remote := NewRemoteAnswers(db)
	asker := seedProfile(t, db, "asker")
	voter := seedProfile(t, db, "voter")
	q := seedQuestion(t, db, &asker.ID, "Vote the answer")

	a, err := remote.Create(ctx, CreateAnswerInput{QuestionID: uintToID(q.ID), Content: "votable"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := remote.Vote(ctx, a.ID, uintToID(voter.ID), "up")
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if got.Votes != 1 {
		t.Errorf("votes = %d, want 1", got.Votes)
	}
	got, err = remote.Vote(ctx, a.ID, uintToID(voter.ID), "up")
	if err != nil {
		t.Fatalf("repeat vote: %v", err)
	}
	if got.Votes != 1 {
		t.Errorf("votes after repeat = %d, want 1", got.Votes)
	}
}

func TestRemoteAnswersComment(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	remote := NewRemoteAnswers(db)
	asker := seedProfile(t, db, "asker")
	helper := seedProfile(t, db, "helper")
	commenter := seedProfile(t, db, "commenter")
	q := seedQuestion(t, db, &asker.ID, "Comment here")

	a, err := remote.Create(ctx, CreateAnswerInput{QuestionID: uintToID(q.ID), AuthorID: uintToID(helper.ID), Content: "answer"})
	if err != nil {
		t.Fatalf("create answer: %v", err)
	}

	c, err := remote.Comment(ctx, a.ID, uintToID(commenter.ID), "nice one")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if c.Content != "nice one" {
		t.Errorf("content = %q", c.Content)
	}

	var notes []models.Notification
	if err := db.Where("recipient_id = ? AND type = ?", helper.ID, models.NotifyComment).Find(&notes).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}
	if len(notes) != 1 {
		t.Errorf("got %d comment notifications, want 1", len(notes))
	}

	if _, err := remote.Comment(ctx, "9999", uintToID(commenter.ID), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("comment on missing answer err = %v, want ErrNotFound", err)
	}
}

func TestRemoteAnswersListOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	remote := NewRemoteAnswers(db)
	asker := seedProfile(t, db, "asker")
	voter := seedProfile(t, db, "voter")
	q := seedQuestion(t, db, &asker.ID, "Ordered")

	plain, err := remote.Create(ctx, CreateAnswerInput{QuestionID: uintToID(q.ID), Content: "plain"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	voted, err := remote.Create(ctx, CreateAnswerInput{QuestionID: uintToID(q.ID), Content: "voted"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	accepted, err := remote.Create(ctx, CreateAnswerInput{QuestionID: uintToID(q.ID), Content: "accepted"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := remote.Vote(ctx, voted.ID, uintToID(voter.ID), "up"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := remote.Accept(ctx, accepted.ID, uintToID(asker.ID)); err != nil {
		t.Fatalf("accept: %v", err)
	}

	list, err := remote.ListForQuestion(ctx, uintToID(q.ID))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d answers, want 3", len(list))
	}
	if list[0].ID != accepted.ID {
		t.Errorf("first answer = %s, want the accepted one", list[0].Content)
	}
	if list[1].ID != voted.ID {
		t.Errorf("second answer = %s, want the upvoted one", list[1].Content)
	}
	if list[2].ID != plain.ID {
		t.Errorf("third answer = %s, want the plain one", list[2].Content)
	}
}

func TestAnswersServiceOfflineOnlyOperations(t *testing.T) {
	ctx := context.Background()
	local := newTestLocal(t)
	svc := NewAnswers(NewLocalAnswers(local), nil, nil, testLogger())

	if _, err := svc.Accept(ctx, "1", "u1"); !errors.Is(err, ErrOfflineUnavailable) {
		t.Errorf("accept err = %v, want ErrOfflineUnavailable", err)
	}
	if _, err := svc.Vote(ctx, "1", "u1", "up"); !errors.Is(err, ErrOfflineUnavailable) {
		t.Errorf("vote err = %v, want ErrOfflineUnavailable", err)
	}
	if _, err := svc.Comment(ctx, "1", "u1", "hello"); !errors.Is(err, ErrOfflineUnavailable) {
		t.Errorf("comment err = %v, want ErrOfflineUnavailable", err)
	}

	// Guests are rejected before connectivity even matters.
	if _, err := svc.Accept(ctx, "1", ""); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("guest accept err = %v, want ErrAuthRequired", err)
	}
	if _, err := svc.Vote(ctx, "1", "", "up"); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("guest vote err = %v, want ErrAuthRequired", err)
	}
}

func TestAnswersServiceDegradeToFallback(t *testing.T) {
	ctx := context.Background()
	local := newTestLocal(t)
	lq := NewLocalQuestions(local)
	q, err := lq.Create(ctx, CreateQuestionInput{Title: "Offline question", Content: "c"})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}

	primary := failingAnswerStore{err: errors.New("dial tcp: connection refused")}
	svc := NewAnswers(primary, NewLocalAnswers(local), nil, testLogger())

	a, warning, err := svc.Create(ctx, CreateAnswerInput{QuestionID: q.ID, Content: "offline answer"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if warning != warnSavedLocally {
		t.Errorf("create warning = %q, want %q", warning, warnSavedLocally)
	}

	list, warning, err := svc.ListForQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if warning != warnDegraded || len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("degraded list = %d items, warning %q", len(list), warning)
	}
}

func TestLocalAnswersCreateBumpsCachedCount(t *testing.T) {
	ctx := context.Background()
	local := newTestLocal(t)
	lq := NewLocalQuestions(local)
	la := NewLocalAnswers(local)

	q, err := lq.Create(ctx, CreateQuestionInput{Title: "Count me", Content: "c"})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}

	if _, err := la.Create(ctx, CreateAnswerInput{QuestionID: q.ID, Content: "a1"}); err != nil {
		t.Fatalf("create answer: %v", err)
	}
	if _, err := la.Create(ctx, CreateAnswerInput{QuestionID: q.ID, Content: "a2"}); err != nil {
		t.Fatalf("create answer: %v", err)
	}

	got, err := lq.Get(ctx, q.ID)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if got.AnswerCount != 2 {
		t.Errorf("answer_count = %d, want 2", got.AnswerCount)
	}

	if _, err := la.Create(ctx, CreateAnswerInput{QuestionID: "missing", Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("create on missing question err = %v, want ErrNotFound", err)
	}
}

func TestAnswersServiceCreateValidation(t *testing.T) {
	svc := NewAnswers(NewLocalAnswers(newTestLocal(t)), nil, nil, testLogger())
	if _, _, err := svc.Create(context.Background(), CreateAnswerInput{QuestionID: "1", Content: "  "}); err == nil {
		t.Fatal("expected error for empty content")
	}
}
