package store

import (
	"context"
	"errors"
	"testing"

	"github.com/amaglobal/ama/models"
)

func TestSharesOffline(t *testing.T) {
	ctx := context.Background()
	svc := NewShares(nil, testLogger())

	if _, err := svc.Create(ctx, "1", "1", true, false); !errors.Is(err, ErrOfflineUnavailable) {
		t.Errorf("create err = %v, want ErrOfflineUnavailable", err)
	}
	if _, err := svc.Resolve(ctx, "abc"); !errors.Is(err, ErrOfflineUnavailable) {
		t.Errorf("resolve err = %v, want ErrOfflineUnavailable", err)
	}
}

func TestSharesCreateAndResolve(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewShares(db, testLogger())
	author := seedProfile(t, db, "author")
	q := seedQuestion(t, db, &author.ID, "Share me")

	share, err := svc.Create(ctx, uintToID(q.ID), uintToID(author.ID), true, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(share.Code) != 20 {
		t.Errorf("code %q length = %d, want 20", share.Code, len(share.Code))
	}
	if !share.AllowAnonymous || share.RequireAuth {
		t.Errorf("share settings = %+v", share)
	}
	if share.Question == nil || share.Question.Title != "Share me" {
		t.Fatalf("resolved question = %+v", share.Question)
	}

	// Creating again with the same settings reuses the existing code.
	again, err := svc.Create(ctx, uintToID(q.ID), uintToID(author.ID), true, false)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if again.Code != share.Code {
		t.Errorf("same settings minted new code %q", again.Code)
	}

	// Different settings get their own code.
	strict, err := svc.Create(ctx, uintToID(q.ID), uintToID(author.ID), false, true)
	if err != nil {
		t.Fatalf("create strict: %v", err)
	}
	if strict.Code == share.Code {
		t.Error("different settings reused the same code")
	}

	resolved, err := svc.Resolve(ctx, share.Code)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Question.ID != uintToID(q.ID) {
		t.Errorf("resolved question id = %q", resolved.Question.ID)
	}

	if _, err := svc.Resolve(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("resolve unknown err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Resolve(ctx, "  "); !errors.Is(err, ErrNotFound) {
		t.Errorf("resolve blank err = %v, want ErrNotFound", err)
	}
}

func TestSharesCreatePermissions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewShares(db, testLogger())
	author := seedProfile(t, db, "author")
	stranger := seedProfile(t, db, "stranger")
	mod := seedModerator(t, db, "mod")
	q := seedQuestion(t, db, &author.ID, "Guarded share")

	if _, err := svc.Create(ctx, uintToID(q.ID), uintToID(stranger.ID), true, false); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("stranger create err = %v, want ErrAuthRequired", err)
	}
	if _, err := svc.Create(ctx, uintToID(q.ID), uintToID(mod.ID), true, false); err != nil {
		t.Errorf("moderator create: %v", err)
	}
	if _, err := svc.Create(ctx, "9999", uintToID(author.ID), true, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing question err = %v, want ErrNotFound", err)
	}
}

func TestAnswerViaShare(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	shares := NewShares(db, testLogger())
	remote := NewRemoteAnswers(db)
	answers := NewAnswers(remote, nil, remote, testLogger())

	author := seedProfile(t, db, "author")
	respondent := seedProfile(t, db, "respondent")
	q := seedQuestion(t, db, &author.ID, "Answer via link")

	open, err := shares.Create(ctx, uintToID(q.ID), uintToID(author.ID), true, false)
	if err != nil {
		t.Fatalf("create open share: %v", err)
	}
	strict, err := shares.Create(ctx, uintToID(q.ID), uintToID(author.ID), false, true)
	if err != nil {
		t.Fatalf("create strict share: %v", err)
	}

	// Anonymous answering through the permissive link works.
	a, err := shares.AnswerViaShare(ctx, answers, open.Code, "", "guest answer")
	if err != nil {
		t.Fatalf("anonymous answer: %v", err)
	}
	if a.AuthorID != "" {
		t.Errorf("anonymous answer has author %q", a.AuthorID)
	}

	// The strict link rejects anonymous submissions.
	if _, err := shares.AnswerViaShare(ctx, answers, strict.Code, "", "sneaky"); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("strict anonymous err = %v, want ErrAuthRequired", err)
	}

	// Signed-in respondents pass the strict link.
	signed, err := shares.AnswerViaShare(ctx, answers, strict.Code, uintToID(respondent.ID), "signed answer")
	if err != nil {
		t.Fatalf("signed answer: %v", err)
	}
	if signed.AuthorID != uintToID(respondent.ID) {
		t.Errorf("signed answer author = %q", signed.AuthorID)
	}

	var reloaded models.Question
	if err := db.First(&reloaded, q.ID).Error; err != nil {
		t.Fatalf("reload question: %v", err)
	}
	if reloaded.AnswerCount != 2 {
		t.Errorf("answer_count = %d, want 2", reloaded.AnswerCount)
	}

	if _, err := shares.AnswerViaShare(ctx, answers, "badcode", "", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("bad code err = %v, want ErrNotFound", err)
	}
}
