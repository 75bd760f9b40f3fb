package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/amaglobal/ama/models"
)

// ShareView is the resolved form of a share link: the share settings plus the
// question it points at.
type ShareView struct {
	Code           string        `json:"code"`
	AllowAnonymous bool          `json:"allow_anonymous"`
	RequireAuth    bool          `json:"require_auth"`
	Question       *QuestionView `json:"question"`
}

// Shares manages question share links. Share codes are an online feature: the
// code must resolve for anyone who receives the link, which a single machine's
// local store cannot provide. Offline compositions get ErrOfflineUnavailable.
type Shares struct {
	db  *gorm.DB // nil in offline composition
	log *zap.SugaredLogger
}

// NewShares builds the share service. Pass a nil db for offline mode.
func NewShares(db *gorm.DB, log *zap.SugaredLogger) *Shares {
	return &Shares{db: db, log: log}
}

// Create mints a share code for a question. Only the question's author or a
// moderator may create one.
func (s *Shares) Create(ctx context.Context, questionID, userID string, allowAnonymous, requireAuth bool) (*ShareView, error) {
	if s.db == nil {
		return nil, ErrOfflineUnavailable
	}
	qid, ok := parseUintID(questionID)
	if !ok {
		return nil, ErrNotFound
	}
	uid, ok := parseUintID(userID)
	if !ok {
		return nil, ErrAuthRequired
	}

	var share models.QuestionShare
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Question
		if err := tx.First(&q, qid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var actor models.Profile
		if err := tx.First(&actor, uid).Error; err != nil {
			return ErrAuthRequired
		}
		if !actor.IsModerator && (q.AuthorID == nil || *q.AuthorID != actor.ID) {
			return ErrAuthRequired
		}

		// Reuse an existing code with the same settings instead of minting a
		// new link every time the dialog opens.
		err := tx.Where("question_id = ? AND allow_anonymous = ? AND require_auth = ?",
			q.ID, allowAnonymous, requireAuth).First(&share).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		share = models.QuestionShare{
			QuestionID:     q.ID,
			Code:           newShareCode(),
			CreatedBy:      actor.ID,
			AllowAnonymous: allowAnonymous,
			RequireAuth:    requireAuth,
		}
		return tx.Create(&share).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, share.Code)
}

// Resolve looks a share code up and returns the settings with the question.
func (s *Shares) Resolve(ctx context.Context, code string) (*ShareView, error) {
	if s.db == nil {
		return nil, ErrOfflineUnavailable
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}

	var share models.QuestionShare
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	remote := &RemoteQuestions{db: s.db}
	q, err := remote.Get(ctx, uintToID(share.QuestionID))
	if err != nil {
		return nil, err
	}
	return &ShareView{
		Code:           share.Code,
		AllowAnonymous: share.AllowAnonymous,
		RequireAuth:    share.RequireAuth,
		Question:       &q,
	}, nil
}

// AnswerViaShare posts an answer through a share link, enforcing its
// anonymity and authentication settings. An anonymous submission on a link
// requiring sign-in is a hard error, as is a guest submission when the link
// forbids anonymous answers and no name was given.
func (s *Shares) AnswerViaShare(ctx context.Context, answers *Answers, code, authorID, content string) (*AnswerView, error) {
	if s.db == nil {
		return nil, ErrOfflineUnavailable
	}
	share, err := s.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if authorID == "" {
		if share.RequireAuth || !share.AllowAnonymous {
			return nil, ErrAuthRequired
		}
	}
	view, _, err := answers.Create(ctx, CreateAnswerInput{
		QuestionID: share.Question.ID,
		AuthorID:   authorID,
		Content:    content,
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func newShareCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}
