package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/amaglobal/ama/models"
	"github.com/amaglobal/ama/utils"
)

// CreateAnswerInput carries a new answer. AuthorID is empty for share-code
// respondents answering anonymously.
type CreateAnswerInput struct {
	QuestionID string
	AuthorID   string
	Content    string
}

// AnswerStore is the storage port for answer reads and creation. Acceptance,
// answer votes and comments exist only on the remote implementation: the local
// store is append-only for answers and has no way to flip flags on existing
// rows.
type AnswerStore interface {
	ListForQuestion(ctx context.Context, questionID string) ([]AnswerView, error)
	Create(ctx context.Context, in CreateAnswerInput) (AnswerView, error)
}

// Answers serves answers with the same primary/fallback composition as
// Questions.
type Answers struct {
	primary  AnswerStore
	fallback AnswerStore
	remote   *RemoteAnswers // nil in offline composition
	log      *zap.SugaredLogger
}

// NewAnswers builds the answer service. remote and fallback may be nil
// depending on composition.
func NewAnswers(primary, fallback AnswerStore, remote *RemoteAnswers, log *zap.SugaredLogger) *Answers {
	return &Answers{primary: primary, fallback: fallback, remote: remote, log: log}
}

// ListForQuestion lists a question's answers, degrading to the fallback store
// with a warning on primary failure.
func (s *Answers) ListForQuestion(ctx context.Context, questionID string) ([]AnswerView, string, error) {
	items, err := s.primary.ListForQuestion(ctx, questionID)
	if err == nil {
		return items, "", nil
	}
	if s.fallback == nil {
		return nil, "", err
	}
	s.log.Warnf("answer load failed, degrading to local store: %v", err)
	items, ferr := s.fallback.ListForQuestion(ctx, questionID)
	if ferr != nil {
		return nil, "", ferr
	}
	return items, warnDegraded, nil
}

// Create stores a new answer, degrading to a local insert on primary failure.
func (s *Answers) Create(ctx context.Context, in CreateAnswerInput) (AnswerView, string, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return AnswerView{}, "", fmt.Errorf("content cannot be empty")
	}

	a, err := s.primary.Create(ctx, in)
	if err == nil {
		return a, "", nil
	}
	if err == ErrNotFound || s.fallback == nil {
		return AnswerView{}, "", err
	}
	s.log.Warnf("answer create failed, degrading to local store: %v", err)
	a, ferr := s.fallback.Create(ctx, in)
	if ferr != nil {
		return AnswerView{}, "", ferr
	}
	return a, warnSavedLocally, nil
}

// Accept toggles acceptance of an answer. Only the question's author or a
// moderator may accept. Unavailable offline.
func (s *Answers) Accept(ctx context.Context, answerID, actorID string) (AnswerView, error) {
	if actorID == "" {
		return AnswerView{}, ErrAuthRequired
	}
	if s.remote == nil {
		return AnswerView{}, ErrOfflineUnavailable
	}
	return s.remote.Accept(ctx, answerID, actorID)
}

// Vote records a vote on an answer. Unavailable offline.
func (s *Answers) Vote(ctx context.Context, answerID, userID, direction string) (AnswerView, error) {
	if userID == "" {
		return AnswerView{}, ErrAuthRequired
	}
	if direction != "up" && direction != "down" {
		return AnswerView{}, ErrInvalidDirection
	}
	if s.remote == nil {
		return AnswerView{}, ErrOfflineUnavailable
	}
	return s.remote.Vote(ctx, answerID, userID, direction)
}

// Comment adds a comment to an answer. Unavailable offline.
func (s *Answers) Comment(ctx context.Context, answerID, authorID, content string) (models.Comment, error) {
	if authorID == "" {
		return models.Comment{}, ErrAuthRequired
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, fmt.Errorf("content cannot be empty")
	}
	if s.remote == nil {
		return models.Comment{}, ErrOfflineUnavailable
	}
	return s.remote.Comment(ctx, answerID, authorID, content)
}

// RemoteAnswers implements AnswerStore plus the online-only operations.
type RemoteAnswers struct {
	db *gorm.DB
}

// NewRemoteAnswers wraps a gorm handle in the answer port.
func NewRemoteAnswers(db *gorm.DB) *RemoteAnswers {
	return &RemoteAnswers{db: db}
}

func (r *RemoteAnswers) ListForQuestion(ctx context.Context, questionID string) ([]AnswerView, error) {
	qid, ok := parseUintID(questionID)
	if !ok {
		return nil, ErrNotFound
	}
	var answers []models.Answer
	if err := r.db.WithContext(ctx).
		Where("question_id = ?", qid).
		Order("is_accepted DESC, votes DESC, created_at ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}

	// Authors matched in code, same as questions: author_id is nullable.
	ids := make([]uint, 0, len(answers))
	for _, a := range answers {
		if a.AuthorID != nil {
			ids = append(ids, *a.AuthorID)
		}
	}
	if len(ids) > 0 {
		var authors []models.Profile
		if err := r.db.WithContext(ctx).Find(&authors, utils.UniqueUint(ids)).Error; err != nil {
			return nil, err
		}
		byID := make(map[uint]models.Profile, len(authors))
		for _, a := range authors {
			byID[a.ID] = a
		}
		for i := range answers {
			if answers[i].AuthorID == nil {
				continue
			}
			if a, ok := byID[*answers[i].AuthorID]; ok {
				author := a
				answers[i].Author = &author
			}
		}
	}

	views := make([]AnswerView, 0, len(answers))
	for _, a := range answers {
		views = append(views, answerView(a))
	}
	return views, nil
}

func (r *RemoteAnswers) Create(ctx context.Context, in CreateAnswerInput) (AnswerView, error) {
	qid, ok := parseUintID(in.QuestionID)
	if !ok {
		return AnswerView{}, ErrNotFound
	}

	a := models.Answer{QuestionID: qid, Content: in.Content}
	if in.AuthorID != "" {
		uid, ok := parseUintID(in.AuthorID)
		if !ok {
			return AnswerView{}, errors.New("invalid author id")
		}
		a.AuthorID = &uid
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Question
		if err := tx.First(&q, qid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Create(&a).Error; err != nil {
			return err
		}
		// Tell the question author; counters ride on the insert trigger.
		if q.AuthorID != nil && (a.AuthorID == nil || *a.AuthorID != *q.AuthorID) {
			n := models.Notification{
				RecipientID: *q.AuthorID,
				Type:        models.NotifyAnswer,
				TargetID:    q.ID,
				TargetType:  models.TargetQuestion,
				Message:     "Your question received a new answer",
			}
			if a.AuthorID != nil {
				n.ActorID = *a.AuthorID
			}
			if err := tx.Create(&n).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return AnswerView{}, err
	}

	if a.AuthorID != nil {
		var author models.Profile
		if err := r.db.WithContext(ctx).First(&author, *a.AuthorID).Error; err == nil {
			a.Author = &author
		}
	}
	return answerView(a), nil
}

// Accept toggles the accepted flag. Exclusivity is enforced with conditional
// updates inside one transaction: any previously accepted answer for the same
// question is cleared before the new one is set, so two concurrent accepts
// cannot leave two accepted answers.
func (r *RemoteAnswers) Accept(ctx context.Context, answerID, actorID string) (AnswerView, error) {
	aid, ok := parseUintID(answerID)
	if !ok {
		return AnswerView{}, ErrNotFound
	}
	actor, ok := parseUintID(actorID)
	if !ok {
		return AnswerView{}, ErrAuthRequired
	}

	var out models.Answer
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Answer
		if err := tx.First(&a, aid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var q models.Question
		if err := tx.First(&q, a.QuestionID).Error; err != nil {
			return err
		}

		allowed := q.AuthorID != nil && *q.AuthorID == actor
		if !allowed {
			var p models.Profile
			if err := tx.First(&p, actor).Error; err == nil && p.IsModerator {
				allowed = true
			}
		}
		if !allowed {
			return fmt.Errorf("only the question author can accept an answer")
		}

		if a.IsAccepted {
			// Toggle off.
			if err := tx.Model(&models.Answer{}).
				Where("id = ? AND is_accepted = ?", a.ID, true).
				Update("is_accepted", false).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(&models.Answer{}).
				Where("question_id = ? AND is_accepted = ? AND id <> ?", q.ID, true, a.ID).
				Update("is_accepted", false).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Answer{}).
				Where("id = ? AND is_accepted = ?", a.ID, false).
				Update("is_accepted", true).Error; err != nil {
				return err
			}
			if a.AuthorID != nil && *a.AuthorID != actor {
				if err := tx.Create(&models.Notification{
					RecipientID: *a.AuthorID,
					ActorID:     actor,
					Type:        models.NotifyAccepted,
					TargetID:    a.ID,
					TargetType:  models.TargetAnswer,
					Message:     "Your answer was accepted",
				}).Error; err != nil {
					return err
				}
			}
		}
		return tx.First(&out, aid).Error
	})
	if err != nil {
		return AnswerView{}, err
	}
	return answerView(out), nil
}

// Vote mirrors the question vote procedure for answers.
func (r *RemoteAnswers) Vote(ctx context.Context, answerID, userID, direction string) (AnswerView, error) {
	aid, ok := parseUintID(answerID)
	if !ok {
		return AnswerView{}, ErrNotFound
	}
	uid, ok := parseUintID(userID)
	if !ok {
		return AnswerView{}, ErrAuthRequired
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Answer
		if err := tx.First(&a, aid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var existing int64
		if err := tx.Model(&models.Vote{}).
			Where("user_id = ? AND target_id = ? AND target_type = ?", uid, aid, models.TargetAnswer).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		return tx.Create(&models.Vote{
			UserID:     uid,
			TargetID:   aid,
			TargetType: models.TargetAnswer,
			Direction:  direction,
		}).Error
	})
	if err != nil {
		return AnswerView{}, err
	}

	var a models.Answer
	if err := r.db.WithContext(ctx).First(&a, aid).Error; err != nil {
		return AnswerView{}, err
	}
	return answerView(a), nil
}

func (r *RemoteAnswers) Comment(ctx context.Context, answerID, authorID, content string) (models.Comment, error) {
	aid, ok := parseUintID(answerID)
	if !ok {
		return models.Comment{}, ErrNotFound
	}
	uid, ok := parseUintID(authorID)
	if !ok {
		return models.Comment{}, ErrAuthRequired
	}

	var c models.Comment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Answer
		if err := tx.First(&a, aid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		c = models.Comment{AnswerID: aid, AuthorID: uid, Content: content}
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		if a.AuthorID != nil && *a.AuthorID != uid {
			return tx.Create(&models.Notification{
				RecipientID: *a.AuthorID,
				ActorID:     uid,
				Type:        models.NotifyComment,
				TargetID:    a.ID,
				TargetType:  models.TargetAnswer,
				Message:     "Your answer received a new comment",
			}).Error
		}
		return nil
	})
	return c, err
}

// LocalAnswers implements AnswerStore over the local JSON store.
type LocalAnswers struct {
	store *LocalStore
}

// NewLocalAnswers wraps a LocalStore in the answer port.
func NewLocalAnswers(store *LocalStore) *LocalAnswers {
	return &LocalAnswers{store: store}
}

func (l *LocalAnswers) ListForQuestion(ctx context.Context, questionID string) ([]AnswerView, error) {
	answers, err := l.store.Answers()
	if err != nil {
		return nil, err
	}
	users, err := l.store.Users()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]LocalUser, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	views := make([]AnswerView, 0)
	for _, a := range answers {
		if a.QuestionID != questionID {
			continue
		}
		v := localAnswerView(a)
		if a.AuthorID != "" {
			if u, ok := byID[a.AuthorID]; ok {
				v.Author = localUserView(u)
			}
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.Before(views[j].CreatedAt) })
	return views, nil
}

// Create appends the answer and adjusts the parent question's cached
// answer_count by overwriting the questions collection, standing in for the
// insert trigger that the remote store relies on.
func (l *LocalAnswers) Create(ctx context.Context, in CreateAnswerInput) (AnswerView, error) {
	questions, err := l.store.Questions()
	if err != nil {
		return AnswerView{}, err
	}
	idx := -1
	for i, q := range questions {
		if q.ID == in.QuestionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return AnswerView{}, ErrNotFound
	}

	a, err := l.store.SaveAnswer(LocalAnswer{
		QuestionID: in.QuestionID,
		AuthorID:   in.AuthorID,
		Content:    in.Content,
	})
	if err != nil {
		return AnswerView{}, err
	}

	questions[idx].AnswerCount++
	questions[idx].UpdatedAt = nowISO()
	if err := l.store.ReplaceQuestions(questions); err != nil {
		return AnswerView{}, err
	}
	return localAnswerView(a), nil
}

func localAnswerView(a LocalAnswer) AnswerView {
	created, _ := time.Parse(time.RFC3339, a.CreatedAt)
	return AnswerView{
		ID:         a.ID,
		QuestionID: a.QuestionID,
		AuthorID:   a.AuthorID,
		Content:    a.Content,
		Votes:      a.Votes,
		IsAccepted: a.IsAccepted,
		CreatedAt:  created,
	}
}
