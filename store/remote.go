package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/amaglobal/ama/models"
	"github.com/amaglobal/ama/utils"
)

// RemoteQuestions implements QuestionStore over the relational backend.
type RemoteQuestions struct {
	db *gorm.DB
}

// NewRemoteQuestions wraps a gorm handle in the question port.
func NewRemoteQuestions(db *gorm.DB) *RemoteQuestions {
	return &RemoteQuestions{db: db}
}

// Load lists questions newest first. Author profiles are fetched in a second
// query and matched in code: not every question has an author, so a join would
// either drop guest rows or force an outer join through the ORM for no gain.
func (r *RemoteQuestions) Load(ctx context.Context, opts ListOptions) ([]QuestionView, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if opts.Search != "" {
		like := "%" + opts.Search + "%"
		query = query.Where("title LIKE ? OR content LIKE ?", like, like)
	}
	if opts.Tag != "" {
		query = query.Where("FIND_IN_SET(?, tags) > 0", opts.Tag)
	}
	if opts.AuthorUsername != "" {
		var author models.Profile
		err := r.db.WithContext(ctx).Where("username = ?", opts.AuthorUsername).First(&author).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return []QuestionView{}, nil
			}
			return nil, err
		}
		query = query.Where("author_id = ?", author.ID)
	}

	var questions []models.Question
	if err := query.Find(&questions).Error; err != nil {
		return nil, err
	}

	if err := r.attachAuthors(ctx, questions); err != nil {
		return nil, err
	}

	views := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, questionView(q))
	}
	return views, nil
}

func (r *RemoteQuestions) Get(ctx context.Context, id string) (QuestionView, error) {
	qid, ok := parseUintID(id)
	if !ok {
		return QuestionView{}, ErrNotFound
	}
	var q models.Question
	if err := r.db.WithContext(ctx).First(&q, qid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return QuestionView{}, ErrNotFound
		}
		return QuestionView{}, err
	}
	single := []models.Question{q}
	if err := r.attachAuthors(ctx, single); err != nil {
		return QuestionView{}, err
	}
	return questionView(single[0]), nil
}

// Create inserts the question and re-fetches the author profile to attach to
// the returned view; the insert alone does not include the join.
func (r *RemoteQuestions) Create(ctx context.Context, in CreateQuestionInput) (QuestionView, error) {
	q := models.Question{
		AskerName:   in.AskerName,
		IsAnonymous: in.IsAnonymous,
		Title:       in.Title,
		Content:     in.Content,
		Tags:        joinTags(in.Tags),
	}
	if in.AuthorID != "" {
		id, ok := parseUintID(in.AuthorID)
		if !ok {
			return QuestionView{}, errors.New("invalid author id")
		}
		q.AuthorID = &id
	}

	if err := r.db.WithContext(ctx).Create(&q).Error; err != nil {
		return QuestionView{}, err
	}

	if q.AuthorID != nil {
		var author models.Profile
		if err := r.db.WithContext(ctx).First(&author, *q.AuthorID).Error; err == nil {
			q.Author = &author
		}
	}
	return questionView(q), nil
}

// Vote runs the atomic vote procedure: inside one transaction a per-user dedup
// check guards the vote insert, and the counter adjustment rides on the insert
// trigger. A second vote of any direction from the same user is a no-op.
func (r *RemoteQuestions) Vote(ctx context.Context, questionID, userID, direction string) (QuestionView, error) {
	qid, ok := parseUintID(questionID)
	if !ok {
		return QuestionView{}, ErrNotFound
	}
	uid, ok := parseUintID(userID)
	if !ok {
		return QuestionView{}, ErrAuthRequired
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Question
		if err := tx.First(&q, qid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var existing int64
		if err := tx.Model(&models.Vote{}).
			Where("user_id = ? AND target_id = ? AND target_type = ?", uid, qid, models.TargetQuestion).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		return tx.Create(&models.Vote{
			UserID:     uid,
			TargetID:   qid,
			TargetType: models.TargetQuestion,
			Direction:  direction,
		}).Error
	})
	if err != nil {
		return QuestionView{}, err
	}

	// Reload: counters changed underneath via trigger.
	return r.Get(ctx, questionID)
}

func (r *RemoteQuestions) attachAuthors(ctx context.Context, questions []models.Question) error {
	ids := make([]uint, 0, len(questions))
	for _, q := range questions {
		if q.AuthorID != nil {
			ids = append(ids, *q.AuthorID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	ids = utils.UniqueUint(ids)

	var authors []models.Profile
	if err := r.db.WithContext(ctx).Find(&authors, ids).Error; err != nil {
		return err
	}
	byID := make(map[uint]models.Profile, len(authors))
	for _, a := range authors {
		byID[a.ID] = a
	}
	for i := range questions {
		if questions[i].AuthorID == nil {
			continue
		}
		if a, ok := byID[*questions[i].AuthorID]; ok {
			author := a
			questions[i].Author = &author
		}
	}
	return nil
}
