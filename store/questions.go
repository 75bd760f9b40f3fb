package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ListOptions narrows a question listing. Zero value lists everything.
// AuthorUsername never matches anonymous questions: their attribution is
// stripped at creation, so no author filter can surface them.
type ListOptions struct {
	Search         string
	Tag            string
	AuthorUsername string
}

// QuestionStore is the storage port for the question repository. Two
// implementations exist: RemoteQuestions (GORM) and LocalQuestions (JSON
// key/value files). The serving implementation is chosen once at composition
// time; operations never branch on connectivity internally.
type QuestionStore interface {
	Load(ctx context.Context, opts ListOptions) ([]QuestionView, error)
	Get(ctx context.Context, id string) (QuestionView, error)
	Create(ctx context.Context, in CreateQuestionInput) (QuestionView, error)
	Vote(ctx context.Context, questionID, userID, direction string) (QuestionView, error)
}

// Questions serves question reads and writes from the primary store and, when
// a fallback is configured, degrades to it on any primary failure. The
// degradation is reported through the warning return, never as an error: the
// design favors availability over strict consistency, and a write accepted by
// the fallback has no sync-back path.
type Questions struct {
	primary  QuestionStore
	fallback QuestionStore
	log      *zap.SugaredLogger
}

// NewQuestions builds the repository. fallback may be nil when the primary is
// already the local store.
func NewQuestions(primary, fallback QuestionStore, log *zap.SugaredLogger) *Questions {
	return &Questions{primary: primary, fallback: fallback, log: log}
}

const warnDegraded = "remote backend unreachable, showing locally saved data"
const warnSavedLocally = "remote backend unreachable, saved locally only"

// Load lists questions. On primary failure with a fallback configured, the
// result comes from the fallback and carries a non-blocking warning.
func (s *Questions) Load(ctx context.Context, opts ListOptions) ([]QuestionView, string, error) {
	items, err := s.primary.Load(ctx, opts)
	if err == nil {
		return items, "", nil
	}
	if s.fallback == nil {
		return nil, "", err
	}
	s.log.Warnf("question load failed, degrading to local store: %v", err)
	items, ferr := s.fallback.Load(ctx, opts)
	if ferr != nil {
		return nil, "", ferr
	}
	return items, warnDegraded, nil
}

// Get returns one question by id, with the same degrade behavior as Load.
func (s *Questions) Get(ctx context.Context, id string) (QuestionView, string, error) {
	q, err := s.primary.Get(ctx, id)
	if err == nil {
		return q, "", nil
	}
	if err == ErrNotFound || s.fallback == nil {
		return QuestionView{}, "", err
	}
	s.log.Warnf("question get failed, degrading to local store: %v", err)
	q, ferr := s.fallback.Get(ctx, id)
	if ferr != nil {
		return QuestionView{}, "", ferr
	}
	return q, warnDegraded, nil
}

// Create validates and stores a new question. Attribution is normalized before
// either store sees the input. Primary failure degrades to a local insert.
func (s *Questions) Create(ctx context.Context, in CreateQuestionInput) (QuestionView, string, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return QuestionView{}, "", fmt.Errorf("title cannot be empty")
	}
	normalizeAttribution(&in)

	q, err := s.primary.Create(ctx, in)
	if err == nil {
		return q, "", nil
	}
	if s.fallback == nil {
		return QuestionView{}, "", err
	}
	s.log.Warnf("question create failed, degrading to local store: %v", err)
	q, ferr := s.fallback.Create(ctx, in)
	if ferr != nil {
		return QuestionView{}, "", ferr
	}
	return q, warnSavedLocally, nil
}

// Vote records an up/down vote. Guests cannot vote: ErrAuthRequired is a hard
// error raised before any store is consulted. Primary failure degrades to the
// local vote path.
func (s *Questions) Vote(ctx context.Context, questionID, userID, direction string) (QuestionView, string, error) {
	if userID == "" {
		return QuestionView{}, "", ErrAuthRequired
	}
	if direction != "up" && direction != "down" {
		return QuestionView{}, "", ErrInvalidDirection
	}

	q, err := s.primary.Vote(ctx, questionID, userID, direction)
	if err == nil {
		return q, "", nil
	}
	if err == ErrNotFound || s.fallback == nil {
		return QuestionView{}, "", err
	}
	s.log.Warnf("question vote failed, degrading to local store: %v", err)
	q, ferr := s.fallback.Vote(ctx, questionID, userID, direction)
	if ferr != nil {
		return QuestionView{}, "", ferr
	}
	return q, warnSavedLocally, nil
}

// LocalQuestions implements QuestionStore over the local JSON store.
type LocalQuestions struct {
	store *LocalStore
}

// NewLocalQuestions wraps a LocalStore in the question port.
func NewLocalQuestions(store *LocalStore) *LocalQuestions {
	return &LocalQuestions{store: store}
}

func (l *LocalQuestions) Load(ctx context.Context, opts ListOptions) ([]QuestionView, error) {
	questions, err := l.store.Questions()
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

	views := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		if !matchesOptions(q, opts) {
			continue
		}
		v := localQuestionView(q)
		if q.AuthorID != "" {
			if u, ok := byID[q.AuthorID]; ok {
				v.Author = localUserView(u)
			}
		}
		if opts.AuthorUsername != "" {
			if v.Author == nil || !strings.EqualFold(v.Author.Username, opts.AuthorUsername) {
				continue
			}
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.After(views[j].CreatedAt) })
	return views, nil
}

func (l *LocalQuestions) Get(ctx context.Context, id string) (QuestionView, error) {
	views, err := l.Load(ctx, ListOptions{})
	if err != nil {
		return QuestionView{}, err
	}
	for _, v := range views {
		if v.ID == id {
			return v, nil
		}
	}
	return QuestionView{}, ErrNotFound
}

func (l *LocalQuestions) Create(ctx context.Context, in CreateQuestionInput) (QuestionView, error) {
	q, err := l.store.SaveQuestion(LocalQuestion{
		AuthorID:    in.AuthorID,
		AskerName:   in.AskerName,
		IsAnonymous: in.IsAnonymous,
		Title:       in.Title,
		Content:     in.Content,
		Tags:        joinTags(in.Tags),
	})
	if err != nil {
		return QuestionView{}, err
	}
	v := localQuestionView(q)
	if q.AuthorID != "" {
		users, err := l.store.Users()
		if err == nil {
			for _, u := range users {
				if u.ID == q.AuthorID {
					v.Author = localUserView(u)
					break
				}
			}
		}
	}
	return v, nil
}

// Vote records a vote locally. A repeated same-direction vote from the same
// user is a no-op rather than a retraction; the counter on the cached question
// is adjusted directly since no triggers exist here.
func (l *LocalQuestions) Vote(ctx context.Context, questionID, userID, direction string) (QuestionView, error) {
	questions, err := l.store.Questions()
	if err != nil {
		return QuestionView{}, err
	}
	idx := -1
	for i, q := range questions {
		if q.ID == questionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return QuestionView{}, ErrNotFound
	}

	votes, err := l.store.Votes()
	if err != nil {
		return QuestionView{}, err
	}
	for _, v := range votes {
		if v.UserID == userID && v.TargetID == questionID && v.TargetType == "question" && v.Direction == direction {
			return localQuestionView(questions[idx]), nil
		}
	}

	if _, err := l.store.SaveVote(LocalVote{
		UserID:     userID,
		TargetID:   questionID,
		TargetType: "question",
		Direction:  direction,
	}); err != nil {
		return QuestionView{}, err
	}

	if direction == "up" {
		questions[idx].Votes++
	} else {
		questions[idx].Votes--
	}
	questions[idx].UpdatedAt = nowISO()
	if err := l.store.ReplaceQuestions(questions); err != nil {
		return QuestionView{}, err
	}
	return localQuestionView(questions[idx]), nil
}

func matchesOptions(q LocalQuestion, opts ListOptions) bool {
	if opts.Search != "" {
		needle := strings.ToLower(opts.Search)
		if !strings.Contains(strings.ToLower(q.Title), needle) &&
			!strings.Contains(strings.ToLower(q.Content), needle) {
			return false
		}
	}
	if opts.Tag != "" {
		found := false
		for _, t := range splitTags(q.Tags) {
			if strings.EqualFold(t, opts.Tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func localQuestionView(q LocalQuestion) QuestionView {
	created, _ := time.Parse(time.RFC3339, q.CreatedAt)
	return QuestionView{
		ID:          q.ID,
		AuthorID:    q.AuthorID,
		AskerName:   q.AskerName,
		IsAnonymous: q.IsAnonymous,
		Title:       q.Title,
		Content:     q.Content,
		Tags:        splitTags(q.Tags),
		Votes:       q.Votes,
		AnswerCount: q.AnswerCount,
		IsAnswered:  q.IsAnswered,
		CreatedAt:   created,
	}
}

func localUserView(u LocalUser) *UserView {
	return &UserView{
		ID:                   u.ID,
		Username:             u.Username,
		Email:                u.Email,
		DisplayName:          u.DisplayName,
		AvatarURL:            u.AvatarURL,
		Bio:                  u.Bio,
		Reputation:           u.Reputation,
		IsModerator:          u.IsModerator,
		QuestionsCount:       u.QuestionsCount,
		AnswersCount:         u.AnswersCount,
		AcceptedAnswersCount: u.AcceptedAnswersCount,
		FollowersCount:       u.FollowersCount,
		FollowingCount:       u.FollowingCount,
		CreatedAt:            u.CreatedAt,
	}
}
