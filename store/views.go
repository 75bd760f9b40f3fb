package store

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/amaglobal/ama/models"
)

// Errors surfaced to callers as hard failures. Anything else coming out of the
// remote path is a soft degradation handled by the fallback layer.
var (
	ErrAuthRequired       = errors.New("authentication required")
	ErrNotFound           = errors.New("not found")
	ErrInvalidDirection   = errors.New("vote direction must be up or down")
	ErrOfflineUnavailable = errors.New("operation unavailable in offline mode")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// UserView is the unified read model for a profile regardless of which store
// it came from. IDs are strings because the local store synthesizes
// offline_<ts>_<suffix> identifiers while the remote store uses numeric keys.
type UserView struct {
	ID                   string `json:"id"`
	Username             string `json:"username"`
	Email                string `json:"email"`
	DisplayName          string `json:"display_name"`
	AvatarURL            string `json:"avatar_url"`
	Bio                  string `json:"bio"`
	Reputation           int    `json:"reputation"`
	IsModerator          bool   `json:"is_moderator"`
	QuestionsCount       int    `json:"questions_count"`
	AnswersCount         int    `json:"answers_count"`
	AcceptedAnswersCount int    `json:"accepted_answers_count"`
	FollowersCount       int    `json:"followers_count"`
	FollowingCount       int    `json:"following_count"`
	CreatedAt            string `json:"created_at"`
}

// QuestionView is the unified read model served to the UI. Author is attached
// by joining against profiles after the question rows are loaded; questions
// without an author (guest or anonymous) simply carry a nil Author.
type QuestionView struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id,omitempty"`
	AskerName   string    `json:"asker_name,omitempty"`
	IsAnonymous bool      `json:"is_anonymous"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Tags        []string  `json:"tags"`
	Votes       int       `json:"votes"`
	AnswerCount int       `json:"answer_count"`
	IsAnswered  bool      `json:"is_answered"`
	IsFeatured  bool      `json:"is_featured"`
	CreatedAt   time.Time `json:"created_at"`
	Author      *UserView `json:"author,omitempty"`
}

// AnswerView mirrors QuestionView for answers.
type AnswerView struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	AuthorID   string    `json:"author_id,omitempty"`
	Content    string    `json:"content"`
	Votes      int       `json:"votes"`
	IsAccepted bool      `json:"is_accepted"`
	CreatedAt  time.Time `json:"created_at"`
	Author     *UserView `json:"author,omitempty"`
}

// CreateQuestionInput carries the ask-question form. AuthorID is empty for
// guests; normalizeAttribution decides the final stored attribution.
type CreateQuestionInput struct {
	Title       string
	Content     string
	Tags        []string
	AskerName   string
	IsAnonymous bool
	AuthorID    string
}

// normalizeAttribution applies the attribution invariant: anonymous questions
// carry neither an author nor an asker name; authenticated questions carry
// only the author; remaining guest questions keep the self-reported name.
func normalizeAttribution(in *CreateQuestionInput) {
	if in.IsAnonymous {
		in.AuthorID = ""
		in.AskerName = ""
		return
	}
	if in.AuthorID != "" {
		in.AskerName = ""
	}
}

func splitTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func joinTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}

func profileView(p models.Profile) *UserView {
	return &UserView{
		ID:                   strconv.FormatUint(uint64(p.ID), 10),
		Username:             p.Username,
		Email:                p.Email,
		DisplayName:          p.DisplayName,
		AvatarURL:            p.AvatarURL,
		Bio:                  p.Bio,
		Reputation:           p.Reputation,
		IsModerator:          p.IsModerator,
		QuestionsCount:       p.QuestionsCount,
		AnswersCount:         p.AnswersCount,
		AcceptedAnswersCount: p.AcceptedAnswersCount,
		FollowersCount:       p.FollowersCount,
		FollowingCount:       p.FollowingCount,
		CreatedAt:            p.CreatedAt.Format(time.RFC3339),
	}
}

func questionView(q models.Question) QuestionView {
	v := QuestionView{
		ID:          strconv.FormatUint(uint64(q.ID), 10),
		AskerName:   q.AskerName,
		IsAnonymous: q.IsAnonymous,
		Title:       q.Title,
		Content:     q.Content,
		Tags:        splitTags(q.Tags),
		Votes:       q.Votes,
		AnswerCount: q.AnswerCount,
		IsAnswered:  q.IsAnswered,
		IsFeatured:  q.IsFeatured,
		CreatedAt:   q.CreatedAt,
	}
	if q.AuthorID != nil {
		v.AuthorID = strconv.FormatUint(uint64(*q.AuthorID), 10)
	}
	if q.Author != nil {
		v.Author = profileView(*q.Author)
	}
	return v
}

func answerView(a models.Answer) AnswerView {
	v := AnswerView{
		ID:         strconv.FormatUint(uint64(a.ID), 10),
		QuestionID: strconv.FormatUint(uint64(a.QuestionID), 10),
		Content:    a.Content,
		Votes:      a.Votes,
		IsAccepted: a.IsAccepted,
		CreatedAt:  a.CreatedAt,
	}
	if a.AuthorID != nil {
		v.AuthorID = strconv.FormatUint(uint64(*a.AuthorID), 10)
	}
	if a.Author != nil {
		v.Author = profileView(*a.Author)
	}
	return v
}

func uintToID(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}

func parseUintID(id string) (uint, bool) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}
