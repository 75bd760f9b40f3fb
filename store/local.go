package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Storage keys mirrored from the browser build. Each key holds one wholesale
// JSON document (an array for collections, an object for the session keys).
const (
	KeyUsers       = "offline_users"
	KeyQuestions   = "offline_questions"
	KeyAnswers     = "offline_answers"
	KeyVotes       = "offline_votes"
	KeyCurrentUser = "offline_current_user"
	KeyCachedUser  = "ama_cached_user"
	KeyOfflineMode = "ama_offline_mode"

	keyProfileSetupPrefix = "profile_setup_"
)

// LocalUser is the local-store persisted form of a profile.
type LocalUser struct {
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
	UpdatedAt            string `json:"updated_at"`
}

// LocalQuestion is the local-store persisted form of a question.
type LocalQuestion struct {
	ID          string `json:"id"`
	AuthorID    string `json:"author_id,omitempty"`
	AskerName   string `json:"asker_name,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Tags        string `json:"tags"`
	Votes       int    `json:"votes"`
	AnswerCount int    `json:"answer_count"`
	IsAnswered  bool   `json:"is_answered"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// LocalAnswer is the local-store persisted form of an answer.
type LocalAnswer struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	AuthorID   string `json:"author_id,omitempty"`
	Content    string `json:"content"`
	Votes      int    `json:"votes"`
	IsAccepted bool   `json:"is_accepted"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// LocalVote is the local-store persisted form of a vote.
type LocalVote struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	TargetID   string `json:"target_id"`
	TargetType string `json:"target_type"`
	Direction  string `json:"direction"`
	CreatedAt  string `json:"created_at"`
}

// LocalStore emulates the browser's key/value storage with one JSON file per
// key under a data directory. Reads and writes are wholesale: collections are
// loaded and saved as complete arrays, never patched in place.
//
// The adapter is deliberately create-focused. There are no generic update or
// delete operations for questions and answers; the repository overwrites a
// whole collection when a counter must change.
type LocalStore struct {
	dir string
	mu  sync.Mutex
}

// NewLocalStore creates the data directory if needed and returns the store.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{dir: dir}, nil
}

// NewOfflineID synthesizes a collision-resistant local identifier in the same
// shape the browser build used: offline_<unix-ms>_<random-suffix>.
func NewOfflineID() string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("offline_%d_%s", time.Now().UnixMilli(), suffix)
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// LoadKey reads the raw JSON document for a key. Missing keys yield (nil, nil).
func (s *LocalStore) LoadKey(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(key)
}

func (s *LocalStore) loadLocked(key string) ([]byte, error) {
	b, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return b, err
}

// SaveKey overwrites the document for a key.
func (s *LocalStore) SaveKey(key string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(key, doc)
}

func (s *LocalStore) saveLocked(key string, doc []byte) error {
	return os.WriteFile(s.path(key), doc, 0o644)
}

// DeleteKey removes a key. Deleting an absent key is not an error.
func (s *LocalStore) DeleteKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Load decodes the collection stored under key. A missing key decodes to an
// empty slice.
func Load[T any](s *LocalStore, key string) ([]T, error) {
	b, err := s.LoadKey(key)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Save encodes and overwrites the whole collection under key.
func Save[T any](s *LocalStore, key string, items []T) error {
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.SaveKey(key, b)
}

// Users returns all locally persisted users.
func (s *LocalStore) Users() ([]LocalUser, error) {
	return Load[LocalUser](s, KeyUsers)
}

// SaveUser appends a user, synthesizing id and timestamps when absent.
func (s *LocalStore) SaveUser(u LocalUser) (LocalUser, error) {
	if u.ID == "" {
		u.ID = NewOfflineID()
	}
	if u.CreatedAt == "" {
		u.CreatedAt = nowISO()
	}
	u.UpdatedAt = nowISO()
	users, err := s.Users()
	if err != nil {
		return LocalUser{}, err
	}
	users = append(users, u)
	return u, Save(s, KeyUsers, users)
}

// ReplaceUsers overwrites the users collection wholesale.
func (s *LocalStore) ReplaceUsers(users []LocalUser) error {
	return Save(s, KeyUsers, users)
}

// Questions returns all locally persisted questions.
func (s *LocalStore) Questions() ([]LocalQuestion, error) {
	return Load[LocalQuestion](s, KeyQuestions)
}

// SaveQuestion appends a question, synthesizing id and timestamps.
func (s *LocalStore) SaveQuestion(q LocalQuestion) (LocalQuestion, error) {
	if q.ID == "" {
		q.ID = NewOfflineID()
	}
	if q.CreatedAt == "" {
		q.CreatedAt = nowISO()
	}
	q.UpdatedAt = nowISO()
	questions, err := s.Questions()
	if err != nil {
		return LocalQuestion{}, err
	}
	questions = append(questions, q)
	return q, Save(s, KeyQuestions, questions)
}

// ReplaceQuestions overwrites the questions collection wholesale. This is the
// only mutation path for existing questions (counter adjustments).
func (s *LocalStore) ReplaceQuestions(questions []LocalQuestion) error {
	return Save(s, KeyQuestions, questions)
}

// Answers returns all locally persisted answers.
func (s *LocalStore) Answers() ([]LocalAnswer, error) {
	return Load[LocalAnswer](s, KeyAnswers)
}

// SaveAnswer appends an answer, synthesizing id and timestamps.
func (s *LocalStore) SaveAnswer(a LocalAnswer) (LocalAnswer, error) {
	if a.ID == "" {
		a.ID = NewOfflineID()
	}
	if a.CreatedAt == "" {
		a.CreatedAt = nowISO()
	}
	a.UpdatedAt = nowISO()
	answers, err := s.Answers()
	if err != nil {
		return LocalAnswer{}, err
	}
	answers = append(answers, a)
	return a, Save(s, KeyAnswers, answers)
}

// Votes returns all locally persisted votes.
func (s *LocalStore) Votes() ([]LocalVote, error) {
	return Load[LocalVote](s, KeyVotes)
}

// SaveVote appends a vote with a synthesized id and timestamp.
func (s *LocalStore) SaveVote(v LocalVote) (LocalVote, error) {
	if v.ID == "" {
		v.ID = NewOfflineID()
	}
	if v.CreatedAt == "" {
		v.CreatedAt = nowISO()
	}
	votes, err := s.Votes()
	if err != nil {
		return LocalVote{}, err
	}
	votes = append(votes, v)
	return v, Save(s, KeyVotes, votes)
}

// CurrentUser returns the signed-in local user, or nil when signed out.
func (s *LocalStore) CurrentUser() (*LocalUser, error) {
	return s.loadUserKey(KeyCurrentUser)
}

// SetCurrentUser persists the signed-in local user.
func (s *LocalStore) SetCurrentUser(u LocalUser) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.SaveKey(KeyCurrentUser, b)
}

// ClearCurrentUser signs the local user out.
func (s *LocalStore) ClearCurrentUser() error {
	return s.DeleteKey(KeyCurrentUser)
}

// CachedUser returns the last confirmed online session user. It exists so a
// restart can show the signed-in state without waiting for the remote session
// check.
func (s *LocalStore) CachedUser() (*LocalUser, error) {
	return s.loadUserKey(KeyCachedUser)
}

// SetCachedUser stores the confirmed online session user.
func (s *LocalStore) SetCachedUser(u LocalUser) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.SaveKey(KeyCachedUser, b)
}

// ClearCachedUser drops the cached online session user.
func (s *LocalStore) ClearCachedUser() error {
	return s.DeleteKey(KeyCachedUser)
}

func (s *LocalStore) loadUserKey(key string) (*LocalUser, error) {
	b, err := s.LoadKey(key)
	if err != nil || len(b) == 0 {
		return nil, err
	}
	var u LocalUser
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// OfflinePreference reads the ama_offline_mode key. ok is false when the user
// never set a preference, letting configuration decide instead.
func (s *LocalStore) OfflinePreference() (bool, bool) {
	b, err := s.LoadKey(KeyOfflineMode)
	if err != nil || len(b) == 0 {
		return false, false
	}
	switch strings.Trim(strings.TrimSpace(string(b)), `"`) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// SetOfflinePreference persists the explicit user choice.
func (s *LocalStore) SetOfflinePreference(offline bool) error {
	return s.SaveKey(KeyOfflineMode, []byte(fmt.Sprintf("%q", fmt.Sprintf("%t", offline))))
}

// ProfileSetupDone reports whether first-login profile setup completed for a
// user id.
func (s *LocalStore) ProfileSetupDone(userID string) bool {
	b, err := s.LoadKey(keyProfileSetupPrefix + userID)
	return err == nil && len(b) > 0
}

// MarkProfileSetupDone records first-login profile setup completion.
func (s *LocalStore) MarkProfileSetupDone(userID string) error {
	return s.SaveKey(keyProfileSetupPrefix+userID, []byte(`"done"`))
}
