package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/amaglobal/ama/config"
	"github.com/amaglobal/ama/models"
	"github.com/amaglobal/ama/utils"
)

// ProfileUpdate carries the mutable profile fields. Nil means "leave as is".
type ProfileUpdate struct {
	DisplayName       *string
	Bio               *string
	AvatarURL         *string
	NotificationPrefs *string
}

// Sessions is the authentication service. It owns the session lifecycle:
// bootstrap on start, credential and passwordless sign-in, profile updates and
// sign-out. Offline mode is decided once at composition (db == nil) and every
// operation mirrors the online/offline split. The local store doubles as the
// session cache so a restart shows the signed-in state without waiting on the
// remote session check.
type Sessions struct {
	db    *gorm.DB // nil in offline composition
	local *LocalStore
	log   *zap.SugaredLogger
}

// NewSessions builds the session service. Pass a nil db for offline mode.
func NewSessions(db *gorm.DB, local *LocalStore, log *zap.SugaredLogger) *Sessions {
	return &Sessions{db: db, local: local, log: log}
}

// Offline reports which composition this service runs in.
func (s *Sessions) Offline() bool { return s.db == nil }

const sessionTokenTTL = 72 * time.Hour

// Bootstrap resolves the session for an incoming token. An empty token is an
// anonymous session, not an error. Online, a valid token whose profile row is
// missing (third-party identity completed before profile creation) gets a
// profile synthesized from the token's provider metadata. A connectivity
// failure falls back to the cached user with a warning.
func (s *Sessions) Bootstrap(ctx context.Context, token string) (*UserView, string, error) {
	if s.Offline() {
		u, err := s.local.CurrentUser()
		if err != nil || u == nil {
			return nil, "", err
		}
		return localUserView(*u), "", nil
	}

	if token == "" {
		return nil, "", nil
	}
	claims, err := utils.ParseToken(token)
	if err != nil {
		return nil, "", ErrAuthRequired
	}

	var p models.Profile
	err = s.db.WithContext(ctx).First(&p, claims.UserID).Error
	if err == nil {
		return profileView(p), "", nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// The row is created under the token's id. A fresh auto-increment id
		// would never match the session identity, so every later bootstrap
		// would land here again and mint another profile.
		p = models.Profile{
			ID:          claims.UserID,
			Username:    s.ensureUniqueUsername(ctx, claims.Username),
			Email:       claims.Email,
			DisplayName: claims.DisplayName,
			AvatarURL:   claims.AvatarURL,
			Provider:    claims.Provider,
			IsModerator: s.moderatorByConfig(claims.Username),
		}
		if p.Username == "" {
			p.Username = s.ensureUniqueUsername(ctx, "user")
		}
		if cerr := s.db.WithContext(ctx).Create(&p).Error; cerr != nil {
			return nil, "", cerr
		}
		return profileView(p), "", nil
	}

	// Connectivity trouble: keep showing the cached user instead of flickering
	// to signed-out.
	s.log.Warnf("session bootstrap failed, using cached user: %v", err)
	cached, cerr := s.local.CachedUser()
	if cerr != nil || cached == nil {
		return nil, "", err
	}
	return localUserView(*cached), warnDegraded, nil
}

// SignUp registers a new account. Online it hashes the password and issues a
// token; offline it appends a local user and signs it in directly. Remote
// connectivity failure degrades to the offline path with a warning.
func (s *Sessions) SignUp(ctx context.Context, username, email, password string) (*UserView, string, string, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" {
		return nil, "", "", fmt.Errorf("username and email are required")
	}

	if s.Offline() {
		u, err := s.offlineSignUp(username, email)
		if err != nil {
			return nil, "", "", err
		}
		return u, "", "", nil
	}

	if len(password) < 6 {
		return nil, "", "", fmt.Errorf("password must be at least 6 characters")
	}

	var existing int64
	err := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("username = ? OR email = ?", username, email).
		Count(&existing).Error
	if err != nil {
		return s.degradeSignUp(username, email, err)
	}
	if existing > 0 {
		return nil, "", "", fmt.Errorf("username or email already registered")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, "", "", err
	}
	p := models.Profile{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsModerator:  s.moderatorByConfig(username),
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return s.degradeSignUp(username, email, err)
	}

	token, err := s.issueToken(p)
	if err != nil {
		return nil, "", "", err
	}
	s.cacheUser(p)
	return profileView(p), token, "", nil
}

func (s *Sessions) degradeSignUp(username, email string, cause error) (*UserView, string, string, error) {
	s.log.Warnf("remote sign-up failed, degrading to local store: %v", cause)
	u, err := s.offlineSignUp(username, email)
	if err != nil {
		return nil, "", "", err
	}
	return u, "", warnSavedLocally, nil
}

func (s *Sessions) offlineSignUp(username, email string) (*UserView, error) {
	users, err := s.local.Users()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return nil, fmt.Errorf("email already registered")
		}
	}
	u, err := s.local.SaveUser(LocalUser{Username: username, Email: email})
	if err != nil {
		return nil, err
	}
	if err := s.local.SetCurrentUser(u); err != nil {
		return nil, err
	}
	return localUserView(u), nil
}

// SignIn authenticates by email and password. The offline path is a linear
// scan with no password check: a development and demo convenience, not a
// security boundary. Online, a wrong password is a hard error; a connectivity
// failure degrades to the offline scan with a warning.
func (s *Sessions) SignIn(ctx context.Context, email, password string) (*UserView, string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, "", "", ErrInvalidCredentials
	}

	if s.Offline() {
		u, err := s.offlineSignIn(email)
		if err != nil {
			return nil, "", "", err
		}
		return u, "", "", nil
	}

	var p models.Profile
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", "", ErrInvalidCredentials
		}
		s.log.Warnf("remote sign-in failed, degrading to local store: %v", err)
		u, ferr := s.offlineSignIn(email)
		if ferr != nil {
			return nil, "", "", ferr
		}
		return u, "", warnDegraded, nil
	}

	if !utils.CheckPassword(p.PasswordHash, password) {
		return nil, "", "", ErrInvalidCredentials
	}

	token, err := s.issueToken(p)
	if err != nil {
		return nil, "", "", err
	}
	s.cacheUser(p)
	return profileView(p), token, "", nil
}

func (s *Sessions) offlineSignIn(email string) (*UserView, error) {
	users, err := s.local.Users()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			if err := s.local.SetCurrentUser(u); err != nil {
				return nil, err
			}
			return localUserView(u), nil
		}
	}
	return nil, ErrInvalidCredentials
}

// SignInWithMagicLink sends a one-time emailed link. Offline there is no mail
// delivery to wait on, so it synthesizes a signed-in user immediately and
// returns it; online it returns nil and the flow completes in
// VerifyMagicLink.
func (s *Sessions) SignInWithMagicLink(ctx context.Context, email, linkBase string) (*UserView, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	if s.Offline() {
		username := usernameFromEmail(email)
		users, err := s.local.Users()
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if strings.EqualFold(u.Email, email) {
				if err := s.local.SetCurrentUser(u); err != nil {
					return nil, err
				}
				return localUserView(u), nil
			}
		}
		u, err := s.local.SaveUser(LocalUser{Username: username, Email: email})
		if err != nil {
			return nil, err
		}
		if err := s.local.SetCurrentUser(u); err != nil {
			return nil, err
		}
		return localUserView(u), nil
	}

	code := utils.GenerateLinkToken()
	utils.SaveCode("magic:"+email, code, 15*time.Minute)
	link := fmt.Sprintf("%s/auth/callback?email=%s&token=%s", linkBase, email, code)
	body := fmt.Sprintf("Click to sign in to AMA Global:\n\n%s\n\nThe link is valid for 15 minutes.", link)
	if err := utils.SendMail(email, "Your AMA Global sign-in link", body); err != nil {
		return nil, err
	}
	return nil, nil
}

// VerifyMagicLink consumes a magic-link token and signs the user in, creating
// the profile on first login.
func (s *Sessions) VerifyMagicLink(ctx context.Context, email, code string) (*UserView, string, error) {
	if s.Offline() {
		return nil, "", ErrOfflineUnavailable
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !utils.VerifyAndConsumeCode("magic:"+email, code) {
		return nil, "", fmt.Errorf("invalid or expired link")
	}

	var p models.Profile
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = models.Profile{
			Username: s.ensureUniqueUsername(ctx, usernameFromEmail(email)),
			Email:    email,
			Provider: "magic-link",
		}
		err = s.db.WithContext(ctx).Create(&p).Error
	}
	if err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(p)
	if err != nil {
		return nil, "", err
	}
	s.cacheUser(p)
	return profileView(p), token, nil
}

// ResetPassword sends a password-reset link. Offline mode keeps no passwords,
// so it succeeds without doing anything.
func (s *Sessions) ResetPassword(ctx context.Context, email, linkBase string) error {
	if s.Offline() {
		return nil
	}
	email = strings.ToLower(strings.TrimSpace(email))
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		// Do not reveal whether the address exists.
		return nil
	}
	code := utils.GenerateLinkToken()
	utils.SaveCode("reset:"+email, code, 30*time.Minute)
	link := fmt.Sprintf("%s/reset-password?email=%s&token=%s", linkBase, email, code)
	body := fmt.Sprintf("Reset your AMA Global password:\n\n%s\n\nThe link is valid for 30 minutes.", link)
	return utils.SendMail(email, "Reset your AMA Global password", body)
}

// ConfirmResetPassword consumes a reset token and stores the new password.
func (s *Sessions) ConfirmResetPassword(ctx context.Context, email, code, newPassword string) error {
	if s.Offline() {
		return ErrOfflineUnavailable
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !utils.VerifyAndConsumeCode("reset:"+email, code) {
		return fmt.Errorf("invalid or expired link")
	}
	if len(newPassword) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("email = ?", email).
		Update("password_hash", hash).Error
}

// UpdateProfile applies the given field updates. Offline, the users collection
// is rewritten wholesale and the current-user key refreshed.
func (s *Sessions) UpdateProfile(ctx context.Context, userID string, up ProfileUpdate) (*UserView, string, error) {
	if s.Offline() {
		u, err := s.offlineUpdateProfile(userID, up)
		if err != nil {
			return nil, "", err
		}
		return u, "", nil
	}

	uid, ok := parseUintID(userID)
	if !ok {
		return nil, "", ErrNotFound
	}
	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNotFound
		}
		s.log.Warnf("remote profile update failed, degrading to local store: %v", err)
		u, ferr := s.offlineUpdateProfile(userID, up)
		if ferr != nil {
			return nil, "", ferr
		}
		return u, warnSavedLocally, nil
	}

	applyProfileUpdate(&p, up)
	if err := s.db.WithContext(ctx).Save(&p).Error; err != nil {
		return nil, "", err
	}
	s.cacheUser(p)
	return profileView(p), "", nil
}

func applyProfileUpdate(p *models.Profile, up ProfileUpdate) {
	if up.DisplayName != nil {
		p.DisplayName = utils.SanitizeText(strings.TrimSpace(*up.DisplayName))
	}
	if up.Bio != nil {
		p.Bio = utils.Sanitize(strings.TrimSpace(*up.Bio))
	}
	if up.AvatarURL != nil {
		p.AvatarURL = strings.TrimSpace(*up.AvatarURL)
	}
	if up.NotificationPrefs != nil {
		p.NotificationPrefs = *up.NotificationPrefs
	}
}

func (s *Sessions) offlineUpdateProfile(userID string, up ProfileUpdate) (*UserView, error) {
	users, err := s.local.Users()
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, u := range users {
		if u.ID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNotFound
	}
	if up.DisplayName != nil {
		users[idx].DisplayName = utils.SanitizeText(strings.TrimSpace(*up.DisplayName))
	}
	if up.Bio != nil {
		users[idx].Bio = utils.Sanitize(strings.TrimSpace(*up.Bio))
	}
	if up.AvatarURL != nil {
		users[idx].AvatarURL = strings.TrimSpace(*up.AvatarURL)
	}
	users[idx].UpdatedAt = nowISO()
	if err := s.local.ReplaceUsers(users); err != nil {
		return nil, err
	}
	if cur, _ := s.local.CurrentUser(); cur != nil && cur.ID == userID {
		_ = s.local.SetCurrentUser(users[idx])
	}
	return localUserView(users[idx]), nil
}

// SignOut always succeeds locally: the cached session state is cleared even
// when remote token revocation fails, because the user must always be able to
// leave the signed-in state.
func (s *Sessions) SignOut(ctx context.Context, token string) {
	if !s.Offline() && token != "" {
		if claims, err := utils.ParseToken(token); err == nil {
			expires := time.Now().Add(sessionTokenTTL)
			if claims.ExpiresAt != nil {
				expires = claims.ExpiresAt.Time
			}
			utils.BlacklistToken(token, expires)
		}
	}
	if err := s.local.ClearCurrentUser(); err != nil {
		s.log.Warnf("failed to clear current user: %v", err)
	}
	if err := s.local.ClearCachedUser(); err != nil {
		s.log.Warnf("failed to clear cached user: %v", err)
	}
}

// PublicProfile looks a profile up by numeric id or username for the public
// profile page. Offline it scans the local users collection.
func (s *Sessions) PublicProfile(ctx context.Context, idOrUsername string) (*UserView, error) {
	if s.Offline() {
		users, err := s.local.Users()
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.ID == idOrUsername || strings.EqualFold(u.Username, idOrUsername) {
				v := localUserView(u)
				v.Email = ""
				return v, nil
			}
		}
		return nil, ErrNotFound
	}

	var p models.Profile
	q := s.db.WithContext(ctx)
	if uid, ok := parseUintID(idOrUsername); ok {
		q = q.Where("id = ?", uid)
	} else {
		q = q.Where("username = ?", idOrUsername)
	}
	if err := q.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	v := profileView(p)
	v.Email = ""
	return v, nil
}

// FindOrCreateOAuthProfile persists a third-party identity, creating the
// profile on first login and refreshing provider metadata afterwards.
func (s *Sessions) FindOrCreateOAuthProfile(ctx context.Context, provider, providerID, username, displayName, email, avatarURL string) (*models.Profile, error) {
	if s.Offline() {
		return nil, ErrOfflineUnavailable
	}
	var p models.Profile
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_id = ?", provider, providerID).
		First(&p).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		p = models.Profile{
			Username:    s.ensureUniqueUsername(ctx, username),
			Email:       strings.TrimSpace(email),
			DisplayName: displayName,
			Provider:    provider,
			ProviderID:  providerID,
			AvatarURL:   avatarURL,
			IsModerator: s.moderatorByConfig(username),
		}
		if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	}

	_ = s.db.WithContext(ctx).Model(&p).Updates(map[string]interface{}{
		"email":      strings.TrimSpace(email),
		"avatar_url": avatarURL,
	})
	return &p, nil
}

// IssueToken signs a session token for a profile.
func (s *Sessions) IssueToken(p models.Profile) (string, error) {
	return s.issueToken(p)
}

func (s *Sessions) issueToken(p models.Profile) (string, error) {
	return utils.GenerateToken(utils.TokenIdentity{
		UserID:      p.ID,
		Username:    p.Username,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Provider:    p.Provider,
	}, sessionTokenTTL)
}

// cacheUser mirrors the confirmed online user into the local store so the next
// bootstrap shows the signed-in state instantly.
func (s *Sessions) cacheUser(p models.Profile) {
	u := LocalUser{
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
	if err := s.local.SetCachedUser(u); err != nil {
		s.log.Warnf("failed to cache user: %v", err)
	}
}

// moderatorByConfig seeds the moderator flag for usernames listed in
// MODERATOR_USERNAMES. The flag lives on the profile row afterwards; the
// config list only matters at creation time.
func (s *Sessions) moderatorByConfig(username string) bool {
	username = strings.TrimSpace(username)
	if username == "" {
		return false
	}
	for _, u := range config.Get().ModeratorUsernames {
		if strings.EqualFold(strings.TrimSpace(u), username) {
			return true
		}
	}
	return false
}

func (s *Sessions) ensureUniqueUsername(ctx context.Context, base string) string {
	base = sanitizeUsername(base)
	if base == "" {
		base = "user"
	}
	candidate := base
	suffix := 1
	for {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Profile{}).
			Where("username = ?", candidate).Count(&count).Error; err != nil {
			return candidate
		}
		if count == 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", base, suffix)
		suffix++
	}
}

func sanitizeUsername(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	var b strings.Builder
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func usernameFromEmail(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
