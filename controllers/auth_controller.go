package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/amaglobal/ama/config"
	"github.com/amaglobal/ama/store"
	"github.com/amaglobal/ama/utils"
)

// AuthController drives the session lifecycle through the Sessions service:
// bootstrap, credential and passwordless sign-in, OAuth, profile updates and
// sign-out. The offline/online split lives in the service; this layer only
// translates HTTP.
type AuthController struct {
	sessions *store.Sessions
	local    *store.LocalStore
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(sessions *store.Sessions, local *store.LocalStore) *AuthController {
	return &AuthController{sessions: sessions, local: local}
}

// Bootstrap resolves the session for the app start. Anonymous is a success
// with a nil user, never an error.
func (a *AuthController) Bootstrap(ctx *gin.Context) {
	token := bearerTokenFromHeader(ctx)
	user, warning, err := a.sessions.Bootstrap(ctx.Request.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrAuthRequired) {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to resolve session")
		return
	}

	payload := gin.H{"user": user, "offline": a.sessions.Offline()}
	if user != nil && a.local != nil {
		payload["profile_setup_done"] = a.local.ProfileSetupDone(user.ID)
	}
	utils.SuccessWithWarning(ctx, payload, warning)
}

// SignUp registers a new account.
func (a *AuthController) SignUp(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,min=3,max=32"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	user, token, warning, err := a.sessions.SignUp(ctx.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
		return
	}
	utils.SuccessWithWarning(ctx, gin.H{"user": user, "token": token}, warning)
}

// SignIn authenticates with email and password.
func (a *AuthController) SignIn(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	user, token, warning, err := a.sessions.SignIn(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid email or password")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50002, "sign-in failed")
		return
	}
	utils.SuccessWithWarning(ctx, gin.H{"user": user, "token": token}, warning)
}

// RequestMagicLink emails a one-time sign-in link. In offline mode the user
// is synthesized and signed in immediately.
func (a *AuthController) RequestMagicLink(ctx *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid request payload")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !a.sessions.Offline() && !utils.EmailCooldownTrySet(email, time.Minute) {
		utils.Error(ctx, http.StatusTooManyRequests, 42902, "please wait before requesting another link")
		return
	}

	cfg := config.Get()
	user, err := a.sessions.SignInWithMagicLink(ctx.Request.Context(), email, cfg.PublicBaseURL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to send sign-in link")
		return
	}
	if user != nil {
		utils.Success(ctx, gin.H{"user": user})
		return
	}
	utils.Success(ctx, gin.H{"message": "sign-in link sent"})
}

// VerifyMagicLink consumes an emailed link token and signs the user in.
func (a *AuthController) VerifyMagicLink(ctx *gin.Context) {
	// Links clicked from email arrive as GET with query params; the app posts
	// JSON. Accept both.
	var req struct {
		Email string `json:"email" binding:"required,email"`
		Token string `json:"token" binding:"required"`
	}
	if ctx.Request.Method == http.MethodGet {
		req.Email = strings.TrimSpace(ctx.Query("email"))
		req.Token = strings.TrimSpace(ctx.Query("token"))
	} else if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid request payload")
		return
	}
	if req.Email == "" || req.Token == "" {
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid request payload")
		return
	}

	user, token, err := a.sessions.VerifyMagicLink(ctx.Request.Context(), req.Email, req.Token)
	if err != nil {
		if errors.Is(err, store.ErrOfflineUnavailable) {
			utils.Error(ctx, http.StatusServiceUnavailable, 50301, "magic links are unavailable offline")
			return
		}
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid or expired link")
		return
	}
	utils.Success(ctx, gin.H{"user": user, "token": token})
}

// RequestPasswordReset emails a reset link. The response never reveals
// whether the address is registered.
func (a *AuthController) RequestPasswordReset(ctx *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid request payload")
		return
	}

	cfg := config.Get()
	if err := a.sessions.ResetPassword(ctx.Request.Context(), req.Email, cfg.PublicBaseURL); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to send reset link")
		return
	}
	utils.Success(ctx, gin.H{"message": "if the address is registered, a reset link was sent"})
}

// ConfirmPasswordReset consumes a reset token and stores the new password.
func (a *AuthController) ConfirmPasswordReset(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "invalid request payload")
		return
	}

	if err := a.sessions.ConfirmResetPassword(ctx.Request.Context(), req.Email, req.Token, req.Password); err != nil {
		if errors.Is(err, store.ErrOfflineUnavailable) {
			utils.Error(ctx, http.StatusServiceUnavailable, 50302, "password reset is unavailable offline")
			return
		}
		utils.Error(ctx, http.StatusBadRequest, 40008, err.Error())
		return
	}
	utils.Success(ctx, gin.H{"message": "password updated"})
}

// OAuthRedirect generates a provider-specific authorization URL.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	if a.sessions.Offline() {
		utils.Error(ctx, http.StatusServiceUnavailable, 50303, "third-party sign-in is unavailable offline")
		return
	}
	provider := ctx.Param("provider")
	cfg, err := oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40009, err.Error())
		return
	}

	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)

	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	utils.Success(ctx, gin.H{"authorization_url": url, "state": state})
}

// OAuthCallback exchanges the authorization code for a user identity and
// issues a session token.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	if a.sessions.Offline() {
		utils.Error(ctx, http.StatusServiceUnavailable, 50303, "third-party sign-in is unavailable offline")
		return
	}
	provider := ctx.Param("provider")
	code := ctx.Query("code")
	state := ctx.Query("state")

	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40015, "missing code or state")
		return
	}
	if !utils.ConsumeState(state) {
		utils.Error(ctx, http.StatusBadRequest, 40016, "invalid or expired state")
		return
	}

	cfg, err := oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40009, err.Error())
		return
	}

	token, err := cfg.Exchange(context.Background(), code)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40017, "failed to exchange code")
		return
	}

	userInfo, err := fetchOAuthUser(provider, token)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, err.Error())
		return
	}

	profile, err := a.sessions.FindOrCreateOAuthProfile(ctx.Request.Context(), strings.ToLower(provider),
		userInfo.ID, userInfo.Username, userInfo.DisplayName, userInfo.Email, userInfo.AvatarURL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to persist user")
		return
	}

	jwtToken, err := a.sessions.IssueToken(*profile)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{"token": jwtToken, "user": profile})
}

// UpdateProfile applies profile field updates for the acting user.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	userID, ok := actorID(ctx, a.local, a.sessions.Offline())
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		DisplayName       *string `json:"display_name"`
		Bio               *string `json:"bio"`
		AvatarURL         *string `json:"avatar_url"`
		NotificationPrefs *string `json:"notification_prefs"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40018, "invalid request payload")
		return
	}

	user, warning, err := a.sessions.UpdateProfile(ctx.Request.Context(), userID, store.ProfileUpdate{
		DisplayName:       req.DisplayName,
		Bio:               req.Bio,
		AvatarURL:         req.AvatarURL,
		NotificationPrefs: req.NotificationPrefs,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50008, "failed to update profile")
		return
	}
	utils.InvalidateByPrefix("cache:user:public:" + user.ID)
	utils.InvalidateByPrefix("cache:user:public:" + user.Username)
	utils.SuccessWithWarning(ctx, gin.H{"user": user}, warning)
}

// CompleteProfileSetup records that the first-login profile setup finished.
func (a *AuthController) CompleteProfileSetup(ctx *gin.Context) {
	userID, ok := actorID(ctx, a.local, a.sessions.Offline())
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	if err := a.local.MarkProfileSetupDone(userID); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50009, "failed to record profile setup")
		return
	}
	utils.Success(ctx, gin.H{"profile_setup_done": true})
}

// GetUserPublic returns the public profile for an id or username. Cached
// online; degraded and offline paths skip the cache.
func (a *AuthController) GetUserPublic(ctx *gin.Context) {
	key := strings.TrimSpace(ctx.Param("id"))

	cacheKey := "cache:user:public:" + key
	if !a.sessions.Offline() {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(200, "application/json", b)
			return
		}
	}

	user, err := a.sessions.PublicProfile(ctx.Request.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50016, "failed to load user")
		return
	}

	payload := gin.H{"user": user}
	if !a.sessions.Offline() {
		wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
		utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	}
	utils.Success(ctx, payload)
}

// SignOut ends the session. The local session state is always cleared, even
// when token revocation fails.
func (a *AuthController) SignOut(ctx *gin.Context) {
	a.sessions.SignOut(ctx.Request.Context(), bearerTokenFromHeader(ctx))
	utils.Success(ctx, gin.H{"message": "signed out"})
}

// GetOfflinePreference reads the stored offline-mode choice.
func (a *AuthController) GetOfflinePreference(ctx *gin.Context) {
	pref, set := a.local.OfflinePreference()
	utils.Success(ctx, gin.H{"offline": pref, "set": set, "active": a.sessions.Offline()})
}

// SetOfflinePreference stores an explicit offline-mode choice. It takes
// effect on the next start, when the backend mode is decided.
func (a *AuthController) SetOfflinePreference(ctx *gin.Context) {
	var req struct {
		Offline bool `json:"offline"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40019, "invalid request payload")
		return
	}
	if err := a.local.SetOfflinePreference(req.Offline); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50015, "failed to store preference")
		return
	}
	utils.Success(ctx, gin.H{"offline": req.Offline, "restart_required": true})
}

func bearerTokenFromHeader(ctx *gin.Context) string {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func oauthConfig(provider string) (*oauth2.Config, error) {
	cfg := config.Get()
	switch strings.ToLower(provider) {
	case "github":
		if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
			return nil, fmt.Errorf("github oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/v1/auth/oauth/github/callback", cfg.OAuthRedirectBase),
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}, nil
	case "google":
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("google oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/v1/auth/oauth/google/callback", cfg.OAuthRedirectBase),
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

type oauthUser struct {
	ID          string
	Username    string
	DisplayName string
	Email       string
	AvatarURL   string
}

func fetchOAuthUser(provider string, token *oauth2.Token) (*oauthUser, error) {
	switch strings.ToLower(provider) {
	case "github":
		return fetchGitHubUser(token)
	case "google":
		return fetchGoogleUser(token)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func fetchGitHubUser(token *oauth2.Token) (*oauthUser, error) {
	req, _ := http.NewRequest("GET", "https://api.github.com/user", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token.AccessToken))
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github user info request failed: %s", resp.Status)
	}

	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	email, _ := fetchGitHubEmail(token.AccessToken)

	return &oauthUser{
		ID:          fmt.Sprintf("%d", payload.ID),
		Username:    payload.Login,
		DisplayName: firstNonEmpty(payload.Name, payload.Login),
		Email:       email,
		AvatarURL:   payload.AvatarURL,
	}, nil
}

func fetchGitHubEmail(accessToken string) (string, error) {
	req, _ := http.NewRequest("GET", "https://api.github.com/user/emails", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github emails request failed: %s", resp.Status)
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", err
	}

	for _, email := range emails {
		if email.Primary && email.Verified {
			return email.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}
	return "", nil
}

func fetchGoogleUser(token *oauth2.Token) (*oauthUser, error) {
	req, _ := http.NewRequest("GET", "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token.AccessToken))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google user info request failed: %s", resp.Status)
	}

	var payload struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return &oauthUser{
		ID:          payload.ID,
		Username:    payload.Email,
		DisplayName: payload.Name,
		Email:       payload.Email,
		AvatarURL:   payload.Picture,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
