package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amaglobal/ama/config"
	"github.com/amaglobal/ama/store"
	"github.com/amaglobal/ama/utils"
)

// ShareController mints and resolves question share links and accepts answers
// submitted through them.
type ShareController struct {
	shares  *store.Shares
	answers *store.Answers
}

// NewShareController creates a new ShareController instance.
func NewShareController(shares *store.Shares, answers *store.Answers) *ShareController {
	return &ShareController{shares: shares, answers: answers}
}

// CreateShare mints a share link for a question.
func (s *ShareController) CreateShare(ctx *gin.Context) {
	var req struct {
		AllowAnonymous *bool `json:"allow_anonymous"`
		RequireAuth    bool  `json:"require_auth"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	allowAnonymous := true
	if req.AllowAnonymous != nil {
		allowAnonymous = *req.AllowAnonymous
	}

	userID, ok := authedUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "sign in to share")
		return
	}

	questionID := strings.TrimSpace(ctx.Param("id"))
	view, err := s.shares.Create(ctx.Request.Context(), questionID, userID, allowAnonymous, req.RequireAuth)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			utils.Error(ctx, http.StatusNotFound, 40410, "question not found")
		case errors.Is(err, store.ErrAuthRequired):
			utils.Error(ctx, http.StatusForbidden, 40340, "only the question author can create a share link")
		case errors.Is(err, store.ErrOfflineUnavailable):
			utils.Error(ctx, http.StatusServiceUnavailable, 50340, "share links are unavailable offline")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to create share link")
		}
		return
	}

	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"share": view,
		"url":   cfg.PublicBaseURL + "/s/" + view.Code,
	})
}

// ResolveShare returns the share settings and the question behind a code.
// The result is cached briefly since share pages are hit by link recipients
// in bursts.
func (s *ShareController) ResolveShare(ctx *gin.Context) {
	code := strings.TrimSpace(ctx.Param("code"))

	if b, ok := utils.CacheGetBytes("cache:share:" + code); ok {
		ctx.Data(200, "application/json", b)
		return
	}

	view, err := s.shares.Resolve(ctx.Request.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			utils.Error(ctx, http.StatusNotFound, 40440, "share link not found")
		case errors.Is(err, store.ErrOfflineUnavailable):
			utils.Error(ctx, http.StatusServiceUnavailable, 50340, "share links are unavailable offline")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to resolve share link")
		}
		return
	}

	payload := gin.H{"share": view}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON("cache:share:"+code, wrapper, time.Minute)
	utils.Success(ctx, payload)
}

// AnswerViaShare posts an answer through a share link. The route runs behind
// OptionalAuth: whether an anonymous submission is allowed depends on the
// link's settings, not the route.
func (s *ShareController) AnswerViaShare(ctx *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40041, "invalid request payload")
		return
	}

	authorID, _ := authedUserID(ctx)
	code := strings.TrimSpace(ctx.Param("code"))
	view, err := s.shares.AnswerViaShare(ctx.Request.Context(), s.answers, code, authorID, utils.Sanitize(req.Content))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			utils.Error(ctx, http.StatusNotFound, 40440, "share link not found")
		case errors.Is(err, store.ErrAuthRequired):
			utils.Error(ctx, http.StatusUnauthorized, 40141, "this link requires signing in to answer")
		case errors.Is(err, store.ErrOfflineUnavailable):
			utils.Error(ctx, http.StatusServiceUnavailable, 50340, "share links are unavailable offline")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to submit answer")
		}
		return
	}

	utils.InvalidateByPrefix("cache:questions:")
	utils.Success(ctx, gin.H{"answer": view})
}
