package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amaglobal/ama/store"
	"github.com/amaglobal/ama/utils"
)

// QuestionController serves the question feed and the ask/vote operations.
// Read endpoints cache through Redis only when the result came from the
// primary store; degraded responses are never cached because they carry a
// warning tied to the moment of failure.
type QuestionController struct {
	questions  *store.Questions
	engagement *store.Engagement
	local      *store.LocalStore
	offline    bool
}

// NewQuestionController creates a new QuestionController instance.
func NewQuestionController(questions *store.Questions, engagement *store.Engagement, local *store.LocalStore, offline bool) *QuestionController {
	return &QuestionController{questions: questions, engagement: engagement, local: local, offline: offline}
}

// ListQuestions returns the question feed, optionally filtered by search term
// or tag.
func (q *QuestionController) ListQuestions(ctx *gin.Context) {
	search := strings.TrimSpace(ctx.Query("search"))
	tag := strings.TrimSpace(ctx.Query("tag"))
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	// Cache the plain feed and tag pages; search results stay uncached to
	// avoid cache key explosion.
	cacheKey := ""
	if search == "" && !q.offline {
		cacheKey = fmt.Sprintf("cache:questions:list:tag=%s:page=%d:size=%d", tag, page, pageSize)
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(200, "application/json", b)
			return
		}
	}

	items, warning, err := q.questions.Load(ctx.Request.Context(), store.ListOptions{Search: search, Tag: tag})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load questions")
		return
	}

	total := len(items)
	payload := gin.H{
		"items":     pageSlice(items, page, pageSize),
		"page":      page,
		"page_size": pageSize,
		"total":     total,
	}
	if warning == "" && cacheKey != "" {
		wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
		utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	}
	utils.SuccessWithWarning(ctx, payload, warning)
}

// ListTagQuestions returns questions carrying a tag. Same shape as the main
// feed with the tag taken from the path.
func (q *QuestionController) ListTagQuestions(ctx *gin.Context) {
	tag := strings.TrimSpace(ctx.Param("tag"))
	items, warning, err := q.questions.Load(ctx.Request.Context(), store.ListOptions{Tag: tag})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load questions")
		return
	}
	utils.SuccessWithWarning(ctx, gin.H{"items": items, "tag": tag}, warning)
}

// ListUserQuestions returns the questions a user asked under their name.
// Anonymous questions never appear here regardless of who asked them.
func (q *QuestionController) ListUserQuestions(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.Param("username"))
	items, warning, err := q.questions.Load(ctx.Request.Context(), store.ListOptions{AuthorUsername: username})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load questions")
		return
	}
	utils.SuccessWithWarning(ctx, gin.H{"items": items, "username": username}, warning)
}

// GetQuestion returns a single question.
func (q *QuestionController) GetQuestion(ctx *gin.Context) {
	id := strings.TrimSpace(ctx.Param("id"))

	cacheKey := ""
	if !q.offline {
		cacheKey = "cache:questions:detail:" + id
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(200, "application/json", b)
			return
		}
	}

	view, warning, err := q.questions.Get(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "question not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to load question")
		return
	}

	payload := gin.H{"question": view}
	if warning == "" && cacheKey != "" {
		wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
		utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	}
	utils.SuccessWithWarning(ctx, payload, warning)
}

// CreateQuestion accepts a new question from a signed-in user, a named guest
// or an anonymous asker. The route runs behind OptionalAuth so all three
// attribution shapes arrive here.
func (q *QuestionController) CreateQuestion(ctx *gin.Context) {
	var req struct {
		Title       string   `json:"title" binding:"required,min=1"`
		Content     string   `json:"content"`
		Tags        []string `json:"tags"`
		AskerName   string   `json:"asker_name"`
		IsAnonymous bool     `json:"is_anonymous"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	in := store.CreateQuestionInput{
		Title:       utils.SanitizeText(strings.TrimSpace(req.Title)),
		Content:     utils.Sanitize(req.Content),
		Tags:        req.Tags,
		AskerName:   utils.SanitizeText(strings.TrimSpace(req.AskerName)),
		IsAnonymous: req.IsAnonymous,
	}
	if in.Title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40011, "title cannot be empty")
		return
	}
	if id, ok := actorID(ctx, q.local, q.offline); ok {
		in.AuthorID = id
	}

	view, warning, err := q.questions.Create(ctx.Request.Context(), in)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to create question")
		return
	}

	utils.InvalidateByPrefix("cache:questions:")
	if warning == "" && q.engagement != nil {
		q.engagement.NotifyTagSubscribers(ctx.Request.Context(), view)
	}
	utils.SuccessWithWarning(ctx, gin.H{"question": view}, warning)
}

// VoteQuestion casts an up or down vote on a question.
func (q *QuestionController) VoteQuestion(ctx *gin.Context) {
	var req struct {
		Direction string `json:"direction" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40012, "invalid request payload")
		return
	}

	userID, ok := actorID(ctx, q.local, q.offline)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "sign in to vote")
		return
	}

	id := strings.TrimSpace(ctx.Param("id"))
	view, warning, err := q.questions.Vote(ctx.Request.Context(), id, userID, req.Direction)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			utils.Error(ctx, http.StatusNotFound, 40411, "question not found")
		case errors.Is(err, store.ErrInvalidDirection):
			utils.Error(ctx, http.StatusBadRequest, 40013, "vote direction must be up or down")
		case errors.Is(err, store.ErrAuthRequired):
			utils.Error(ctx, http.StatusUnauthorized, 40110, "sign in to vote")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to record vote")
		}
		return
	}

	utils.InvalidateByPrefix("cache:questions:")
	utils.SuccessWithWarning(ctx, gin.H{"question": view}, warning)
}
