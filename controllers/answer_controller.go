package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amaglobal/ama/store"
	"github.com/amaglobal/ama/utils"
)

// AnswerController serves answers, acceptance, answer votes and comments.
type AnswerController struct {
	answers *store.Answers
	local   *store.LocalStore
	offline bool
}

// NewAnswerController creates a new AnswerController instance.
func NewAnswerController(answers *store.Answers, local *store.LocalStore, offline bool) *AnswerController {
	return &AnswerController{answers: answers, local: local, offline: offline}
}

// ListAnswers returns a question's answers, accepted first.
func (a *AnswerController) ListAnswers(ctx *gin.Context) {
	questionID := strings.TrimSpace(ctx.Param("id"))

	items, warning, err := a.answers.ListForQuestion(ctx.Request.Context(), questionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "question not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load answers")
		return
	}
	utils.SuccessWithWarning(ctx, gin.H{"items": items}, warning)
}

// CreateAnswer posts an answer to a question. Direct answering requires a
// signed-in user; anonymous answers only come in through share links.
func (a *AnswerController) CreateAnswer(ctx *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	userID, ok := actorID(ctx, a.local, a.offline)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "sign in to answer")
		return
	}

	view, warning, err := a.answers.Create(ctx.Request.Context(), store.CreateAnswerInput{
		QuestionID: strings.TrimSpace(ctx.Param("id")),
		AuthorID:   userID,
		Content:    utils.Sanitize(req.Content),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "question not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to create answer")
		return
	}

	utils.InvalidateByPrefix("cache:questions:")
	utils.SuccessWithWarning(ctx, gin.H{"answer": view}, warning)
}

// AcceptAnswer toggles acceptance on an answer. Only the question's author or
// a moderator may accept; accepting one answer clears any other.
func (a *AnswerController) AcceptAnswer(ctx *gin.Context) {
	userID, ok := authedUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "sign in to accept answers")
		return
	}

	answerID := strings.TrimSpace(ctx.Param("answerId"))
	view, err := a.answers.Accept(ctx.Request.Context(), answerID, userID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			utils.Error(ctx, http.StatusNotFound, 40430, "answer not found")
		case errors.Is(err, store.ErrAuthRequired):
			utils.Error(ctx, http.StatusForbidden, 40330, "only the question author can accept an answer")
		case errors.Is(err, store.ErrOfflineUnavailable):
			utils.Error(ctx, http.StatusServiceUnavailable, 50330, "accepting answers is unavailable offline")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to accept answer")
		}
		return
	}

	utils.InvalidateByPrefix("cache:questions:")
	utils.Success(ctx, gin.H{"answer": view})
}

// VoteAnswer casts an up or down vote on an answer.
func (a *AnswerController) VoteAnswer(ctx *gin.Context) {
	var req struct {
		Direction string `json:"direction" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid request payload")
		return
	}

	userID, ok := authedUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "sign in to vote")
		return
	}

	answerID := strings.TrimSpace(ctx.Param("answerId"))
	view, err := a.answers.Vote(ctx.Request.Context(), answerID, userID, req.Direction)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			utils.Error(ctx, http.StatusNotFound, 40430, "answer not found")
		case errors.Is(err, store.ErrInvalidDirection):
			utils.Error(ctx, http.StatusBadRequest, 40032, "vote direction must be up or down")
		case errors.Is(err, store.ErrOfflineUnavailable):
			utils.Error(ctx, http.StatusServiceUnavailable, 50331, "answer voting is unavailable offline")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to record vote")
		}
		return
	}
	utils.Success(ctx, gin.H{"answer": view})
}

// CreateComment adds a comment to an answer.
func (a *AnswerController) CreateComment(ctx *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "invalid request payload")
		return
	}

	userID, ok := authedUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "sign in to comment")
		return
	}

	answerID := strings.TrimSpace(ctx.Param("answerId"))
	comment, err := a.answers.Comment(ctx.Request.Context(), answerID, userID, utils.Sanitize(req.Content))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			utils.Error(ctx, http.StatusNotFound, 40430, "answer not found")
		case errors.Is(err, store.ErrOfflineUnavailable):
			utils.Error(ctx, http.StatusServiceUnavailable, 50332, "commenting is unavailable offline")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to create comment")
		}
		return
	}
	utils.Success(ctx, gin.H{"comment": comment})
}
