package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/amaglobal/ama/middleware"
	"github.com/amaglobal/ama/store"
)

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 20
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

// pageSlice cuts one page out of an already loaded feed. A page past the end
// is an empty page, not an error.
func pageSlice(items []store.QuestionView, page, pageSize int) []store.QuestionView {
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []store.QuestionView{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// authedUserID returns the JWT-authenticated user id as the string form the
// store services expect. ok is false for anonymous requests.
func authedUserID(ctx *gin.Context) (string, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return "", false
	}
	switch v := value.(type) {
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatUint(uint64(v), 10), true
	default:
		return "", false
	}
}

// actorID resolves the acting user. Online that is the JWT identity; offline
// there is no token, so the locally signed-in user acts instead.
func actorID(ctx *gin.Context, local *store.LocalStore, offline bool) (string, bool) {
	if id, ok := authedUserID(ctx); ok {
		return id, true
	}
	if offline && local != nil {
		if u, err := local.CurrentUser(); err == nil && u != nil {
			return u.ID, true
		}
	}
	return "", false
}
