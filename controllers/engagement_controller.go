package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amaglobal/ama/store"
	"github.com/amaglobal/ama/utils"
)

// EngagementController serves notifications, follows and tag subscriptions.
// Every route here runs behind AuthRequired and is online-only.
type EngagementController struct {
	engagement *store.Engagement
}

// NewEngagementController creates a new EngagementController instance.
func NewEngagementController(engagement *store.Engagement) *EngagementController {
	return &EngagementController{engagement: engagement}
}

func engagementError(ctx *gin.Context, err error, code int, message string) {
	switch {
	case errors.Is(err, store.ErrOfflineUnavailable):
		utils.Error(ctx, http.StatusServiceUnavailable, 50350, "this feature is unavailable offline")
	case errors.Is(err, store.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40450, "not found")
	case errors.Is(err, store.ErrAuthRequired):
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	default:
		utils.Error(ctx, http.StatusInternalServerError, code, message)
	}
}

// ListNotifications returns the caller's notifications, newest first.
func (e *EngagementController) ListNotifications(ctx *gin.Context) {
	userID, _ := authedUserID(ctx)
	unreadOnly := ctx.Query("unread") == "true"

	items, err := e.engagement.Notifications(ctx.Request.Context(), userID, unreadOnly)
	if err != nil {
		engagementError(ctx, err, 50050, "failed to load notifications")
		return
	}
	count, err := e.engagement.UnreadCount(ctx.Request.Context(), userID)
	if err != nil {
		engagementError(ctx, err, 50051, "failed to count notifications")
		return
	}
	utils.Success(ctx, gin.H{"items": items, "unread_count": count})
}

// MarkNotificationsRead marks one notification by id, or all when the id is
// "all".
func (e *EngagementController) MarkNotificationsRead(ctx *gin.Context) {
	userID, _ := authedUserID(ctx)
	id := strings.TrimSpace(ctx.Param("id"))
	if id == "all" {
		id = ""
	}
	if err := e.engagement.MarkRead(ctx.Request.Context(), userID, id); err != nil {
		engagementError(ctx, err, 50052, "failed to mark notifications read")
		return
	}
	utils.Success(ctx, gin.H{"message": "marked read"})
}

// FollowUser makes the caller follow another user.
func (e *EngagementController) FollowUser(ctx *gin.Context) {
	userID, _ := authedUserID(ctx)
	target := strings.TrimSpace(ctx.Param("id"))

	if err := e.engagement.Follow(ctx.Request.Context(), userID, target); err != nil {
		engagementError(ctx, err, 50053, "failed to follow user")
		return
	}
	utils.Success(ctx, gin.H{"following": true})
}

// UnfollowUser removes a follow.
func (e *EngagementController) UnfollowUser(ctx *gin.Context) {
	userID, _ := authedUserID(ctx)
	target := strings.TrimSpace(ctx.Param("id"))

	if err := e.engagement.Unfollow(ctx.Request.Context(), userID, target); err != nil {
		engagementError(ctx, err, 50054, "failed to unfollow user")
		return
	}
	utils.Success(ctx, gin.H{"following": false})
}

// GetFollowStatus reports whether the caller follows a user.
func (e *EngagementController) GetFollowStatus(ctx *gin.Context) {
	userID, _ := authedUserID(ctx)
	target := strings.TrimSpace(ctx.Param("id"))

	following, err := e.engagement.IsFollowing(ctx.Request.Context(), userID, target)
	if err != nil {
		engagementError(ctx, err, 50055, "failed to load follow status")
		return
	}
	utils.Success(ctx, gin.H{"following": following})
}

// SubscribeTag subscribes the caller to a tag.
func (e *EngagementController) SubscribeTag(ctx *gin.Context) {
	userID, _ := authedUserID(ctx)
	tag := strings.TrimSpace(ctx.Param("tag"))

	if err := e.engagement.SubscribeTag(ctx.Request.Context(), userID, tag); err != nil {
		engagementError(ctx, err, 50056, "failed to subscribe to tag")
		return
	}
	utils.Success(ctx, gin.H{"subscribed": true})
}

// UnsubscribeTag drops a tag subscription.
func (e *EngagementController) UnsubscribeTag(ctx *gin.Context) {
	userID, _ := authedUserID(ctx)
	tag := strings.TrimSpace(ctx.Param("tag"))

	if err := e.engagement.UnsubscribeTag(ctx.Request.Context(), userID, tag); err != nil {
		engagementError(ctx, err, 50057, "failed to unsubscribe from tag")
		return
	}
	utils.Success(ctx, gin.H{"subscribed": false})
}

// ListSubscribedTags returns the caller's tag subscriptions.
func (e *EngagementController) ListSubscribedTags(ctx *gin.Context) {
	userID, _ := authedUserID(ctx)

	tags, err := e.engagement.SubscribedTags(ctx.Request.Context(), userID)
	if err != nil {
		engagementError(ctx, err, 50058, "failed to load tag subscriptions")
		return
	}
	utils.Success(ctx, gin.H{"tags": tags})
}
