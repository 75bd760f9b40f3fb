package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/amaglobal/ama/config"
	"github.com/amaglobal/ama/controllers"
	"github.com/amaglobal/ama/middleware"
	"github.com/amaglobal/ama/store"
	"github.com/amaglobal/ama/utils"
)

// Deps carries the composed services into the router. The offline/online
// decision was made once at startup; the same wiring serves both modes.
type Deps struct {
	Sessions   *store.Sessions
	Questions  *store.Questions
	Answers    *store.Answers
	Shares     *store.Shares
	Engagement *store.Engagement
	Local      *store.LocalStore
	Offline    bool
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Deps) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(utils.Ginzap(utils.Logger))
	r.Use(utils.RecoveryWithZap(utils.Logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok", "offline": deps.Offline})
	})

	authController := controllers.NewAuthController(deps.Sessions, deps.Local)
	questionController := controllers.NewQuestionController(deps.Questions, deps.Engagement, deps.Local, deps.Offline)
	answerController := controllers.NewAnswerController(deps.Answers, deps.Local, deps.Offline)
	shareController := controllers.NewShareController(deps.Shares, deps.Answers)
	engagementController := controllers.NewEngagementController(deps.Engagement)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.GET("/bootstrap", authController.Bootstrap)
	authGroup.GET("/me", authController.Bootstrap)
	authGroup.POST("/register", authController.SignUp)
	authGroup.POST("/login", authController.SignIn)
	authGroup.POST("/magic-link", authController.RequestMagicLink)
	authGroup.POST("/magic-link/verify", authController.VerifyMagicLink)
	authGroup.GET("/magic-link/verify", authController.VerifyMagicLink)
	authGroup.POST("/reset-password", authController.RequestPasswordReset)
	authGroup.POST("/reset-password/confirm", authController.ConfirmPasswordReset)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.OptionalAuth(), authController.SignOut)
	authGroup.PATCH("/profile", middleware.OptionalAuth(), authController.UpdateProfile)
	authGroup.POST("/profile/setup-complete", middleware.OptionalAuth(), authController.CompleteProfileSetup)
	authGroup.GET("/offline-mode", authController.GetOfflinePreference)
	authGroup.PUT("/offline-mode", authController.SetOfflinePreference)

	// Public reads
	api.GET("/questions", questionController.ListQuestions)
	api.GET("/questions/:id", questionController.GetQuestion)
	api.GET("/questions/:id/answers", answerController.ListAnswers)
	api.GET("/tags/:tag/questions", questionController.ListTagQuestions)
	api.GET("/users/:id", authController.GetUserPublic)
	api.GET("/users/by-username/:username/questions", questionController.ListUserQuestions)
	api.GET("/share/:code", shareController.ResolveShare)

	// Guest-capable writes: asking accepts anonymous and named-guest
	// submissions, share answers defer to the link's settings, voting falls
	// back to the locally signed-in user offline.
	guest := api.Group("")
	guest.Use(middleware.OptionalAuth(), middleware.RateLimitMiddleware())
	guest.POST("/questions", questionController.CreateQuestion)
	guest.POST("/questions/:id/vote", questionController.VoteQuestion)
	guest.POST("/questions/:id/answers", answerController.CreateAnswer)
	guest.POST("/share/:code/answers", shareController.AnswerViaShare)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.POST("/questions/:id/share", shareController.CreateShare)
	protected.POST("/answers/:answerId/vote", answerController.VoteAnswer)
	protected.POST("/answers/:answerId/accept", answerController.AcceptAnswer)
	protected.POST("/answers/:answerId/comments", answerController.CreateComment)
	protected.GET("/notifications", engagementController.ListNotifications)
	protected.POST("/notifications/:id/read", engagementController.MarkNotificationsRead)
	protected.POST("/users/:id/follow", engagementController.FollowUser)
	protected.DELETE("/users/:id/follow", engagementController.UnfollowUser)
	protected.GET("/users/:id/follow", engagementController.GetFollowStatus)
	protected.GET("/tags/subscriptions", engagementController.ListSubscribedTags)
	protected.POST("/tags/:tag/subscribe", engagementController.SubscribeTag)
	protected.DELETE("/tags/:tag/subscribe", engagementController.UnsubscribeTag)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
