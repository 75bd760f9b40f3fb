package main

import (
	"time"

	"gorm.io/gorm"

	"github.com/amaglobal/ama/config"
	"github.com/amaglobal/ama/models"
	"github.com/amaglobal/ama/routes"
	"github.com/amaglobal/ama/store"
	"github.com/amaglobal/ama/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	// The local store always exists: it is the offline backend, the online
	// fallback and the session cache in one.
	local, err := store.NewLocalStore(cfg.DataDir)
	if err != nil {
		utils.Sugar.Fatalf("failed to open local store at %s: %v", cfg.DataDir, err)
	}

	// The backend mode is decided once, before any service is composed.
	// Stored user preference first, then configuration, then whether the
	// database credentials look usable at all.
	offline := store.IsOfflineMode(local, cfg)

	var db *gorm.DB
	if !offline {
		db = config.InitDatabase(
			&models.Profile{}, &models.Question{}, &models.Answer{},
			&models.Comment{}, &models.Vote{}, &models.QuestionShare{},
			&models.Notification{}, &models.Follow{}, &models.TagSubscription{},
		)
	}

	localQuestions := store.NewLocalQuestions(local)
	localAnswers := store.NewLocalAnswers(local)

	deps := routes.Deps{
		Local:   local,
		Offline: offline,
	}
	if offline {
		utils.Sugar.Info("offline mode: serving from the local JSON store")
		deps.Sessions = store.NewSessions(nil, local, utils.Sugar)
		deps.Questions = store.NewQuestions(localQuestions, nil, utils.Sugar)
		deps.Answers = store.NewAnswers(localAnswers, nil, nil, utils.Sugar)
		deps.Shares = store.NewShares(nil, utils.Sugar)
		deps.Engagement = store.NewEngagement(nil, utils.Sugar)
	} else {
		remoteAnswers := store.NewRemoteAnswers(db)
		deps.Sessions = store.NewSessions(db, local, utils.Sugar)
		deps.Questions = store.NewQuestions(store.NewRemoteQuestions(db), localQuestions, utils.Sugar)
		deps.Answers = store.NewAnswers(remoteAnswers, localAnswers, remoteAnswers, utils.Sugar)
		deps.Shares = store.NewShares(db, utils.Sugar)
		deps.Engagement = store.NewEngagement(db, utils.Sugar)

		// Best-effort retention for read notifications
		utils.StartNotificationPruner(db, time.Hour)
	}

	r := routes.SetupRouter(deps)

	utils.Sugar.Infof("Starting server on port %s (graceful, offline=%t)", cfg.AppPort, offline)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
