package router

import (
	"log"
	"time"

	"curbside/config"
	"curbside/internal/handler"
	"curbside/internal/middleware"
	"curbside/internal/repository"
	"curbside/internal/service"
	"curbside/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// participants combines the per-surface repositories into the single
// recipient-set view fan-out works against.
type participants struct {
	*repository.RequestRepository
	*repository.BoardRepository
	*repository.ChatRepository
}

// Setup wires repositories, services and routes. The returned push
// queue and fan-out still need their background sweeps started by the
// caller.
func Setup(cfg *config.Config, db *gorm.DB, zlog *zap.Logger) (*gin.Engine, *service.PushQueue, *service.Fanout) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// Repositories
	userRepo := repository.NewUserRepository(db)
	prefRepo := repository.NewPreferenceRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	boardRepo := repository.NewBoardRepository(db)
	chatRepo := repository.NewChatRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	pushRepo := repository.NewPushQueueRepository(db)
	reminderRepo := repository.NewReminderRepository(db)

	hub := ws.NewHub()

	// Services
	authSvc := service.NewAuthService(cfg, userRepo, prefRepo)
	fcmSvc := service.NewFCMService(cfg.Firebase.ServiceAccountPath)
	if fcmSvc != nil {
		log.Printf("[FCM] Push notifications enabled")
	} else if cfg.Firebase.ServiceAccountPath != "" {
		log.Printf("[FCM] Push notifications disabled: failed to init (check service account file)")
	} else {
		log.Printf("[FCM] Push notifications disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	}
	resolver := service.NewPreferenceResolver(userRepo, prefRepo, zlog)
	pushQueue := service.NewPushQueue(pushRepo, userRepo, fcmSvc, cfg.Engine.PushBatchHold, zlog)
	fanout := service.NewFanout(userRepo, participants{requestRepo, boardRepo, chatRepo},
		notificationRepo, pushQueue, resolver, reminderRepo, cfg.Engine.ReminderOffset, zlog)
	fanout.Realtime = hub
	badges := service.NewBadgeAggregator(notificationRepo, chatRepo, cfg.Engine.BadgeReadRetention, zlog)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, userRepo, fanout)
	adminHandler := handler.NewAdminHandler(userRepo, fanout)
	requestHandler := handler.NewRequestHandler(requestRepo, userRepo, fanout, hub)
	boardHandler := handler.NewBoardHandler(boardRepo, userRepo, fanout, hub)
	chatHandler := handler.NewChatHandler(chatRepo, notificationRepo, userRepo, fanout, hub)
	notificationHandler := handler.NewNotificationHandler(notificationRepo, prefRepo, badges)

	authMw := middleware.AuthRequired(&cfg.JWT)
	approvedMw := middleware.ApprovedRequired(userRepo)
	writeLimit := middleware.UserRateLimit(middleware.NewRateLimiter(30, time.Minute))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.GET("/me", authMw, authHandler.Me)
			authGroup.POST("/fcm-token", authMw, authHandler.RegisterFCMToken)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/pending-users", adminHandler.ListPending)
			admin.POST("/users/:id/approve", adminHandler.Approve)
			admin.POST("/users/:id/reject", adminHandler.Reject)
			admin.POST("/broadcast", adminHandler.Broadcast)
		}

		// Everything below requires an approved account.
		member := api.Group("")
		member.Use(authMw, approvedMw)
		{
			member.POST("/rides", requestHandler.CreateRide)
			member.GET("/rides", requestHandler.ListRides)
			member.GET("/rides/:id", requestHandler.GetRide)
			member.POST("/rides/:id/claim", requestHandler.ClaimRide)
			member.POST("/rides/:id/unclaim", requestHandler.UnclaimRide)
			member.POST("/rides/:id/complete", requestHandler.CompleteRide)
			member.POST("/rides/:id/co-requestors", requestHandler.AddRideCoRequestor)
			member.POST("/rides/:id/questions", requestHandler.PostRideQuestion)

			member.POST("/favors", requestHandler.CreateFavor)
			member.GET("/favors", requestHandler.ListFavors)
			member.GET("/favors/:id", requestHandler.GetFavor)
			member.POST("/favors/:id/claim", requestHandler.ClaimFavor)
			member.POST("/favors/:id/unclaim", requestHandler.UnclaimFavor)
			member.POST("/favors/:id/complete", requestHandler.CompleteFavor)
			member.POST("/favors/:id/co-requestors", requestHandler.AddFavorCoRequestor)
			member.POST("/favors/:id/questions", requestHandler.PostFavorQuestion)

			member.GET("/requests/:kind/:id/questions", requestHandler.ListQuestions)

			member.POST("/board/posts", writeLimit, boardHandler.CreatePost)
			member.GET("/board/posts", boardHandler.ListPosts)
			member.GET("/board/posts/:id", boardHandler.GetPost)
			member.POST("/board/posts/:id/comments", writeLimit, boardHandler.CreateComment)
			member.POST("/board/posts/:id/votes", writeLimit, boardHandler.Vote)

			member.POST("/conversations", writeLimit, chatHandler.CreateConversation)
			member.POST("/conversations/:id/members", chatHandler.AddMember)
			member.POST("/conversations/:id/messages", writeLimit, chatHandler.SendMessage)
			member.GET("/conversations/:id/messages", chatHandler.ListMessages)
			member.POST("/conversations/:id/read", chatHandler.MarkRead)

			member.GET("/notifications", notificationHandler.List)
			member.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			member.POST("/notifications/mark-all-read", notificationHandler.MarkAllRead)
			member.PUT("/notifications/:id/pin", notificationHandler.SetPinned)
			member.GET("/badges", notificationHandler.Badges)
			member.GET("/notification-preferences", notificationHandler.GetPreferences)
			member.PATCH("/notification-preferences", notificationHandler.UpdatePreferences)
		}
	}

	r.GET("/ws/feed", ws.UpgradeFeed(&cfg.JWT, hub))

	return r, pushQueue, fanout
}
