package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(meetingController *MeetingController, userController *UserController, allowedOrigins []string, jwtSecret string) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	config.ExposeHeaders = []string{"Set-Cookie"}
	router.Use(cors.New(config))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	if userController != nil {
		users := api.Group("/users")
		users.POST("/register", userController.Register)
		users.POST("/login", userController.Login)
		users.POST("/guest", userController.Guest)
		users.GET("/:userID", JWTAuth(jwtSecret), userController.GetUser)
	}

	if meetingController != nil {
		meetings := api.Group("/meetings")
		meetings.GET("/:meetingID/exists", meetingController.CheckMeeting)

		authed := meetings.Group("", JWTAuth(jwtSecret))
		authed.POST("/create", meetingController.CreateMeeting)
		authed.GET("/:meetingID", meetingController.GetMeeting)
		authed.POST("/:meetingID/join", meetingController.JoinMeeting)
		authed.POST("/:meetingID/leave", meetingController.LeaveMeeting)
		authed.POST("/:meetingID/end", meetingController.EndMeeting)
		authed.GET("/:meetingID/participants", meetingController.ListParticipants)
		authed.GET("/:meetingID/ws", meetingController.Subscribe)
	}

	return router
}
