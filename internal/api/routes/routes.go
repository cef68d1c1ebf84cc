package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/okhamid/interviewly/internal/api/handlers"
	"github.com/okhamid/interviewly/internal/api/middleware"
)

type Deps struct {
	Log     *logrus.Logger
	Session *handlers.SessionHandler
	Profile *handlers.ProfileHandler
	History *handlers.HistoryHandler
	WS      *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	api := r.Group("/")
	api.Use(middleware.RequestLogger(d.Log))

	api.POST("/session", d.Session.Create)
	api.GET("/session/:session_id", d.Session.Get)
	api.POST("/session/:session_id/end", d.Session.End)

	api.GET("/session/:session_id/transcript", d.History.Transcript)
	api.GET("/session/:session_id/answers", d.History.Answers)
	api.POST("/session/:session_id/answers/:question_id/used", d.History.MarkAnswerUsed)

	api.GET("/profile/:profile_id", d.Profile.GetProfile)
	api.PUT("/profile/:profile_id", d.Profile.SaveProfile)
	api.GET("/job-description/:jd_id", d.Profile.GetJobDescription)
	api.PUT("/job-description/:jd_id", d.Profile.SaveJobDescription)

	// WebSocket
	r.GET("/ws/session/:session_id", d.WS.InterviewWS)
}
