package routes

import (
	"debatehub/controllers"

	"github.com/gin-gonic/gin"
)

func SetupTranscriptRoutes(router *gin.RouterGroup, tc *controllers.TranscriptController) {
	router.POST("/api/submit-transcripts", tc.SubmitTranscripts)
	router.GET("/api/judgment/:roomId", tc.GetJudgment)
}
