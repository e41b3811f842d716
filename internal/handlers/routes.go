package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/taxappeal/internal/middleware"
)

// RegisterAPIRoutes mounts the analysis and appeal endpoints on v1.
func RegisterAPIRoutes(v1 *gin.RouterGroup, analysis *AnalysisHandler, appeals *AppealHandler) {
	v1.GET("/properties/:parcel_id/analysis", analysis.Analyze)

	a := v1.Group("/appeals", middleware.RequireUser())
	{
		a.POST("", appeals.Create)
		a.GET("", appeals.List)
		a.GET("/:id", appeals.Get)
		a.DELETE("/:id", appeals.Delete)
		a.GET("/:id/history", appeals.History)
		a.POST("/:id/transitions", appeals.Transition)
		a.GET("/:id/eligibility", appeals.Eligibility)
		a.POST("/:id/payments", appeals.RecordPayment)
		a.GET("/:id/letter-facts", appeals.LetterFacts)
		a.PUT("/:id/letter", appeals.StoreLetter)
		a.POST("/:id/success-fee", appeals.ComputeSuccessFee)
	}
}
