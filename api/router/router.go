package router

import (
	"github.com/gin-gonic/gin"

	"letter-portal/api/handler"
	"letter-portal/api/middleware"
	"letter-portal/vars"
)

func RegisterRoutes(r *gin.Engine, mw *middleware.RequestMiddleware, letterH *handler.LetterHandler, systemH *handler.SystemHandler) {
	r.Use(mw.RecoverPanic(), mw.ProcessRequest())

	r.GET("/health", systemH.Health)
	r.GET("/metrics", systemH.Metrics)

	api := r.Group(vars.APIPrefix)
	{
		letters := api.Group("/letters")
		{
			letters.POST("", letterH.Create)
			letters.GET("", letterH.List)
			letters.GET("/:id", letterH.Get)
			letters.POST("/:id/hide", letterH.Hide)
			letters.POST("/:id/signatures/:sid/dispatch", letterH.Dispatch)
			letters.POST("/:id/signatures/:sid/sign", letterH.Sign)
		}
		units := api.Group("/units")
		{
			units.GET("/:kind/:unitId/signatures", letterH.Inbox)
		}
	}
}
