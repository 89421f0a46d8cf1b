package api

import (
	"alcyxob/upload-broker/internal/logging"
	"alcyxob/upload-broker/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	uploadService service.UploadService,
	log logging.Logger,
) {
	uploadHandler := NewUploadHandler(uploadService, log)
	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		uploadGroup := protected.Group("/upload")
		{
			uploadGroup.POST("/init", uploadHandler.InitUpload)
			uploadGroup.POST("/complete", uploadHandler.CompleteUpload)
			uploadGroup.POST("/abort", uploadHandler.AbortUpload)
			uploadGroup.GET("/:transactionId", uploadHandler.GetUpload)

			// Must match storage.LocalUploadPath, which builds the grant URL.
			uploadGroup.PUT("/local/:transactionId", uploadHandler.ReceiveLocalUpload)
			uploadGroup.POST("/local/:transactionId", uploadHandler.ReceiveLocalUpload)
		}
	}
}
