package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sberauto/predictor/middleware"
)

// NewRouter wires the service routes.
func NewRouter(h *PredictionHandlers, origin string, log *zap.Logger) *gin.Engine {
	registerJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORSMiddleware(origin))

	r.GET("/status", h.Status)
	r.GET("/version", h.Version)
	r.POST("/prediction", h.Predict)

	return r
}
