package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS возвращает политику CORS для витрины. "*" в origins разрешает все
// источники (только для dev), тогда credentials не отправляются.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Authorization",
			"Idempotency-Key", HeaderRequestID, HeaderTraceID, HeaderCorrelationID,
		},
		ExposeHeaders: []string{HeaderTraceID, HeaderCorrelationID, "Retry-After"},
		MaxAge:        time.Hour,
	}

	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}

	return cors.New(cfg)
}
