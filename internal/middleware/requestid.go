package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request identifier on both request and
	// response.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key under which the request ID string
	// is stored for handlers and downstream middleware.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware tags every request with an identifier so a single story
// flow (login, photo upload, analysis, segment generation) can be followed
// across log lines. An X-Request-ID supplied by an upstream proxy is reused;
// otherwise a fresh UUID v4 is generated. The ID is stored in gin.Context
// under RequestIDKey, where the request logger picks it up, and echoed back
// in the response header so the frontend can report it alongside errors.
//
// Register it before the logging middleware so every logged request carries
// the ID:
//
//	router.Use(gin.Recovery())
//	router.Use(middleware.RequestIDMiddleware())
//	router.Use(LoggerMiddleware(cfg))
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
