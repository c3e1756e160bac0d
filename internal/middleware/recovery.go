package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/Rijughosh14/EShop/pkg/logger"
	"github.com/Rijughosh14/EShop/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns panics into a 500 envelope. Details are only exposed in development.
func Recovery(log *logger.Logger, development bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.ErrorContext(c.Request.Context(), "Panic recovered",
				zap.String("request_id", GetRequestID(c)),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)

			details := ""
			if development {
				details = fmt.Sprint(rec)
			}
			if c.Writer.Written() {
				c.Abort()
				return
			}
			body := response.Fail("INTERNAL_ERROR", "Something broke!")
			body.Error.Details = details
			c.AbortWithStatusJSON(http.StatusInternalServerError, body)
		}()
		c.Next()
	}
}
