// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"pet-match-go/pkg/log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 是请求 ID 所在的请求/响应头。
const RequestIDHeader = "X-Request-ID"

// bodyLogWriter 用于捕获 JSON 响应体，图片等其他响应不缓存
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter，JSON 响应同时写入内部的 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	if isJSON(w.Header().Get("Content-Type")) {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}

// RequestLogger 是一个 Gin 中间件，用于记录请求和响应日志。
// 上传的图片不记录，只记录请求大小；只有 JSON 响应会记录响应体。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 记录请求开始时间
		startTime := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("requestId", requestID)
		c.Header(RequestIDHeader, requestID)

		// 使用自定义的 ResponseWriter 捕获响应
		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		// 处理请求
		c.Next()

		log.Infow("HTTP Request Log",
			"requestId", requestID,
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestSize", c.Request.ContentLength,
			"responseBody", blw.body.String(),
		)
	}
}
