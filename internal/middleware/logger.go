// Package middleware 提供 HTTP 请求的中间件
package middleware

import (
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware 创建请求日志中间件
// 记录每个请求的方法、路径、状态码和耗时
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		line := logLine(statusCode, latency, clientIP, method, path, errorMessage)

		// 按状态码区分日志级别
		switch {
		case statusCode >= 500:
			log.Printf("[ERROR] %s", line)
		case statusCode >= 400:
			log.Printf("[WARN] %s", line)
		default:
			log.Printf("[INFO] %s", line)
		}
	}
}

// logLine 格式化一条请求日志
func logLine(statusCode int, latency time.Duration, clientIP, method, path, errorMessage string) string {
	if latency > time.Second {
		latency = latency.Truncate(time.Millisecond)
	} else if latency > time.Millisecond {
		latency = latency.Truncate(time.Microsecond)
	}

	line := "[" + strconv.Itoa(statusCode) + "] | " +
		padRight(latency.String(), 12) + " | " +
		padRight(clientIP, 15) + " | " +
		padRight(method, 7) + " | " +
		path

	if errorMessage != "" {
		line += " | " + errorMessage
	}

	return line
}

// padRight 右填充字符串到指定长度
func padRight(s string, length int) string {
	for len(s) < length {
		s += " "
	}
	return s
}

// RecoveryMiddleware 创建 panic 恢复中间件
// 捕获处理器中的 panic，防止程序崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()

		c.Next()
	}
}
