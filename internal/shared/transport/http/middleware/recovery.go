package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"Conquest/internal/shared/transport"
	"Conquest/modules/kit/logx"
)

// Recovery 把 panic 记成系统错误并返回 500。
func Recovery(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic: %v", r)
				logx.ReportSysErrorWithLoggerContext(c.Request.Context(), log, logx.NewSysLog(c.FullPath(), err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    transport.SystemError,
					"message": "系统繁忙，请稍后重试",
				})
			}
		}()
		c.Next()
	}
}
