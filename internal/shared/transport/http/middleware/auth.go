package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"Conquest/internal/shared/security"
	"Conquest/internal/shared/transport"
	"Conquest/modules/kit/errx"
	"Conquest/modules/kit/tracex"
)

const ctxPlayerID = "player_id"

// TokenParser 校验 token 并取出玩家身份。
type TokenParser interface {
	ParseToken(token string) (*security.Claims, error)
}

// Auth 读取 Authorization: Bearer <token>；浏览器建 websocket 不能带头，允许用 ?token= 代替。
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			unauthorized(c, "缺少访问令牌")
			return
		}
		claims, err := parser.ParseToken(token)
		if err != nil {
			unauthorized(c, "访问令牌无效或已过期")
			return
		}
		c.Set(ctxPlayerID, claims.PlayerID)
		c.Request = c.Request.WithContext(tracex.WithPlayerID(c.Request.Context(), claims.PlayerID))
		c.Next()
	}
}

// PlayerID 取 Auth 写入的玩家 id。
func PlayerID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxPlayerID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(c *gin.Context, msg string) {
	reason := errx.ErrUnauthorized.CodeText()
	transport.SetErrorReason(c.Request.Context(), reason)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    transport.Unauthorized,
		"reason":  reason,
		"message": msg,
	})
}
