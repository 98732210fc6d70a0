package middleware

import (
	"net/http"
	"prdy-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionIDKey 是会话 ID 在 Gin 上下文中的键名。
const SessionIDKey = "sessionID"

// Session 在边界层签发不透明的会话 ID：首次访问时生成 UUID 并写入 Cookie，
// 之后的请求复用同一 ID。会话历史本身由存储层按需创建，读取不会物化会话。
func Session(cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(cookieName)
		if err != nil || sessionID == "" {
			sessionID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, sessionID, 0, "/", "", false, true)
			log.Debugf("签发新会话 ID: %s", sessionID)
		}
		c.Set(SessionIDKey, sessionID)
		c.Next()
	}
}

// SessionID 从 Gin 上下文中取出当前请求的会话 ID。
func SessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}
