package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// 用户身份通过显式 context value 沿调用链传递，
// 不使用任何进程级可变状态。
type userIDKey struct{}

// WithUserID 把用户 ID 写入 context。
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFrom 从 context 取出用户 ID。
func UserIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}

// RequireUser 从 X-User-ID 请求头解析用户身份并注入请求 context。
// 登录/令牌校验不在本服务范围内，网关层保证该头可信。
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "缺少有效的用户身份"})
			return
		}
		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}
