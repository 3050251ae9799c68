package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/marketplace-commission/internal/common/jwt"
	"github.com/dumeirei/marketplace-commission/internal/common/response"
)

// TokenVerifier 令牌校验器
type TokenVerifier interface {
	ParseToken(tokenString string) (*jwt.Claims, error)
}

// 上下文键
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUserType = "user_type"
	ContextKeyRole     = "role"
	ContextKeyClaims   = "claims"
)

// VendorAuth 商家认证，商家令牌的 UserID 即商家 ID
func VendorAuth(verifier TokenVerifier) gin.HandlerFunc {
	return authenticate(verifier, jwt.UserTypeVendor)
}

// AdminAuth 管理员认证，角色校验交给 RequireRoles
func AdminAuth(verifier TokenVerifier) gin.HandlerFunc {
	return authenticate(verifier, jwt.UserTypeAdmin)
}

// authenticate 校验 Bearer 令牌并写入上下文
// 令牌由外部认证服务签发，这里只做校验
func authenticate(verifier TokenVerifier, userType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		claims, err := verifier.ParseToken(token)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			response.Unauthorized(c, "登录已过期，请重新登录")
		case err != nil:
			response.Unauthorized(c, "无效的令牌")
		case claims.UserType != userType:
			response.Forbidden(c, "无权访问")
		default:
			c.Set(ContextKeyUserID, claims.UserID)
			c.Set(ContextKeyUserType, claims.UserType)
			c.Set(ContextKeyRole, claims.Role)
			c.Set(ContextKeyClaims, claims)
			c.Next()
			return
		}
		c.Abort()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func contextValue[T any](c *gin.Context, key string) T {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero
	}
	t, ok := v.(T)
	if !ok {
		return zero
	}
	return t
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) int64 {
	return contextValue[int64](c, ContextKeyUserID)
}

// GetUserType 从上下文获取用户类型
func GetUserType(c *gin.Context) string {
	return contextValue[string](c, ContextKeyUserType)
}

// GetRole 从上下文获取管理员角色
func GetRole(c *gin.Context) string {
	return contextValue[string](c, ContextKeyRole)
}

// GetClaims 从上下文获取完整的 Claims
func GetClaims(c *gin.Context) *jwt.Claims {
	return contextValue[*jwt.Claims](c, ContextKeyClaims)
}

// GetVendorID 非商家令牌返回 0
func GetVendorID(c *gin.Context) int64 {
	if GetUserType(c) != jwt.UserTypeVendor {
		return 0
	}
	return GetUserID(c)
}

// GetAdminID 非管理员令牌返回 0
func GetAdminID(c *gin.Context) int64 {
	if GetUserType(c) != jwt.UserTypeAdmin {
		return 0
	}
	return GetUserID(c)
}
