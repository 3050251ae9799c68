package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/marketplace-commission/internal/common/response"
)

// 管理员角色
const (
	RoleSuperAdmin = "super_admin"
	RoleFinance    = "finance"
	RoleOperator   = "operator"
)

// HasRole 当前管理员是否具备任一角色，super_admin 视为具备全部角色
func HasRole(c *gin.Context, roles ...string) bool {
	role := GetRole(c)
	if role == RoleSuperAdmin {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRoles 财务接口要求 finance，供应商同步接口要求 operator
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch {
		case GetRole(c) == "":
			response.Unauthorized(c, "请先登录")
		case !HasRole(c, roles...):
			response.Forbidden(c, "权限不足")
		default:
			c.Next()
			return
		}
		c.Abort()
	}
}
