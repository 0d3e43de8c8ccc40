package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/covenant-hq/church-backend/internal/access"
	"github.com/covenant-hq/church-backend/internal/auth"
	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/permissions"
	"github.com/covenant-hq/church-backend/internal/requestctx"
)

// RequireRole returns a middleware that allows only the given roles. Support admins calling from the
// admin portal are checked as super admins.
func (p *Pipeline) RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		user := requestctx.User(c)
		if user == nil {
			p.abort(c, "role", access.Unauthenticated("Not authorized"))
			return
		}
		role := permissions.EffectiveRoleForClient(string(user.Role), auth.IsAdminPortal(c.Request))
		if _, ok := allowed[role]; !ok {
			p.abort(c, "role", access.InsufficientRole())
			return
		}
		c.Next()
	}
}

// RequirePermission returns a middleware that checks the principal's permission matrix for module and
// the action implied by the request verb.
func (p *Pipeline) RequirePermission(module string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if requestctx.User(c) == nil {
			p.abort(c, "permission", access.Unauthenticated("Not authorized"))
			return
		}
		action := permissions.ActionForMethod(c.Request.Method)
		if !requestctx.Permissions(c).Allows(module, action) {
			p.abort(c, "permission", access.InsufficientRole())
			return
		}
		c.Next()
	}
}
