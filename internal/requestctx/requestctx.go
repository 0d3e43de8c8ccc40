// Package requestctx stores the values the request pipeline resolves on the gin context.
package requestctx

import (
	"github.com/gin-gonic/gin"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/permissions"
)

const (
	keyUser         = "user"
	keyActiveChurch = "active_church"
	keyPermissions  = "permissions"
	keySubscription = "subscription"
	keyPlan         = "effective_plan"
)

// SetUser stores the resolved principal and its permission matrix.
func SetUser(c *gin.Context, u *models.User) {
	c.Set(keyUser, u)
	c.Set(keyPermissions, permissions.Resolve(string(u.Role)))
}

// User returns the resolved principal, or nil.
func User(c *gin.Context) *models.User {
	v, ok := c.Get(keyUser)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// Permissions returns the principal's permission matrix (all denied when unresolved).
func Permissions(c *gin.Context) permissions.Matrix {
	if v, ok := c.Get(keyPermissions); ok {
		if m, ok := v.(permissions.Matrix); ok {
			return m
		}
	}
	return permissions.Matrix{}
}

func SetActiveChurch(c *gin.Context, ac *models.ActiveChurch) {
	c.Set(keyActiveChurch, ac)
}

// ActiveChurch returns the church the request operates on, or nil.
func ActiveChurch(c *gin.Context) *models.ActiveChurch {
	v, ok := c.Get(keyActiveChurch)
	if !ok {
		return nil
	}
	ac, _ := v.(*models.ActiveChurch)
	return ac
}

func SetSubscription(c *gin.Context, sub *models.Subscription, effective *models.Plan) {
	c.Set(keySubscription, sub)
	c.Set(keyPlan, effective)
}

// Subscription returns the active church's subscription, or nil.
func Subscription(c *gin.Context) *models.Subscription {
	v, ok := c.Get(keySubscription)
	if !ok {
		return nil
	}
	s, _ := v.(*models.Subscription)
	return s
}

// EffectivePlan returns the plan the gate evaluated against, or nil.
func EffectivePlan(c *gin.Context) *models.Plan {
	v, ok := c.Get(keyPlan)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Plan)
	return p
}
