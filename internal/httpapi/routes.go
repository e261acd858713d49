package httpapi

import (
	"github.com/gin-gonic/gin"

	"leadbot/internal/rbac"
)

// Register wires the API routes. authMW guards everything under /v1.
func Register(r gin.IRouter, h Handlers, authMW gin.HandlerFunc) {
	r.GET("/healthz", h.Health)

	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		anyRole := rbac.RequireAnyRole(rbac.RoleRep, rbac.RoleManager)
		managers := rbac.RequireAnyRole(rbac.RoleManager)

		v1.GET("/sync/progress", anyRole, h.SyncProgress)
		v1.POST("/sync", managers, h.StartSync)

		v1.POST("/leads/enrich", anyRole, h.EnrichLeads)
		v1.GET("/contacts/:phone", anyRole, h.GetContact)

		v1.POST("/sms", anyRole, h.SendSMS)

		v1.GET("/reports/activity", managers, h.ActivityReport)
		v1.GET("/audit", managers, h.RecentAudit)
	}
}
