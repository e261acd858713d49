package main

import (
	"github.com/gin-gonic/gin"

	"leadbot/internal/app"
	"leadbot/internal/httpapi"
	"leadbot/internal/telephony"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, a *app.App, rc *telephony.Client, authMW gin.HandlerFunc) {
	h := httpapi.Handlers{
		Sync:         a.Engine(rc),
		Contacts:     a.Contacts,
		SMS:          rc,
		Audit:        a.Audit,
		Reports:      a.Reports,
		FromNumber:   a.Config.RingCentral.FromNumber,
		HistoryLimit: a.Config.Enrich.HistoryLimit,
		Rules:        a.Config.Rules(),
	}
	httpapi.Register(r, h, authMW)
}
