package main

import (
	"meetnmart/internal/httpapi"
	"meetnmart/internal/payments"
	"meetnmart/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, authMW gin.HandlerFunc, h httpapi.Handlers, webhook payments.WebhookHandler) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public). Authenticated by the HMAC signature on the
	// raw body, not by a bearer token.
	r.POST("/webhooks/payments/charge", webhook.HandleChargeWebhook)

	// AUTH routes (token issuance).
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// PRESENCE routes
		presence := v1.Group("/presence")
		{
			presence.POST("/heartbeat", h.Heartbeat)
			presence.PUT("/dnd", h.SetDoNotDisturb)
		}

		// CALLS routes
		calls := v1.Group("/calls")
		{
			calls.POST("", rbac.RequireAnyRole(rbac.RoleBuyer), h.InitiateCall)
			calls.GET("/:session_id", h.GetSession)
			calls.POST("/:session_id/respond", rbac.RequireAnyRole(rbac.RoleSeller), h.RespondToInvite)
			calls.POST("/:session_id/connected", h.Connected)
			calls.POST("/:session_id/end", h.EndCall)
			calls.POST("/:session_id/delivery", rbac.RequireAnyRole(rbac.RoleBuyer, rbac.RoleSeller), h.InviteDeliveryAgent)
		}

		// TRANSACTIONS routes
		txs := v1.Group("/transactions")
		{
			txs.POST("", rbac.RequireAnyRole(rbac.RoleBuyer), h.CreateTransaction)
			txs.GET("/:transaction_id", h.GetTransaction)
			txs.POST("/:transaction_id/confirm", rbac.RequireAnyRole(rbac.RoleBuyer), h.ConfirmFunded)
			txs.POST("/:transaction_id/release", rbac.RequireAnyRole(rbac.RoleBuyer), h.Release)
			txs.POST("/:transaction_id/dispute", rbac.RequireAnyRole(rbac.RoleBuyer, rbac.RoleSeller), h.MarkDisputed)
			txs.POST("/:transaction_id/resolve", rbac.RequireAnyRole(rbac.RoleModerator), h.ResolveDispute)
		}

		// NOTIFICATIONS routes
		notifications := v1.Group("/notifications")
		{
			notifications.GET("", h.ListNotifications)
			notifications.POST("/:notification_id/read", h.MarkNotificationRead)
		}

		// REPORTS routes
		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleModerator))
		{
			reports.GET("/calls", h.CallsSummary)
			reports.GET("/escrow", h.EscrowSummary)
		}
	}
}
