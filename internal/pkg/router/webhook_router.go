package router

import (
	"github.com/sellora/sellora/app/controllers"

	"github.com/gofiber/fiber/v2"
)

// WebhookRouter registers the billing provider callback endpoint. It is
// deliberately kept outside the rate limited /api group so that bursts of
// provider retries are never throttled away.
type WebhookRouter struct {
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post("/webhooks/billing", controllers.HandleBillingWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
