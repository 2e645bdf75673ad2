package router

import (
	"github.com/sellora/sellora/app/controllers"
	"github.com/sellora/sellora/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	v1.Post("/sellers", controllers.HandleCreateSeller)

	v1.Get("/sellers/:sellerID/subscription", controllers.HandleGetSubscription)
	v1.Post("/sellers/:sellerID/subscription", controllers.HandleSubscribe)
	v1.Post("/sellers/:sellerID/subscription/change", controllers.HandleChangePlan)
	v1.Post("/sellers/:sellerID/subscription/cancel", controllers.HandleCancelSubscription)

	v1.Get("/sellers/:sellerID/usage", controllers.HandleGetUsage)
	v1.Get("/sellers/:sellerID/usage/check", controllers.HandleCheckAction)

	v1.Post("/sellers/:sellerID/products", controllers.HandleCreateProduct)
	v1.Post("/sellers/:sellerID/orders", controllers.HandleCreateOrder)

	admin := v1.Group("/admin", middleware.APIKeyAuthMiddleware())
	admin.Get("/billing-events", controllers.HandleAdminListBillingEvents)
	admin.Get("/notifications", controllers.HandleAdminListNotifications)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
