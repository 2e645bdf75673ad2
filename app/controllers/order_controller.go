package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sellora/sellora/app/models"
	"github.com/sellora/sellora/internal/pkg/database"
	"github.com/sellora/sellora/internal/pkg/notification"
	"github.com/sellora/sellora/internal/pkg/usage"
)

type createOrderRequest struct {
	BuyerEmail string `json:"buyer_email" validate:"required,email"`
	TotalCents int64  `json:"total_cents" validate:"gte=0"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
}

// HandleCreateOrder records a buyer order after the per-period order limit
// check passes.
func HandleCreateOrder(c *fiber.Ctx) error {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return nil
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := requestValidator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	db := database.GetDB()
	meter := usage.NewMeterFromDB(db, notification.NewSink(db))
	if decision := meter.CanPerformAction(sellerID, "create_order"); !decision.Allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "limit_exceeded", "message": decision.Reason})
	}

	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}
	order := &models.Order{
		SellerID:   sellerID,
		BuyerEmail: req.BuyerEmail,
		TotalCents: req.TotalCents,
		Currency:   currency,
		Status:     models.OrderStatusPending,
	}
	if err := db.Create(order).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create order"})
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}
