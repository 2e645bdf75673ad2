package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/sellora/sellora/internal/pkg/billing"
	"github.com/sellora/sellora/internal/pkg/database"
	"github.com/sellora/sellora/internal/pkg/env"
	"github.com/sellora/sellora/internal/pkg/notification"
)

// HandleBillingWebhook receives provider webhook deliveries. Delivery is
// at-least-once, so everything behind this endpoint must be idempotent.
func HandleBillingWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get("X-Billing-Signature")
	secret := env.GetEnv("BILLING_WEBHOOK_SECRET", "")

	if !billing.VerifyWebhookSignature(payload, signature, secret) {
		log.Warnf("[Webhook] rejected delivery with invalid signature from %s", c.IP())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid signature"})
	}

	ev, err := billing.DecodeWebhookEvent(payload)
	if err != nil {
		log.Warnf("[Webhook] undecodable delivery: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Undecodable event"})
	}

	db := database.GetDB()
	reconciler := billing.NewReconcilerFromDB(db, notification.NewSink(db))

	if err := reconciler.Process(c.UserContext(), ev); err != nil {
		if errors.Is(err, billing.ErrNoSellerRef) {
			// Recorded but not applied. Acknowledge so the provider stops
			// redelivering an event we can never resolve.
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"received": true, "processed": false, "reason": "no seller reference"})
		}
		log.Errorf("[Webhook] processing failed for event %s: %v", ev.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Event processing failed"})
	}

	return c.JSON(fiber.Map{"received": true, "processed": true})
}
