package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sellora/sellora/internal/pkg/database"
	"github.com/sellora/sellora/internal/pkg/notification"
	"github.com/sellora/sellora/internal/pkg/usage"
)

// HandleGetUsage returns the seller's live consumption for the current
// period compared against the plan limits.
func HandleGetUsage(c *fiber.Ctx) error {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return nil
	}

	db := database.GetDB()
	meter := usage.NewMeterFromDB(db, notification.NewSink(db))
	snap, err := meter.GetCurrentUsage(sellerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to compute usage"})
	}
	return c.JSON(snap)
}

// HandleCheckAction answers whether the seller may perform a resource
// creating action right now.
func HandleCheckAction(c *fiber.Ctx) error {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return nil
	}
	action := c.Query("action")
	if action == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing action"})
	}

	db := database.GetDB()
	meter := usage.NewMeterFromDB(db, notification.NewSink(db))
	return c.JSON(meter.CanPerformAction(sellerID, action))
}
