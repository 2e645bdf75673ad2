package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sellora/sellora/app/models"
	"github.com/sellora/sellora/internal/pkg/database"
)

const adminPageSize = 50

// HandleAdminListBillingEvents returns the newest entries of the billing
// audit log, optionally filtered by seller.
func HandleAdminListBillingEvents(c *fiber.Ctx) error {
	db := database.GetDB()

	query := db.Model(&models.BillingEvent{}).Order("id DESC").Limit(adminPageSize)
	if sellerID := c.QueryInt("seller_id"); sellerID > 0 {
		query = query.Where("seller_id = ?", sellerID)
	}
	if eventType := c.Query("event_type"); eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	var events []models.BillingEvent
	if err := query.Find(&events).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load billing events"})
	}
	return c.JSON(fiber.Map{"events": events})
}

// HandleAdminListNotifications returns the newest seller notifications.
func HandleAdminListNotifications(c *fiber.Ctx) error {
	db := database.GetDB()

	query := db.Model(&models.Notification{}).Order("id DESC").Limit(adminPageSize)
	if sellerID := c.QueryInt("seller_id"); sellerID > 0 {
		query = query.Where("seller_id = ?", sellerID)
	}

	var notifications []models.Notification
	if err := query.Find(&notifications).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load notifications"})
	}
	return c.JSON(fiber.Map{"notifications": notifications})
}
