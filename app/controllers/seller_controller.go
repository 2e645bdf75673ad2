package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/sellora/sellora/app/models"
	"github.com/sellora/sellora/internal/pkg/billing"
	"github.com/sellora/sellora/internal/pkg/database"
)

type createSellerRequest struct {
	Name      string `json:"name" validate:"required,min=3,max=150"`
	Email     string `json:"email" validate:"required,email"`
	StoreName string `json:"store_name" validate:"max=150"`
}

// HandleCreateSeller registers a seller. Signup always opens a free/active
// local-only subscription.
func HandleCreateSeller(c *fiber.Ctx) error {
	var req createSellerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := requestValidator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	db := database.GetDB()
	seller, err := models.CreateSeller(db, req.Name, req.Email, req.StoreName)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create seller"})
	}

	svc := billing.NewServiceFromDB(db)
	sub, _, err := svc.CreateSubscription(c.UserContext(), seller.ID, "free", "")
	if err != nil {
		// Seller exists; the free subscription can be opened later.
		log.Errorf("[Seller] failed to open free subscription for seller %d: %v", seller.ID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"seller": seller, "subscription": sub})
}
